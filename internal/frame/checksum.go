// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package frame

// sum adds all bytes of data. byte arithmetic wraps, so the result is
// already reduced modulo 256.
func sum(data []byte) byte {
	var total byte
	for _, b := range data {
		total += b
	}
	return total
}

// Checksum computes the API frame checksum over an unescaped payload:
// 0xFF minus the low byte of the payload sum.
func Checksum(payload []byte) byte {
	return 0xFF - sum(payload)
}

// VerifyChecksum reports whether chk is the valid checksum for payload.
// Equivalent to (sum(payload) + chk) & 0xFF == 0xFF.
func VerifyChecksum(payload []byte, chk byte) bool {
	return sum(payload)+chk == 0xFF
}
