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

// NeedsEscape reports whether b is one of the reserved bytes that must be
// stuffed in escaped mode.
func NeedsEscape(b byte) bool {
	for _, r := range reserved {
		if b == r {
			return true
		}
	}
	return false
}

// Escape returns a copy of data with every reserved byte replaced by
// EscapeMarker followed by the byte XOR EscapeMask.
func Escape(data []byte) []byte {
	out := make([]byte, 0, len(data)+len(data)/8)
	return appendEscaped(out, data)
}

func appendEscaped(dst, data []byte) []byte {
	for _, b := range data {
		if NeedsEscape(b) {
			dst = append(dst, EscapeMarker, b^EscapeMask)
			continue
		}
		dst = append(dst, b)
	}
	return dst
}

// Unescape reverses Escape. A trailing EscapeMarker with nothing after it
// yields ErrDanglingEscape.
func Unescape(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		b := data[i]
		if b != EscapeMarker {
			out = append(out, b)
			continue
		}
		i++
		if i == len(data) {
			return nil, ErrDanglingEscape
		}
		out = append(out, data[i]^EscapeMask)
	}
	return out, nil
}
