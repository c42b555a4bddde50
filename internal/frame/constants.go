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

// Package frame implements the XBee API frame codec: length prefix,
// checksum and optional byte stuffing.
package frame

// Frame markers and control bytes
const (
	StartDelimiter = 0x7E // Start of every API frame, never escaped
	EscapeMarker   = 0x7D // Precedes an escaped byte in escaped mode
	XON            = 0x11 // Software flow control resume
	XOFF           = 0x13 // Software flow control pause
	EscapeMask     = 0x20 // XORed into the byte following EscapeMarker
)

// Frame size limits
const (
	MaxPayloadLength = 0xFFFF // Length field is 16 bits
	HeaderLength     = 3      // Start delimiter + 2 length bytes
	MinFrameLength   = 4      // Header + checksum, empty payload
)

// reserved lists the bytes that must be stuffed in escaped mode.
var reserved = [...]byte{StartDelimiter, EscapeMarker, XON, XOFF}
