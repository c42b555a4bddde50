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

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Codec errors
var (
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrPayloadTooLarge  = errors.New("payload exceeds 65535 bytes")
	ErrDanglingEscape   = errors.New("escape marker at end of data")
)

// ChecksumError reports a frame whose checksum did not validate. Payload
// holds the unescaped bytes as received so callers can inspect them.
type ChecksumError struct {
	Payload []byte
	Got     byte
	Want    byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("%v: got 0x%02X, want 0x%02X (%d byte payload)",
		ErrChecksumMismatch, e.Got, e.Want, len(e.Payload))
}

// Is makes errors.Is(err, ErrChecksumMismatch) match.
func (*ChecksumError) Is(target error) bool {
	return target == ErrChecksumMismatch
}

// IsIntegrityError reports whether err describes a bad frame rather than a
// failure of the underlying reader.
func IsIntegrityError(err error) bool {
	return errors.Is(err, ErrChecksumMismatch) || errors.Is(err, ErrDanglingEscape)
}

// Codec frames payloads for one connection. The zero value is API mode 1.
type Codec struct {
	// Escaped stuffs reserved bytes of payload and checksum (API mode 2)
	Escaped bool
	// EscapeLength also stuffs the two length bytes, as XBee firmware does
	// in API mode 2. Ignored unless Escaped is set.
	EscapeLength bool
}

func (c Codec) stuffLength() bool {
	return c.Escaped && c.EscapeLength
}

// Encode wraps payload in an API frame:
//
//	0x7E len_hi len_lo payload... checksum
//
// The length field counts unescaped payload bytes and is always sent
// literally. With escaped set, reserved bytes in payload and checksum
// are stuffed.
func Encode(payload []byte, escaped bool) ([]byte, error) {
	return Codec{Escaped: escaped}.Encode(payload)
}

// Encode frames payload. The length bytes are stuffed only when both
// Escaped and EscapeLength are set.
func (c Codec) Encode(payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadLength {
		return nil, fmt.Errorf("encode %d bytes: %w", len(payload), ErrPayloadTooLarge)
	}

	body := make([]byte, 0, len(payload)+1)
	body = append(body, payload...)
	body = append(body, Checksum(payload))

	var length [2]byte
	binary.BigEndian.PutUint16(length[:], uint16(len(payload)))

	out := make([]byte, 1, HeaderLength+2+len(body)+len(body)/4)
	out[0] = StartDelimiter
	if c.stuffLength() {
		out = appendEscaped(out, length[:])
	} else {
		out = append(out, length[:]...)
	}

	if c.Escaped {
		return appendEscaped(out, body), nil
	}
	return append(out, body...), nil
}

// errRestart signals that a literal start delimiter showed up inside an
// escaped frame, so the decoder must begin a new frame at that byte.
var errRestart = errors.New("start delimiter inside frame")

// byteReader pulls single bytes from the transport, undoing escapes when
// the connection runs in escaped mode.
type byteReader struct {
	r       io.Reader
	buf     [1]byte
	escaped bool
}

// raw blocks until one byte is available.
func (br *byteReader) raw() (byte, error) {
	if _, err := io.ReadFull(br.r, br.buf[:]); err != nil {
		return 0, err //nolint:wrapcheck // wrapped by Decode with stage context
	}
	return br.buf[0], nil
}

// logical returns the next unescaped byte of the frame body.
func (br *byteReader) logical() (byte, error) {
	b, err := br.raw()
	if err != nil || !br.escaped {
		return b, err
	}
	switch b {
	case StartDelimiter:
		return 0, errRestart
	case EscapeMarker:
		next, err := br.raw()
		if err != nil {
			return 0, err
		}
		if next == StartDelimiter {
			return 0, errRestart
		}
		return next ^ EscapeMask, nil
	default:
		return b, nil
	}
}

// Decode reads one API frame from r and returns its unescaped payload.
//
// Bytes before the start delimiter are discarded. Short reads block until
// the frame is complete. A checksum mismatch returns *ChecksumError; any
// error from r is returned wrapped and is never an integrity error. In
// escaped mode a literal start delimiter inside a frame abandons the
// partial frame and decoding restarts from that delimiter.
func Decode(r io.Reader, escaped bool) ([]byte, error) {
	return Codec{Escaped: escaped}.Decode(r)
}

// Decode reads one frame from r. With EscapeLength set, stuffed length
// bytes are unescaped like the rest of the frame.
func (c Codec) Decode(r io.Reader) ([]byte, error) {
	br := &byteReader{r: r, escaped: c.Escaped}

	if err := syncToDelimiter(br); err != nil {
		return nil, err
	}

	for {
		payload, err := decodeBody(br, c.stuffLength())
		if errors.Is(err, errRestart) {
			continue
		}
		return payload, err
	}
}

func syncToDelimiter(br *byteReader) error {
	for {
		b, err := br.raw()
		if err != nil {
			return fmt.Errorf("frame sync read: %w", err)
		}
		if b == StartDelimiter {
			return nil
		}
	}
}

// decodeBody reads everything after the start delimiter.
func decodeBody(br *byteReader, stuffedLength bool) ([]byte, error) {
	var lenBuf [2]byte
	for i := range lenBuf {
		read := br.raw
		if stuffedLength {
			read = br.logical
		}
		b, err := read()
		if err != nil {
			if errors.Is(err, errRestart) {
				return nil, err
			}
			return nil, fmt.Errorf("frame length read: %w", err)
		}
		lenBuf[i] = b
	}
	length := int(binary.BigEndian.Uint16(lenBuf[:]))

	payload := make([]byte, length)
	for i := range payload {
		b, err := br.logical()
		if err != nil {
			if errors.Is(err, errRestart) {
				return nil, err
			}
			return nil, fmt.Errorf("frame payload read (%d/%d): %w", i, length, err)
		}
		payload[i] = b
	}

	chk, err := br.logical()
	if err != nil {
		if errors.Is(err, errRestart) {
			return nil, err
		}
		return nil, fmt.Errorf("frame checksum read: %w", err)
	}

	if !VerifyChecksum(payload, chk) {
		return nil, &ChecksumError{
			Payload: payload,
			Got:     chk,
			Want:    Checksum(payload),
		}
	}
	return payload, nil
}
