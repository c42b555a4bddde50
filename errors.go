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

package xbee

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"syscall"

	"github.com/ZaparooProject/go-xbee/internal/frame"
)

// Error categories
var (
	// Frame errors - reported once per frame, the connection stays usable
	ErrChecksumMismatch  = frame.ErrChecksumMismatch
	ErrPayloadTooLarge   = frame.ErrPayloadTooLarge
	ErrMalformedResponse = errors.New("malformed response")

	// Command table errors - never retried
	ErrNotImplemented = errors.New("no command table attached")
	ErrNotSupported   = errors.New("command not supported")

	// Transport errors - fatal to the background reader
	ErrTransportRead   = errors.New("transport read failed")
	ErrTransportWrite  = errors.New("transport write failed")
	ErrTransportClosed = errors.New("transport is closed")
)

// ChecksumError is returned by WaitReadFrame when a frame fails checksum
// validation. It carries the received payload for diagnostics.
type ChecksumError = frame.ChecksumError

// ErrorType represents how an error affects the connection
type ErrorType int

const (
	// ErrorTypeTransient indicates the connection is still usable
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates the transport is gone
	ErrorTypePermanent
)

// TransportError wraps transport-level errors with additional context
type TransportError struct {
	Err  error     // Underlying error
	Op   string    // Operation that failed
	Port string    // Port or device identifier
	Type ErrorType // Error category
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// CommandError reports a command that could not be translated into a
// payload. Field is set when a single parameter was at fault.
type CommandError struct {
	Err     error
	Command string
	Field   string
}

func (e *CommandError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("command %q field %q: %v", e.Command, e.Field, e.Err)
	}
	return fmt.Sprintf("command %q: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ResponseError reports an inbound payload that does not match the shape
// declared for its frame type.
type ResponseError struct {
	Err     error
	Reason  string
	Payload []byte
}

func (e *ResponseError) Error() string {
	if len(e.Payload) == 0 {
		return fmt.Sprintf("%v: %s", e.Err, e.Reason)
	}
	return fmt.Sprintf("%v: frame type 0x%02X: %s", e.Err, e.Payload[0], e.Reason)
}

func (e *ResponseError) Unwrap() error {
	return e.Err
}

// IsFrameError reports whether err concerns a single bad frame. The
// background reader keeps running after these.
func IsFrameError(err error) bool {
	return errors.Is(err, ErrChecksumMismatch) ||
		errors.Is(err, ErrMalformedResponse) ||
		frame.IsIntegrityError(err)
}

// IsFatal returns true if the error indicates the transport is gone and
// the background reader should stop. Frame and command errors are never
// fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Type == ErrorTypePermanent
	}

	if isDeviceGoneError(err) {
		return true
	}

	switch {
	case errors.Is(err, ErrTransportClosed),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}

// Windows error codes for device disconnection detection.
// These are defined here because they're not available on non-Windows platforms.
const (
	errAccessDenied syscall.Errno = 5   // ERROR_ACCESS_DENIED
	errGenFailure   syscall.Errno = 31  // ERROR_GEN_FAILURE
	errNoSuchDevice syscall.Errno = 433 // ERROR_NO_SUCH_DEVICE
)

// isDeviceGoneError checks for OS-level errors raised when a USB serial
// adapter is unplugged during I/O.
func isDeviceGoneError(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}

	//nolint:exhaustive // Only checking specific device-gone errors, not all errno values
	switch errno {
	case syscall.EIO, syscall.ENXIO, syscall.ENODEV:
		return true
	}

	if runtime.GOOS == "windows" {
		//nolint:exhaustive // Only checking specific device-gone errors, not all errno values
		switch errno {
		case errAccessDenied, errGenFailure, errNoSuchDevice:
			return true
		}
	}

	return false
}

// NewTransportError creates a transport error with consistent formatting
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:   op,
		Port: port,
		Err:  err,
		Type: errType,
	}
}

// NewTransportWriteError creates a write error for a failed or short write
func NewTransportWriteError(op, port string, cause error) *TransportError {
	if cause == nil {
		return NewTransportError(op, port, ErrTransportWrite, ErrorTypeTransient)
	}
	return NewTransportError(op, port, fmt.Errorf("%w: %w", ErrTransportWrite, cause), errorTypeOf(cause))
}

// NewTransportReadError creates a read error. A failed read leaves the
// frame stream at an unknown position, so read errors are always permanent.
func NewTransportReadError(op, port string, cause error) *TransportError {
	return NewTransportError(op, port, fmt.Errorf("%w: %w", ErrTransportRead, cause), ErrorTypePermanent)
}

func errorTypeOf(err error) ErrorType {
	if IsFatal(err) {
		return ErrorTypePermanent
	}
	return ErrorTypeTransient
}

// newCommandError creates a command error for a named command
func newCommandError(command, field string, err error) *CommandError {
	return &CommandError{Command: command, Field: field, Err: err}
}

// newResponseError creates a malformed response error
func newResponseError(payload []byte, format string, args ...any) *ResponseError {
	return &ResponseError{
		Err:     ErrMalformedResponse,
		Reason:  fmt.Sprintf(format, args...),
		Payload: payload,
	}
}
