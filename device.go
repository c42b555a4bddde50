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

// Package xbee talks to XBee-family radios in API mode. It frames payloads
// for the wire, validates inbound frames and optionally runs a background
// reader that hands every decoded frame to a callback.
//
// Command sets are not built in: a Translator (usually a CommandTable)
// describes the frame types of a particular radio family.
package xbee

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ZaparooProject/go-xbee/internal/frame"
	"github.com/ZaparooProject/go-xbee/internal/syncutil"
)

// Option configures a Device at construction
type Option func(*Device) error

// WithEscaped enables API mode 2 byte stuffing. It cannot be changed after
// the Device is created.
func WithEscaped(escaped bool) Option {
	return func(d *Device) error {
		d.codec.Escaped = escaped
		return nil
	}
}

// WithEscapedLength makes escaped mode stuff the two length bytes too.
// XBee firmware in API mode 2 does this, so set it when talking to a
// radio; frames of 17, 19, 125 or 126 bytes fail without it. Ignored
// unless WithEscaped(true) is also given.
func WithEscapedLength(stuffed bool) Option {
	return func(d *Device) error {
		d.codec.EscapeLength = stuffed
		return nil
	}
}

// WithTranslator attaches the command table used by Send, Invoke and
// WaitReadFrame
func WithTranslator(t Translator) Option {
	return func(d *Device) error {
		if t == nil {
			return errors.New("nil translator")
		}
		d.translator = t
		return nil
	}
}

// WithCallback puts the Device in async mode: a background reader starts
// in New and passes every decoded frame to fn.
func WithCallback(fn func(*Response)) Option {
	return func(d *Device) error {
		d.callback = fn
		return nil
	}
}

// WithErrorCallback receives frame and transport errors from the
// background reader. Ignored without WithCallback.
func WithErrorCallback(fn func(error)) Option {
	return func(d *Device) error {
		d.errorCallback = fn
		return nil
	}
}

// WithPortName sets the port identifier used in error messages
func WithPortName(name string) Option {
	return func(d *Device) error {
		d.portName = name
		return nil
	}
}

// Device is a session with one XBee radio over one Transport.
//
// Thread Safety: Send may be called while the background reader runs; the
// two are not serialized against each other, so the Transport must allow
// a concurrent Read and Write. Concurrent Send calls are not serialized
// either. Callers that need whole frames to stay contiguous on the wire
// must send from a single goroutine.
type Device struct {
	transport     Transport
	translator    Translator
	callback      func(*Response)
	errorCallback func(error)
	portName      string
	wg            sync.WaitGroup
	stateMu       syncutil.RWMutex
	state         ReaderState
	framesRead    atomic.Int64
	frameErrors   atomic.Int64
	readerGID     atomic.Int64
	codec         frame.Codec
}

// New creates a Device on the given transport. With WithCallback the
// background reader is running when New returns, and Halt must be called
// exactly once before the Device is discarded.
func New(transport Transport, opts ...Option) (*Device, error) {
	device := &Device{
		transport:  transport,
		translator: BaseTranslator{},
		state:      ReaderIdle,
	}

	for _, opt := range opts {
		if err := opt(device); err != nil {
			return nil, err
		}
	}

	if device.portName == "" {
		if s, ok := transport.(fmt.Stringer); ok {
			device.portName = s.String()
		}
	}

	if device.callback != nil {
		if transport == nil {
			return nil, errors.New("async mode requires a transport")
		}
		device.startReader()
	}

	return device, nil
}

// Escaped reports whether the Device uses byte stuffing
func (d *Device) Escaped() bool {
	return d.codec.Escaped
}

// BuildCommand translates a command into a payload without sending it
func (d *Device) BuildCommand(name string, params Params) ([]byte, error) {
	payload, err := d.translator.BuildCommand(name, params)
	if err != nil {
		return nil, fmt.Errorf("build command: %w", err)
	}
	return payload, nil
}

// SplitResponse translates a payload into a Response
func (d *Device) SplitResponse(payload []byte) (*Response, error) {
	resp, err := d.translator.SplitResponse(payload)
	if err != nil {
		return nil, fmt.Errorf("split response: %w", err)
	}
	return resp, nil
}

// Send builds the named command, frames it and writes it to the transport
func (d *Device) Send(name string, params Params) error {
	payload, err := d.BuildCommand(name, params)
	if err != nil {
		return err
	}
	return d.SendRaw(payload)
}

// Invoke is the shorthand form of Send: it looks the command up by name
// and fails the same way when the name is unknown or no table is attached.
func (d *Device) Invoke(name string, params Params) error {
	return d.Send(name, params)
}

// SendRaw frames an already built payload and writes it to the transport
func (d *Device) SendRaw(payload []byte) error {
	data, err := d.codec.Encode(payload)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}

	if d.transport == nil {
		return NewTransportError("send", d.portName, ErrTransportClosed, ErrorTypePermanent)
	}

	Debugf("TX: %s", formatHexBytes(data))

	n, err := d.transport.Write(data)
	if err != nil {
		return NewTransportWriteError("send", d.portName, err)
	}
	if n != len(data) {
		return NewTransportWriteError("send", d.portName,
			fmt.Errorf("short write: %d of %d bytes", n, len(data)))
	}
	return nil
}

// ReadRawFrame blocks until one frame has been read and returns its
// payload without translating it. A checksum failure is returned as
// *ChecksumError and is not retried.
func (d *Device) ReadRawFrame() ([]byte, error) {
	if d.transport == nil {
		return nil, NewTransportError("read frame", d.portName, ErrTransportClosed, ErrorTypePermanent)
	}

	payload, err := d.codec.Decode(d.transport)
	if err != nil {
		if frame.IsIntegrityError(err) {
			Debugf("RX bad frame: %v", err)
			return nil, err //nolint:wrapcheck // *ChecksumError is part of the API
		}
		return nil, NewTransportReadError("read frame", d.portName, err)
	}

	Debugf("RX: %s", formatHexBytes(payload))
	return payload, nil
}

// WaitReadFrame blocks until one frame has been read and translated
func (d *Device) WaitReadFrame() (*Response, error) {
	payload, err := d.ReadRawFrame()
	if err != nil {
		return nil, err
	}
	return d.SplitResponse(payload)
}
