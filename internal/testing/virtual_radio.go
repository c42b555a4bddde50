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

// Package testing provides wire-level test doubles for go-xbee: a virtual
// radio that answers API frames and a connection wrapper that fragments
// and delays reads like a USB serial bridge.
package testing

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/ZaparooProject/go-xbee/internal/frame"
	"github.com/ZaparooProject/go-xbee/internal/syncutil"
)

// API frame types the virtual radio understands
const (
	FrameATCommand       = 0x08
	FrameATCommandQueued = 0x09
	FrameTxRequest       = 0x10
	FrameATResponse      = 0x88
	FrameTxStatus        = 0x8B
	FrameRxPacket        = 0x90
)

// AT command status codes
const (
	ATStatusOK               = 0x00
	ATStatusInvalidCommand   = 0x02
	ATStatusInvalidParameter = 0x03
)

// ErrRadioClosed is returned by reads and writes after Close
var ErrRadioClosed = errors.New("virtual radio closed")

// Responder produces the payloads a radio sends back for one payload
// received from the host.
type Responder func(payload []byte) [][]byte

// VirtualRadio simulates an XBee in API mode at the byte level. Frames
// written by the host are decoded and answered; unsolicited frames can be
// injected for the host to read.
type VirtualRadio struct {
	responder   Responder
	cond        *sync.Cond
	registers   map[string][]byte
	outbound    []byte
	inbound     []byte
	received    [][]byte
	readTimeout time.Duration
	badFrames   int
	mu          syncutil.Mutex
	codec       frame.Codec
	closed      bool
}

// NewVirtualRadio creates a radio speaking API mode 1 (escaped false) or
// API mode 2 (escaped true). A few common registers are preloaded.
func NewVirtualRadio(escaped bool) *VirtualRadio {
	v := &VirtualRadio{
		codec: frame.Codec{Escaped: escaped},
		registers: map[string][]byte{
			"ID": {0x33, 0x32},
			"SH": {0x00, 0x13, 0xA2, 0x00},
			"SL": {0x40, 0x0A, 0x01, 0x27},
			"NI": []byte("VIRTUAL"),
			"VR": {0x10, 0xED},
		},
	}
	v.cond = sync.NewCond(&v.mu)
	v.responder = v.defaultResponder
	return v
}

// SetEscapeLength makes an escaped radio stuff length bytes like real
// firmware, and expect the host to do the same.
func (v *VirtualRadio) SetEscapeLength(stuffed bool) {
	v.mu.Lock()
	v.codec.EscapeLength = stuffed
	v.mu.Unlock()
}

// SetResponder replaces the default AT/TX behavior
func (v *VirtualRadio) SetResponder(r Responder) {
	v.mu.Lock()
	v.responder = r
	v.mu.Unlock()
}

// SetReadTimeout makes Read return (0, nil) after d with no data, like a
// serial port with a read timeout. Zero blocks until data or Close.
func (v *VirtualRadio) SetReadTimeout(d time.Duration) {
	v.mu.Lock()
	v.readTimeout = d
	v.mu.Unlock()
}

// SetRegister sets the value returned for an AT query
func (v *VirtualRadio) SetRegister(cmd string, value []byte) {
	v.mu.Lock()
	v.registers[cmd] = append([]byte(nil), value...)
	v.mu.Unlock()
}

// Register returns the current value of an AT register
func (v *VirtualRadio) Register(cmd string) []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]byte(nil), v.registers[cmd]...)
}

// Write accepts bytes from the host and answers every complete frame
func (v *VirtualRadio) Write(p []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return 0, ErrRadioClosed
	}

	v.inbound = append(v.inbound, p...)
	v.processInbound()
	return len(p), nil
}

// processInbound decodes every complete frame in the inbound buffer.
// Caller holds v.mu.
func (v *VirtualRadio) processInbound() {
	for len(v.inbound) > 0 {
		r := bytes.NewReader(v.inbound)
		payload, err := v.codec.Decode(r)
		if errors.Is(err, io.EOF) {
			return // incomplete, wait for more bytes
		}
		v.inbound = v.inbound[len(v.inbound)-r.Len():]
		if err != nil {
			v.badFrames++
			continue
		}

		v.received = append(v.received, payload)
		for _, resp := range v.responder(payload) {
			v.queueFrame(resp)
		}
	}
}

// queueFrame encodes payload for the host. Caller holds v.mu.
func (v *VirtualRadio) queueFrame(payload []byte) {
	data, err := v.codec.Encode(payload)
	if err != nil {
		return
	}
	v.outbound = append(v.outbound, data...)
	v.cond.Broadcast()
}

// Read returns bytes the radio has sent to the host
func (v *VirtualRadio) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	deadline := time.Now().Add(v.readTimeout)
	for len(v.outbound) == 0 && !v.closed {
		if v.readTimeout <= 0 {
			v.cond.Wait()
			continue
		}
		if time.Now().After(deadline) {
			return 0, nil
		}
		v.mu.Unlock()
		time.Sleep(time.Millisecond)
		v.mu.Lock()
	}

	if len(v.outbound) == 0 {
		return 0, ErrRadioClosed
	}
	n := copy(p, v.outbound)
	v.outbound = v.outbound[n:]
	return n, nil
}

// Close unblocks pending reads
func (v *VirtualRadio) Close() error {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
	v.cond.Broadcast()
	return nil
}

// Inject queues an unsolicited frame for the host
func (v *VirtualRadio) Inject(payload []byte) {
	v.mu.Lock()
	v.queueFrame(payload)
	v.mu.Unlock()
}

// InjectRaw queues raw bytes for the host, e.g. noise or a corrupted frame
func (v *VirtualRadio) InjectRaw(data []byte) {
	v.mu.Lock()
	v.outbound = append(v.outbound, data...)
	v.mu.Unlock()
	v.cond.Broadcast()
}

// Received returns the payloads of every valid frame the host sent
func (v *VirtualRadio) Received() [][]byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([][]byte, len(v.received))
	for i, p := range v.received {
		out[i] = append([]byte(nil), p...)
	}
	return out
}

// BadFrames returns how many host frames failed to decode
func (v *VirtualRadio) BadFrames() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.badFrames
}

// Pending returns how many bytes are waiting for the host to read
func (v *VirtualRadio) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.outbound)
}

// defaultResponder answers AT commands from the register map and
// acknowledges transmit requests. Frame ID 0 suppresses the answer, as
// on real radios. Caller holds v.mu.
func (v *VirtualRadio) defaultResponder(payload []byte) [][]byte {
	switch payload[0] {
	case FrameATCommand, FrameATCommandQueued:
		if len(payload) < 4 || payload[1] == 0 {
			return nil
		}
		return [][]byte{v.answerAT(payload[1], string(payload[2:4]), payload[4:])}
	case FrameTxRequest:
		// id, dest64(8), dest16(2), radius, options, data
		if len(payload) < 14 || payload[1] == 0 {
			return nil
		}
		return [][]byte{{FrameTxStatus, payload[1], 0xFF, 0xFE, 0x00, 0x00, 0x00}}
	default:
		return nil
	}
}

func (v *VirtualRadio) answerAT(frameID byte, cmd string, param []byte) []byte {
	resp := []byte{FrameATResponse, frameID, cmd[0], cmd[1]}

	if len(param) > 0 {
		if _, ok := v.registers[cmd]; !ok {
			return append(resp, ATStatusInvalidCommand)
		}
		v.registers[cmd] = append([]byte(nil), param...)
		return append(resp, ATStatusOK)
	}

	value, ok := v.registers[cmd]
	if !ok {
		return append(resp, ATStatusInvalidCommand)
	}
	resp = append(resp, ATStatusOK)
	return append(resp, value...)
}
