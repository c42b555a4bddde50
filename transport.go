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
	"sync"

	"github.com/ZaparooProject/go-xbee/internal/syncutil"
)

// Transport is the byte stream an XBee radio is attached to. It can be
// implemented by the UART or SPI backends, or by anything else that moves
// bytes.
//
// The frame decoder reads through io.ReadFull, so Read may return fewer
// bytes than asked for. Read should block until data arrives; a transport
// that needs Device.Halt to finish while the radio is silent must make
// Close unblock a pending Read.
type Transport interface {
	// Read reads raw bytes received from the radio
	Read(p []byte) (int, error)

	// Write sends raw bytes to the radio
	Write(p []byte) (int, error)
}

// MockTransport is an in-memory full-duplex Transport for testing. Reads
// block until data is fed in or the transport is closed; writes are
// captured for inspection.
type MockTransport struct {
	readErr  error
	writeErr error
	cond     *sync.Cond
	inbound  []byte
	written  []byte
	mu       syncutil.Mutex
	waiting  int
	closed   bool
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	m := &MockTransport{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Read implements Transport. It blocks until at least one byte is
// available, an error is injected, or Close is called.
func (m *MockTransport) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for len(m.inbound) == 0 && !m.closed && m.readErr == nil {
		m.waiting++
		m.cond.Wait()
		m.waiting--
	}

	if len(m.inbound) > 0 {
		n := copy(p, m.inbound)
		m.inbound = m.inbound[n:]
		return n, nil
	}
	if m.readErr != nil {
		return 0, m.readErr
	}
	return 0, ErrTransportClosed
}

// Write implements Transport
func (m *MockTransport) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrTransportClosed
	}
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	m.written = append(m.written, p...)
	return len(p), nil
}

// Close unblocks pending reads; later reads return ErrTransportClosed once
// buffered data is drained.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cond.Broadcast()
	return nil
}

// Test helper methods

// Feed queues raw bytes for Read
func (m *MockTransport) Feed(data []byte) {
	m.mu.Lock()
	m.inbound = append(m.inbound, data...)
	m.mu.Unlock()
	m.cond.Broadcast()
}

// WaitingReads returns how many Read calls are blocked waiting for data
func (m *MockTransport) WaitingReads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waiting
}

// Written returns a copy of everything written so far
func (m *MockTransport) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.written...)
}

// ResetWritten clears the captured writes
func (m *MockTransport) ResetWritten() {
	m.mu.Lock()
	m.written = nil
	m.mu.Unlock()
}

// SetReadError makes Read fail with err once buffered data is drained
func (m *MockTransport) SetReadError(err error) {
	m.mu.Lock()
	m.readErr = err
	m.mu.Unlock()
	m.cond.Broadcast()
}

// SetWriteError makes every Write fail with err; nil clears it
func (m *MockTransport) SetWriteError(err error) {
	m.mu.Lock()
	m.writeErr = err
	m.mu.Unlock()
}
