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

//nolint:paralleltest // Test file - parallel tests add complexity
package spi

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ZaparooProject/go-xbee"
	virt "github.com/ZaparooProject/go-xbee/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// errPortClosed is returned when operations are attempted on a closed port
var errPortClosed = errors.New("port is closed")

// MockSPIConn implements spi.Conn backed by a VirtualRadio. Every Tx
// forwards the bytes shifted out and fills the read buffer with whatever
// the radio has queued, padded with idle bytes.
type MockSPIConn struct {
	radio   *virt.VirtualRadio
	txErr   error
	txSizes []int
	maxTx   int
	mu      sync.Mutex
	closed  bool
}

// NewMockSPIConn creates a new mock SPI connection.
func NewMockSPIConn(radio *virt.VirtualRadio) *MockSPIConn {
	radio.SetReadTimeout(time.Millisecond)
	return &MockSPIConn{radio: radio}
}

// Tx implements spi.Conn.
func (m *MockSPIConn) Tx(w, r []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errPortClosed
	}
	if m.txErr != nil {
		return m.txErr
	}
	m.txSizes = append(m.txSizes, len(w))

	if !allIdle(w) {
		if _, err := m.radio.Write(w); err != nil {
			return fmt.Errorf("mock spi write: %w", err)
		}
	}

	filled := 0
	for filled < len(r) {
		n, err := m.radio.Read(r[filled:])
		if err != nil || n == 0 {
			break
		}
		filled += n
	}
	for i := filled; i < len(r); i++ {
		r[i] = idleByte
	}
	return nil
}

// Duplex implements conn.Conn.
func (*MockSPIConn) Duplex() conn.Duplex {
	return conn.Full
}

// String returns connection name.
func (*MockSPIConn) String() string {
	return "mock://spi"
}

// TxPackets implements spi.Conn.
func (m *MockSPIConn) TxPackets(p []spi.Packet) error {
	for _, pkt := range p {
		if err := m.Tx(pkt.W, pkt.R); err != nil {
			return err
		}
	}
	return nil
}

// limitedConn reports a maximum transfer size
type limitedConn struct {
	*MockSPIConn
}

func (c limitedConn) MaxTxSize() int {
	return c.maxTx
}

// MockSPIPort implements spi.PortCloser interface.
type MockSPIPort struct {
	conn   spi.Conn
	mock   *MockSPIConn
	closed bool
}

// NewMockSPIPort creates a mock SPI port.
func NewMockSPIPort(radio *virt.VirtualRadio) *MockSPIPort {
	m := NewMockSPIConn(radio)
	return &MockSPIPort{conn: m, mock: m}
}

// Connect implements spi.Port.
func (p *MockSPIPort) Connect(_ physic.Frequency, _ spi.Mode, _ int) (spi.Conn, error) {
	return p.conn, nil
}

// Close implements io.Closer.
func (p *MockSPIPort) Close() error {
	p.closed = true
	p.mock.mu.Lock()
	p.mock.closed = true
	p.mock.mu.Unlock()
	return nil
}

// String returns port name.
func (*MockSPIPort) String() string {
	return "mock://spi"
}

// LimitSpeed implements spi.Port.
func (*MockSPIPort) LimitSpeed(_ physic.Frequency) error {
	return nil
}

// mockAttention drives nATTN low while the radio has bytes queued
type mockAttention struct {
	radio *virt.VirtualRadio
}

func (a mockAttention) Read() gpio.Level {
	if a.radio.Pending() > 0 {
		return gpio.Low
	}
	return gpio.High
}

func (a mockAttention) WaitForEdge(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if a.radio.Pending() > 0 {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

var (
	_ spi.Conn       = (*MockSPIConn)(nil)
	_ spi.PortCloser = (*MockSPIPort)(nil)
	_ conn.Limits    = limitedConn{}
	_ attentionPin   = mockAttention{}
)

// newTestSPITransport creates a Transport using the mock SPI port.
func newTestSPITransport(t *testing.T, radio *virt.VirtualRadio, withAttn bool) (*Transport, *MockSPIPort) {
	t.Helper()

	port := NewMockSPIPort(radio)
	var attn attentionPin
	if withAttn {
		attn = mockAttention{radio: radio}
	}
	transport, err := newTransport(port, "mock://spi", attn, config{
		freq:         defaultFreq,
		pollInterval: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	return transport, port
}

func TestSPI_ATQueryRoundTrip(t *testing.T) {
	for _, withAttn := range []bool{true, false} {
		for _, escaped := range []bool{false, true} {
			t.Run(fmt.Sprintf("attn=%v/escaped=%v", withAttn, escaped), func(t *testing.T) {
				radio := virt.NewVirtualRadio(escaped)
				transport, _ := newTestSPITransport(t, radio, withAttn)

				device, err := xbee.New(transport, xbee.WithEscaped(escaped))
				require.NoError(t, err)

				require.NoError(t, device.SendRaw([]byte{virt.FrameATCommand, 0x7D, 'I', 'D'}))
				payload, err := device.ReadRawFrame()
				require.NoError(t, err)
				assert.Equal(t, []byte{virt.FrameATResponse, 0x7D, 'I', 'D', virt.ATStatusOK, 0x33, 0x32}, payload)
			})
		}
	}
}

func TestSPI_UnsolicitedFrame(t *testing.T) {
	radio := virt.NewVirtualRadio(false)
	transport, _ := newTestSPITransport(t, radio, true)
	device, err := xbee.New(transport)
	require.NoError(t, err)

	modemStatus := []byte{0x8A, 0x06}
	go func() {
		time.Sleep(20 * time.Millisecond)
		radio.Inject(modemStatus)
	}()

	payload, err := device.ReadRawFrame()
	require.NoError(t, err)
	assert.Equal(t, modemStatus, payload)
}

func TestSPI_WriteKeepsClockedInBytes(t *testing.T) {
	radio := virt.NewVirtualRadio(false)
	transport, _ := newTestSPITransport(t, radio, true)

	// The radio has a frame queued when the host starts writing
	radio.Inject([]byte{0x8A, 0x00})
	_, err := transport.Write([]byte{0x7E, 0x00, 0x01, 0x17, 0xE8, 0xFF, 0xFF, 0xFF})
	require.NoError(t, err)
	assert.Zero(t, radio.Pending(), "queued bytes were shifted in during the write")

	device, err := xbee.New(transport)
	require.NoError(t, err)
	payload, err := device.ReadRawFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x8A, 0x00}, payload)
}

func TestSPI_WriteChunksToMaxTxSize(t *testing.T) {
	radio := virt.NewVirtualRadio(false)
	mock := NewMockSPIConn(radio)
	mock.maxTx = 8
	port := &MockSPIPort{conn: limitedConn{mock}, mock: mock}

	transport, err := newTransport(port, "mock://spi", nil, config{freq: defaultFreq, pollInterval: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 8, transport.maxTx)

	n, err := transport.Write(make([]byte, 20))
	require.NoError(t, err)
	assert.Equal(t, 20, n)
	assert.Equal(t, []int{8, 8, 4}, mock.txSizes)
}

func TestSPI_TxError(t *testing.T) {
	radio := virt.NewVirtualRadio(false)
	transport, port := newTestSPITransport(t, radio, false)
	port.mock.txErr = errors.New("bus fault")

	_, err := transport.Write([]byte{0x7E})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SPI write failed")

	_, err = transport.Read(make([]byte, 4))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SPI read failed")
}

func TestSPI_CloseUnblocksRead(t *testing.T) {
	transport, port := newTestSPITransport(t, virt.NewVirtualRadio(false), true)

	done := make(chan error, 1)
	go func() {
		_, err := transport.Read(make([]byte, 1))
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, transport.Close())

	select {
	case err := <-done:
		require.ErrorIs(t, err, xbee.ErrTransportClosed)
	case <-time.After(time.Second):
		t.Fatal("Read did not return after Close")
	}

	assert.True(t, port.closed)
	require.NoError(t, transport.Close())

	_, err := transport.Write([]byte{0x7E})
	require.ErrorIs(t, err, xbee.ErrTransportClosed)
}

func TestSPI_AsyncDevice(t *testing.T) {
	radio := virt.NewVirtualRadio(true)
	transport, _ := newTestSPITransport(t, radio, true)

	frames := make(chan *xbee.Response, 4)
	table := &xbee.CommandTable{
		Responses: map[byte]xbee.ResponseSpec{
			0x88: {Name: "at_response", Fields: []xbee.Field{
				{Name: "frame_id", Len: 1},
				{Name: "command", Len: 2},
				{Name: "status", Len: 1},
				{Name: "parameter", Len: xbee.VariableLength},
			}},
		},
	}
	device, err := xbee.New(transport,
		xbee.WithEscaped(true),
		xbee.WithTranslator(table),
		xbee.WithCallback(func(r *xbee.Response) { frames <- r }),
	)
	require.NoError(t, err)

	require.NoError(t, device.SendRaw([]byte{virt.FrameATCommand, 0x01, 'V', 'R'}))

	select {
	case r := <-frames:
		assert.Equal(t, "at_response", r.ID)
		assert.Equal(t, []byte{0x10, 0xED}, r.Get("parameter"))
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
	}

	require.NoError(t, transport.Close())
	device.Halt()
	assert.Equal(t, xbee.ReaderStopped, device.State())
}

func TestSPI_String(t *testing.T) {
	transport, _ := newTestSPITransport(t, virt.NewVirtualRadio(false), false)
	assert.Equal(t, "mock://spi", transport.String())
}

func TestOptions(t *testing.T) {
	cfg := config{}
	WithAttentionPin("GPIO25")(&cfg)
	WithSpeed(2 * physic.MegaHertz)(&cfg)
	WithPollInterval(3 * time.Millisecond)(&cfg)

	assert.Equal(t, "GPIO25", cfg.attnName)
	assert.Equal(t, 2*physic.MegaHertz, cfg.freq)
	assert.Equal(t, 3*time.Millisecond, cfg.pollInterval)
}

func TestAllIdle(t *testing.T) {
	assert.True(t, allIdle(nil))
	assert.True(t, allIdle([]byte{0xFF, 0xFF}))
	assert.False(t, allIdle([]byte{0xFF, 0x7E}))
}
