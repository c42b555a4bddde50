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

// Package spi provides the SPI transport for XBee modules that expose the
// SPI slave interface (XBee 3, S2C, 900HP). The radio signals pending data
// on its active-low nATTN line.
package spi

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-xbee"
	"github.com/ZaparooProject/go-xbee/internal/syncutil"
	periphconn "periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const (
	// XBee SPI is mode 0, MSB first, up to 3.5 MHz
	defaultFreq = 1 * physic.MegaHertz
	mode        = spi.Mode0

	// idleByte is clocked out by both sides when they have nothing to say
	idleByte = 0xFF

	defaultPollInterval = 10 * time.Millisecond
	defaultMaxTx        = 4096
)

// attentionPin is the part of gpio.PinIn the transport needs
type attentionPin interface {
	Read() gpio.Level
	WaitForEdge(timeout time.Duration) bool
}

// Option configures a Transport
type Option func(*config)

type config struct {
	attnName     string
	freq         physic.Frequency
	pollInterval time.Duration
}

// WithAttentionPin names the GPIO wired to the radio's nATTN output, e.g.
// "GPIO25". Without it Read polls the bus.
func WithAttentionPin(name string) Option {
	return func(c *config) {
		c.attnName = name
	}
}

// WithSpeed sets the SPI clock
func WithSpeed(freq physic.Frequency) Option {
	return func(c *config) {
		c.freq = freq
	}
}

// WithPollInterval sets how long Read waits between bus polls, or for an
// nATTN edge, before checking whether the transport was closed.
func WithPollInterval(d time.Duration) Option {
	return func(c *config) {
		c.pollInterval = d
	}
}

// Transport implements xbee.Transport over SPI. SPI is full duplex: every
// byte written clocks one byte in, and those bytes are kept for Read.
type Transport struct {
	port         spi.PortCloser
	conn         spi.Conn
	attn         attentionPin
	portName     string
	rx           []byte
	pollInterval time.Duration
	maxTx        int
	mu           syncutil.Mutex
	closed       atomic.Bool
}

// New opens the SPI port (e.g. "/dev/spidev0.0" or "SPI0.0")
func New(portName string, opts ...Option) (*Transport, error) {
	cfg := config{freq: defaultFreq, pollInterval: defaultPollInterval}
	for _, opt := range opts {
		opt(&cfg)
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	var attn attentionPin
	if cfg.attnName != "" {
		pin := gpioreg.ByName(cfg.attnName)
		if pin == nil {
			return nil, fmt.Errorf("attention pin %s not found", cfg.attnName)
		}
		if err := pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
			return nil, fmt.Errorf("failed to configure attention pin %s: %w", cfg.attnName, err)
		}
		attn = pin
	}

	port, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %s: %w", portName, err)
	}

	t, err := newTransport(port, portName, attn, cfg)
	if err != nil {
		_ = port.Close()
		return nil, err
	}

	xbee.Debugf("SPI %s open at %s", portName, cfg.freq)
	return t, nil
}

func newTransport(port spi.PortCloser, portName string, attn attentionPin, cfg config) (*Transport, error) {
	c, err := port.Connect(cfg.freq, mode, 8)
	if err != nil {
		return nil, fmt.Errorf("failed to connect SPI: %w", err)
	}

	maxTx := defaultMaxTx
	if l, ok := c.(periphconn.Limits); ok && l.MaxTxSize() > 0 {
		maxTx = l.MaxTxSize()
	}

	return &Transport{
		port:         port,
		conn:         c,
		attn:         attn,
		portName:     portName,
		pollInterval: cfg.pollInterval,
		maxTx:        maxTx,
	}, nil
}

// Read returns bytes from the radio. With an attention pin it blocks until
// the radio asserts nATTN; without one it clocks idle filler at the poll
// interval. Filler bytes are returned as-is and skipped by the frame
// decoder while it looks for a start delimiter.
func (t *Transport) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for {
		if t.closed.Load() {
			return 0, xbee.ErrTransportClosed
		}

		t.mu.Lock()
		if len(t.rx) > 0 {
			n := copy(p, t.rx)
			t.rx = t.rx[n:]
			t.mu.Unlock()
			return n, nil
		}
		t.mu.Unlock()

		if t.attn != nil {
			if t.attn.Read() == gpio.High {
				t.attn.WaitForEdge(t.pollInterval)
				continue
			}
			return t.clockIn(p)
		}

		n, err := t.clockIn(p)
		if err != nil {
			return n, err
		}
		if allIdle(p[:n]) {
			time.Sleep(t.pollInterval)
		}
		return n, nil
	}
}

// clockIn shifts filler out and returns what the radio shifted in
func (t *Transport) clockIn(p []byte) (int, error) {
	n := min(len(p), t.maxTx)
	filler := make([]byte, n)
	for i := range filler {
		filler[i] = idleByte
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed.Load() {
		return 0, xbee.ErrTransportClosed
	}
	if err := t.conn.Tx(filler, p[:n]); err != nil {
		return 0, fmt.Errorf("SPI read failed: %w", err)
	}
	return n, nil
}

func allIdle(data []byte) bool {
	for _, b := range data {
		if b != idleByte {
			return false
		}
	}
	return true
}

// Write shifts p out. Bytes the radio sends at the same time are kept for
// Read.
func (t *Transport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed.Load() {
		return 0, xbee.ErrTransportClosed
	}

	written := 0
	for written < len(p) {
		chunk := p[written:min(len(p), written+t.maxTx)]
		in := make([]byte, len(chunk))
		if err := t.conn.Tx(chunk, in); err != nil {
			return written, fmt.Errorf("SPI write failed: %w", err)
		}
		t.rx = append(t.rx, in...)
		written += len(chunk)
	}
	return written, nil
}

// Close releases the port. A Read in progress returns ErrTransportClosed.
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	if t.port == nil {
		return nil
	}
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("SPI close failed: %w", err)
	}
	return nil
}

// String returns the port name
func (t *Transport) String() string {
	return t.portName
}

var (
	_ xbee.Transport = (*Transport)(nil)
	_ attentionPin   = gpio.PinIn(nil)
)
