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

// Package uart implements the go-xbee Transport over a serial port. Most
// XBee modules attach through a USB bridge (FTDI, CP210x) or straight to a
// host UART.
package uart

import (
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-xbee"
	"github.com/ZaparooProject/go-xbee/internal/syncutil"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// DefaultBaudRate is the XBee factory setting (ATBD 3)
const DefaultBaudRate = 9600

// Option configures a Transport
type Option func(*config)

type config struct {
	mode        serial.Mode
	readTimeout time.Duration
}

// WithBaudRate sets the line rate. It must match the radio's BD register.
func WithBaudRate(baud int) Option {
	return func(c *config) {
		c.mode.BaudRate = baud
	}
}

// WithReadTimeout sets how long a single port read waits before the
// transport checks whether it was closed. Read itself still blocks until
// data arrives.
func WithReadTimeout(d time.Duration) Option {
	return func(c *config) {
		c.readTimeout = d
	}
}

// isWindows returns true if running on Windows
func isWindows() bool {
	return runtime.GOOS == "windows"
}

// defaultReadTimeout returns the poll interval for the current platform
func defaultReadTimeout() time.Duration {
	if isWindows() {
		return 100 * time.Millisecond // Windows USB serial drivers need longer
	}
	return 50 * time.Millisecond
}

// Transport implements xbee.Transport for UART communication.
//
// Read and Write may run concurrently, which is how a Device in async mode
// uses it. Close unblocks a pending Read.
type Transport struct {
	port     serial.Port
	portName string
	writeMu  syncutil.Mutex
	closed   atomic.Bool
}

// New opens portName at 8N1.
func New(portName string, opts ...Option) (*Transport, error) {
	cfg := config{
		mode: serial.Mode{
			BaudRate: DefaultBaudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		},
		readTimeout: defaultReadTimeout(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	port, err := serial.Open(portName, &cfg.mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open UART port %s: %w", portName, err)
	}

	if err := port.SetReadTimeout(cfg.readTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set UART read timeout: %w", err)
	}

	xbee.Debugf("UART %s open at %d baud", portName, cfg.mode.BaudRate)
	return newTransport(port, portName), nil
}

func newTransport(port serial.Port, portName string) *Transport {
	return &Transport{
		port:     port,
		portName: portName,
	}
}

// Read blocks until at least one byte arrives or the transport is closed.
// Read timeouts on the port are absorbed here.
func (t *Transport) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for {
		if t.closed.Load() {
			return 0, xbee.ErrTransportClosed
		}

		n, err := t.port.Read(p)
		if err != nil {
			if t.closed.Load() {
				return 0, xbee.ErrTransportClosed
			}
			if isInterruptedSystemCall(err) {
				continue
			}
			return n, fmt.Errorf("UART read failed: %w", err)
		}
		if n > 0 {
			return n, nil
		}
	}
}

// Write sends p and waits for the OS to hand it to the UART
func (t *Transport) Write(p []byte) (int, error) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.closed.Load() {
		return 0, xbee.ErrTransportClosed
	}

	n, err := t.port.Write(p)
	if err != nil {
		return n, fmt.Errorf("UART write failed: %w", err)
	}
	if n != len(p) {
		return n, nil
	}

	if err := t.drainWithRetry("write"); err != nil {
		return n, err
	}
	return n, nil
}

// SetReadTimeout changes the poll interval of the underlying port
func (t *Transport) SetReadTimeout(timeout time.Duration) error {
	if err := t.port.SetReadTimeout(timeout); err != nil {
		return fmt.Errorf("UART set timeout failed: %w", err)
	}
	return nil
}

// Close closes the port. A Read in progress returns ErrTransportClosed.
// Closing twice is a no-op.
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	if t.port == nil {
		return nil
	}
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("UART close failed: %w", err)
	}
	return nil
}

// String returns the port name
func (t *Transport) String() string {
	return t.portName
}

// isInterruptedSystemCall checks if an error is caused by an interrupted system call
func isInterruptedSystemCall(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "interrupted system call") ||
		strings.Contains(errStr, "eintr")
}

// drainWithRetry performs port drain with retry logic for interrupted system calls
func (t *Transport) drainWithRetry(operation string) error {
	const maxRetries = 3
	baseDelay := 2 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := t.port.Drain()
		if err == nil {
			return nil
		}

		if isInterruptedSystemCall(err) && attempt < maxRetries-1 {
			time.Sleep(baseDelay * time.Duration(1<<attempt)) // 2ms, 4ms
			continue
		}

		return fmt.Errorf("UART %s drain failed: %w", operation, err)
	}

	return fmt.Errorf("UART %s drain failed after %d retries", operation, maxRetries)
}

// PortInfo describes a serial port found on the system
type PortInfo struct {
	Name         string
	VID          string
	PID          string
	SerialNumber string
	Product      string
	IsUSB        bool
}

// Ports lists the serial ports on this system. USB ports carry their
// vendor and product IDs, which helps tell an XBee adapter apart from
// other devices. Nothing is opened.
func Ports() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	return ports, nil
}

// String formats the port for a listing
func (p PortInfo) String() string {
	if !p.IsUSB {
		return p.Name
	}
	s := fmt.Sprintf("%s [%s:%s]", p.Name, p.VID, p.PID)
	if p.Product != "" {
		s += " " + p.Product
	}
	if p.SerialNumber != "" {
		s += " s/n " + p.SerialNumber
	}
	return s
}

var _ xbee.Transport = (*Transport)(nil)
