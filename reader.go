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

import "github.com/petermattis/goid"

// ReaderState is the lifecycle state of a Device's background reader
type ReaderState int

const (
	// ReaderIdle means no callback was configured; the Device is synchronous
	ReaderIdle ReaderState = iota
	// ReaderRunning means the reader goroutine is decoding frames
	ReaderRunning
	// ReaderStopping means Halt was called and the reader is finishing its
	// current read
	ReaderStopping
	// ReaderStopped means the reader goroutine has exited
	ReaderStopped
)

func (s ReaderState) String() string {
	switch s {
	case ReaderIdle:
		return "idle"
	case ReaderRunning:
		return "running"
	case ReaderStopping:
		return "stopping"
	case ReaderStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ReaderStats counts what the background reader has seen
type ReaderStats struct {
	FramesDelivered int64 // Frames passed to the callback
	FrameErrors     int64 // Decode and translation errors, fatal or not
}

// State returns the current reader state
func (d *Device) State() ReaderState {
	d.stateMu.RLock()
	defer d.stateMu.RUnlock()
	return d.state
}

// Stats returns the background reader counters
func (d *Device) Stats() ReaderStats {
	return ReaderStats{
		FramesDelivered: d.framesRead.Load(),
		FrameErrors:     d.frameErrors.Load(),
	}
}

// startReader moves Idle -> Running and starts the only reader goroutine
// this Device will ever have.
func (d *Device) startReader() {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()

	if d.state != ReaderIdle {
		return
	}
	d.state = ReaderRunning
	d.wg.Add(1)
	go d.readLoop()
}

func (d *Device) stopRequested() bool {
	return d.State() == ReaderStopping
}

// readLoop delivers frames until Halt is called or the transport fails
func (d *Device) readLoop() {
	defer d.wg.Done()
	d.readerGID.Store(goid.Get())
	defer func() {
		d.stateMu.Lock()
		d.state = ReaderStopped
		d.stateMu.Unlock()
	}()

	for !d.stopRequested() {
		resp, err := d.WaitReadFrame()

		// Halt was requested while the read was in flight
		if d.stopRequested() {
			return
		}

		if err != nil {
			d.frameErrors.Add(1)
			d.reportError(err)
			if IsFatal(err) {
				Debugf("reader on %s stopping: %v", d.portName, err)
				return
			}
			continue
		}

		d.framesRead.Add(1)
		d.callback(resp)
	}
}

func (d *Device) reportError(err error) {
	if d.errorCallback == nil {
		Debugf("reader dropped error: %v", err)
		return
	}
	d.errorCallback(err)
}

// Halt stops the background reader and waits for it to exit. The reader
// finishes its current frame read first, so Halt blocks until that read
// returns; close the transport to force it. Halt does not
// close the transport. Calling Halt on a synchronous Device, or a second
// time, does nothing.
//
// Called from the callback or error callback, Halt only requests the stop
// and returns at once; the reader exits when the callback returns.
func (d *Device) Halt() {
	d.stateMu.Lock()
	if d.state == ReaderRunning {
		d.state = ReaderStopping
	}
	d.stateMu.Unlock()

	// The reader goroutine cannot wait for itself
	if d.readerGID.Load() == goid.Get() {
		return
	}

	// Also covers a reader that is exiting on its own after a fatal error
	d.wg.Wait()
}
