//go:build deadlock

// Package syncutil provides the mutex types used by go-xbee sessions and test
// transports. This file is compiled when building with -tags=deadlock and
// routes every lock through go-deadlock so a stuck Halt or reader shows up
// with both goroutine stacks.
package syncutil

import deadlock "github.com/sasha-s/go-deadlock"

// Mutex wraps deadlock.Mutex for deadlock detection.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex wraps deadlock.RWMutex for deadlock detection.
type RWMutex struct {
	deadlock.RWMutex
}
