//go:build !deadlock

// Package syncutil provides the mutex types used by go-xbee sessions and test
// transports. By default the standard sync types are used with no overhead.
// Build with -tags=deadlock to enable github.com/sasha-s/go-deadlock.
package syncutil

import "sync"

// Mutex wraps sync.Mutex. Build with -tags=deadlock for deadlock detection.
//
//nolint:gocritic // Embedding exposes Lock/Unlock so *Mutex is a sync.Locker
type Mutex struct {
	sync.Mutex
}

// RWMutex wraps sync.RWMutex. Build with -tags=deadlock for deadlock detection.
//
//nolint:gocritic // Embedding exposes the full RWMutex method set
type RWMutex struct {
	sync.RWMutex
}
