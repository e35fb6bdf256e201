// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package counter - event counters for resolver instrumentation
package counter

import (
	"sync/atomic"
)

// Metrics - the event counters a resolver reports into
//
// a nil *Metrics is a valid no-op sink; counts are only meaningful
// through Snapshot
type Metrics struct {
	directoryRead        uint64 // forward or reverse mapping read from the store
	resolverStateRead    uint64 // state record read from the store
	commit               uint64 // transaction commits
	waitDirectoryResolve uint64 // operations that had to open a transaction
}

// Snapshot - a point in time copy of every counter
type Snapshot struct {
	DirectoryRead        uint64
	ResolverStateRead    uint64
	Commit               uint64
	WaitDirectoryResolve uint64
}

// AddDirectoryRead - count a mapping read, nil safe
func (m *Metrics) AddDirectoryRead() {
	if nil != m {
		atomic.AddUint64(&m.directoryRead, 1)
	}
}

// AddResolverStateRead - count a state record read, nil safe
func (m *Metrics) AddResolverStateRead() {
	if nil != m {
		atomic.AddUint64(&m.resolverStateRead, 1)
	}
}

// AddCommit - count a transaction commit, nil safe
func (m *Metrics) AddCommit() {
	if nil != m {
		atomic.AddUint64(&m.commit, 1)
	}
}

// AddWaitDirectoryResolve - count a store round trip, nil safe
func (m *Metrics) AddWaitDirectoryResolve() {
	if nil != m {
		atomic.AddUint64(&m.waitDirectoryResolve, 1)
	}
}

// Snapshot - read every counter at once, nil safe
func (m *Metrics) Snapshot() Snapshot {
	if nil == m {
		return Snapshot{}
	}
	return Snapshot{
		DirectoryRead:        atomic.LoadUint64(&m.directoryRead),
		ResolverStateRead:    atomic.LoadUint64(&m.resolverStateRead),
		Commit:               atomic.LoadUint64(&m.commit),
		WaitDirectoryResolve: atomic.LoadUint64(&m.waitDirectoryResolve),
	}
}
