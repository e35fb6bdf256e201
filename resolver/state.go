// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package resolver

import (
	"github.com/bitmark-inc/resolver/fault"
	"github.com/bitmark-inc/resolver/keyspace"
	"github.com/bitmark-inc/resolver/storage"
	"github.com/bitmark-inc/resolver/tuple"
)

// LockState - the scope's write lock
type LockState uint8

// lock states; Retired is terminal
const (
	Unlocked LockState = iota
	WriteLocked
	Retired
	invalidLockState
)

func (l LockState) String() string {
	switch l {
	case Unlocked:
		return "unlocked"
	case WriteLocked:
		return "write-locked"
	case Retired:
		return "retired"
	default:
		return "invalid"
	}
}

// State - the persistent per-scope control record
//
// an absent record reads as the zero State
type State struct {
	Version    uint32
	Lock       LockState
	WindowHigh uint64
}

// CanCreate - creates are only allowed while unlocked
func (s State) CanCreate() bool {
	return Unlocked == s.Lock
}

// tail of the allocation window record under the state subspace
var allocationTail = tuple.Pack("alloc")

func (s State) pack() []byte {
	return tuple.Pack(uint64(s.Version), uint64(s.Lock), s.WindowHigh)
}

func unpackState(data []byte) (State, error) {
	items, err := tuple.Unpack(data)
	if nil != err || 3 != len(items) {
		return State{}, fault.ErrResolverStateCorrupt
	}

	version, ok := items[0].(uint64)
	if !ok || version > 0xFFFFFFFF {
		return State{}, fault.ErrResolverStateCorrupt
	}
	lock, ok := items[1].(uint64)
	if !ok || lock >= uint64(invalidLockState) {
		return State{}, fault.ErrResolverStateCorrupt
	}
	window, ok := items[2].(uint64)
	if !ok {
		return State{}, fault.ErrResolverStateCorrupt
	}

	return State{
		Version:    uint32(version),
		Lock:       LockState(lock),
		WindowHigh: window,
	}, nil
}

// read the state record inside a transaction
func readState(txn storage.Transaction, stateSpace keyspace.Subspace) (State, error) {
	data, err := txn.Get(stateSpace.Prefix())
	if nil != err {
		return State{}, err
	}
	if nil == data {
		return State{}, nil
	}
	return unpackState(data)
}

// write the state record inside a transaction
func writeState(txn storage.Transaction, stateSpace keyspace.Subspace, st State) {
	txn.Set(stateSpace.Prefix(), st.pack())
}
