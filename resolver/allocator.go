// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package resolver

import (
	"math/rand"
	"sync"
	"time"

	"github.com/bitmark-inc/resolver/fault"
	"github.com/bitmark-inc/resolver/keyspace"
	"github.com/bitmark-inc/resolver/storage"
	"github.com/bitmark-inc/resolver/tuple"
)

// allocation windows are scanned with a limited number of random
// probes; a commit conflict retries with fresh randomness
const (
	allocationWindow = 64 // slots per window
	allocationProbes = 16 // slots tried before moving up a window
	windowScanLimit  = 64 // windows tried before giving up
)

// allocator - assigns unused values above the window floor
//
// uniqueness rides on the store: a probe of a free slot is a read, so
// two transactions claiming the same slot cannot both commit
type allocator struct {
	sync.Mutex // protects rand

	reverseSpace keyspace.Subspace
	stateSpace   keyspace.Subspace
	rand         *rand.Rand
}

func newAllocator(reverseSpace keyspace.Subspace, stateSpace keyspace.Subspace) *allocator {
	return &allocator{
		reverseSpace: reverseSpace,
		stateSpace:   stateSpace,
		rand:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// allocate - claim a fresh value inside the transaction
//
// st must be the state read inside the same transaction so that a
// concurrent window raise forces a conflict instead of a low value
func (a *allocator) allocate(txn storage.Transaction, st State) (uint64, error) {

	counterKey := a.stateSpace.Key(allocationTail)
	next, err := readWindowStart(txn, counterKey)
	if nil != err {
		return 0, err
	}

	window := next
	if st.WindowHigh > window {
		window = st.WindowHigh
	}

	for i := 0; i < windowScanLimit; i += 1 {

		for _, slot := range a.probeOrder() {
			candidate := window + uint64(slot)

			used, err := txn.Has(a.reverseSpace.Key(tuple.Pack(candidate)))
			if nil != err {
				return 0, err
			}
			if used {
				continue
			}

			// move the shared floor up to this window so later
			// allocations skip the filled ones below
			if window > next {
				txn.Set(counterKey, tuple.Pack(window))
			}
			return candidate, nil
		}

		window += allocationWindow
	}

	// every probe hit an occupied slot: retry from a fresh snapshot
	return 0, fault.ErrTransactionConflict
}

// raise the shared floor to at least the given value
func (a *allocator) raiseFloor(txn storage.Transaction, floor uint64) error {
	counterKey := a.stateSpace.Key(allocationTail)
	next, err := readWindowStart(txn, counterKey)
	if nil != err {
		return err
	}
	if floor > next {
		txn.Set(counterKey, tuple.Pack(floor))
	}
	return nil
}

// a random selection of distinct slots inside one window
func (a *allocator) probeOrder() []int {
	a.Lock()
	defer a.Unlock()
	return a.rand.Perm(allocationWindow)[:allocationProbes]
}

func readWindowStart(txn storage.Transaction, counterKey []byte) (uint64, error) {
	data, err := txn.Get(counterKey)
	if nil != err {
		return 0, err
	}
	if nil == data {
		return 0, nil
	}

	items, err := tuple.Unpack(data)
	if nil != err || 1 != len(items) {
		return 0, fault.ErrResolverStateCorrupt
	}
	start, ok := items[0].(uint64)
	if !ok {
		return 0, fault.ErrResolverStateCorrupt
	}
	return start, nil
}
