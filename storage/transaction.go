// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"bytes"
	"sort"

	"github.com/syndtr/goleveldb/leveldb"
	ldb_util "github.com/syndtr/goleveldb/leveldb/util"

	"github.com/bitmark-inc/resolver/fault"
)

// Element - a binary key/value pair from a range read
type Element struct {
	Key   []byte
	Value []byte
}

// Transaction - a serialisable view of the store
//
// reads observe the transaction's own buffered writes; nothing is
// durable until Store.Run commits
type Transaction interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Set(key []byte, value []byte)
	Delete(key []byte)
	ClearRange(low []byte, high []byte) error
	Scan(low []byte, high []byte, limit int) ([]Element, error)
	LastInRange(low []byte, high []byte) (Element, bool, error)
}

// a buffered mutation
type writeOp struct {
	value  []byte
	remove bool
}

type transaction struct {
	view     ReadAccess
	beginSeq uint64

	writes     map[string]writeOp
	readKeys   map[string]struct{}
	readRanges []keyRange
}

type keyRange struct {
	low  string
	high string
}

func newTransactionAt(view ReadAccess, beginSeq uint64) *transaction {
	return &transaction{
		view:     view,
		beginSeq: beginSeq,
		writes:   make(map[string]writeOp),
		readKeys: make(map[string]struct{}),
	}
}

// Get - read one record, nil if absent
func (t *transaction) Get(key []byte) ([]byte, error) {
	t.readKeys[string(key)] = struct{}{}

	if op, ok := t.writes[string(key)]; ok {
		if op.remove {
			return nil, nil
		}
		return copyBytes(op.value), nil
	}

	value, err := t.view.Get(key)
	if leveldb.ErrNotFound == err {
		return nil, nil
	} else if nil != err {
		return nil, err
	}
	return copyBytes(value), nil
}

// Has - check whether a record exists
func (t *transaction) Has(key []byte) (bool, error) {
	t.readKeys[string(key)] = struct{}{}

	if op, ok := t.writes[string(key)]; ok {
		return !op.remove, nil
	}
	return t.view.Has(key)
}

// Set - buffer a write
func (t *transaction) Set(key []byte, value []byte) {
	t.writes[string(key)] = writeOp{value: copyBytes(value)}
}

// Delete - buffer a removal
func (t *transaction) Delete(key []byte) {
	t.writes[string(key)] = writeOp{remove: true}
}

// ClearRange - buffer removal of every record in [low, high)
func (t *transaction) ClearRange(low []byte, high []byte) error {
	if bytes.Compare(low, high) >= 0 && nil != high {
		return fault.ErrInvalidKeyRange
	}
	elements, err := t.Scan(low, high, 0)
	if nil != err {
		return err
	}
	for _, e := range elements {
		t.Delete(e.Key)
	}
	return nil
}

// Scan - return up to limit records from [low, high) in key order
//
// limit <= 0 means no limit; buffered writes are merged in
func (t *transaction) Scan(low []byte, high []byte, limit int) ([]Element, error) {
	if nil != high && bytes.Compare(low, high) >= 0 {
		return nil, fault.ErrInvalidKeyRange
	}
	t.readRanges = append(t.readRanges, keyRange{low: string(low), high: string(high)})

	merged := make(map[string][]byte)

	iter := t.view.Iterator(&ldb_util.Range{Start: low, Limit: high})
	for iter.Next() {
		// contents of the returned slices must not be modified, and are
		// only valid until the next call to Next
		key := iter.Key()
		if bytes.Equal(key, versionKey) {
			continue
		}
		merged[string(key)] = copyBytes(iter.Value())
	}
	iter.Release()
	err := iter.Error()
	if nil != err {
		return nil, err
	}

	// overlay this transaction's own writes
	for key, op := range t.writes {
		if !inRange(key, string(low), string(high)) {
			continue
		}
		if op.remove {
			delete(merged, key)
		} else {
			merged[key] = copyBytes(op.value)
		}
	}

	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}

	results := make([]Element, len(keys))
	for i, key := range keys {
		results[i] = Element{
			Key:   []byte(key),
			Value: merged[key],
		}
	}
	return results, nil
}

// LastInRange - the highest keyed record in [low, high)
func (t *transaction) LastInRange(low []byte, high []byte) (Element, bool, error) {
	elements, err := t.Scan(low, high, 0)
	if nil != err {
		return Element{}, false, err
	}
	if 0 == len(elements) {
		return Element{}, false, nil
	}
	return elements[len(elements)-1], true, nil
}

// true if key lies in [low, high); empty high means unbounded
func inRange(key string, low string, high string) bool {
	if key < low {
		return false
	}
	return "" == high || key < high
}

// did this transaction read the given committed key
func (t *transaction) observed(key string) bool {
	if _, ok := t.readKeys[key]; ok {
		return true
	}
	for _, r := range t.readRanges {
		if inRange(key, r.low, r.high) {
			return true
		}
	}
	return false
}

// release the underlying snapshot
func (t *transaction) release() {
	if nil != t.view {
		t.view.Release()
		t.view = nil
	}
}

// batch - roll the buffered writes into a LevelDB write batch
func (t *transaction) batch() (*leveldb.Batch, []string) {
	batch := new(leveldb.Batch)
	keys := make([]string, 0, len(t.writes))
	for key, op := range t.writes {
		if op.remove {
			batch.Delete([]byte(key))
		} else {
			batch.Put([]byte(key), op.value)
		}
		keys = append(keys, key)
	}
	return batch, keys
}

func copyBytes(data []byte) []byte {
	if nil == data {
		return nil
	}
	c := make([]byte, len(data))
	copy(c, data)
	return c
}
