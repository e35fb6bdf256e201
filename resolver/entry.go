// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package resolver

import (
	"github.com/bitmark-inc/resolver/fault"
	"github.com/bitmark-inc/resolver/storage"
	"github.com/bitmark-inc/resolver/tuple"
)

// Result - a resolved mapping
type Result struct {
	Value    uint64
	Metadata []byte
}

func packEntry(value uint64, metadata []byte) []byte {
	if nil == metadata {
		return tuple.Pack(value, nil)
	}
	return tuple.Pack(value, metadata)
}

func unpackEntry(data []byte) (Result, error) {
	items, err := tuple.Unpack(data)
	if nil != err || 2 != len(items) {
		return Result{}, fault.ErrResolverStateCorrupt
	}

	value, ok := items[0].(uint64)
	if !ok {
		return Result{}, fault.ErrResolverStateCorrupt
	}

	switch metadata := items[1].(type) {
	case nil:
		return Result{Value: value}, nil
	case []byte:
		return Result{Value: value, Metadata: metadata}, nil
	default:
		return Result{}, fault.ErrResolverStateCorrupt
	}
}

func (r *Resolver) forwardKey(name string) []byte {
	return r.mappingSpace.Key(tuple.Pack(name))
}

func (r *Resolver) reverseKey(value uint64) []byte {
	return r.reverseSpace.Key(tuple.Pack(value))
}

// read the forward record for a name, nil result if absent
func (r *Resolver) readForward(txn storage.Transaction, name string) (*Result, error) {
	data, err := txn.Get(r.forwardKey(name))
	if nil != err {
		return nil, err
	}
	r.factory.metrics().AddDirectoryRead()
	if nil == data {
		return nil, nil
	}

	result, err := unpackEntry(data)
	if nil != err {
		r.log.Criticalf("scope %s: corrupt forward record for name: %q", r.scope, name)
		return nil, err
	}
	return &result, nil
}

// read the reverse record for a value
func (r *Resolver) readReverse(txn storage.Transaction, value uint64) (string, bool, error) {
	data, err := txn.Get(r.reverseKey(value))
	if nil != err {
		return "", false, err
	}
	r.factory.metrics().AddDirectoryRead()
	if nil == data {
		return "", false, nil
	}

	items, err := tuple.Unpack(data)
	if nil != err || 1 != len(items) {
		r.log.Criticalf("scope %s: corrupt reverse record for value: %d", r.scope, value)
		return "", false, fault.ErrResolverStateCorrupt
	}
	name, ok := items[0].(string)
	if !ok {
		r.log.Criticalf("scope %s: corrupt reverse record for value: %d", r.scope, value)
		return "", false, fault.ErrResolverStateCorrupt
	}
	return name, true, nil
}

// write both directions of a new mapping
func (r *Resolver) writeMapping(txn storage.Transaction, name string, value uint64, metadata []byte) {
	txn.Set(r.forwardKey(name), packEntry(value, metadata))
	txn.Set(r.reverseKey(value), tuple.Pack(name))
}
