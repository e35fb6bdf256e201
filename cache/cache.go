// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/bitmark-inc/resolver/fault"
	"github.com/bitmark-inc/resolver/keyspace"
)

// DefaultSize - entries per direction unless configured otherwise
const DefaultSize = 100

// Mapping - one cached forward entry
type Mapping struct {
	Value    uint64
	Metadata []byte
}

type forwardKey struct {
	scope keyspace.ScopeID
	name  string
}

type reverseKey struct {
	scope keyspace.ScopeID
	value uint64
}

type forwardEntry struct {
	generation uint64
	mapping    Mapping
}

type reverseEntry struct {
	generation uint64
	name       string
}

// Directory - the pair of scoped caches
type Directory struct {
	sync.RWMutex // protects generations

	forward     *lru.Cache
	reverse     *lru.Cache
	generations map[keyspace.ScopeID]uint64
}

// New - create a directory with the given per-direction size
func New(size int) (*Directory, error) {
	if size <= 0 {
		return nil, fault.ErrCacheSizeInvalid
	}

	forward, err := lru.New(size)
	if nil != err {
		return nil, err
	}
	reverse, err := lru.New(size)
	if nil != err {
		return nil, err
	}

	return &Directory{
		forward:     forward,
		reverse:     reverse,
		generations: make(map[keyspace.ScopeID]uint64),
	}, nil
}

// current generation of a scope
func (d *Directory) generation(scope keyspace.ScopeID) uint64 {
	d.RLock()
	defer d.RUnlock()
	return d.generations[scope]
}

// PutMapping - cache a committed mapping in both directions
//
// must only be called for mappings already durable in the store
func (d *Directory) PutMapping(scope keyspace.ScopeID, name string, mapping Mapping) {
	generation := d.generation(scope)
	d.forward.Add(forwardKey{scope: scope, name: name}, forwardEntry{
		generation: generation,
		mapping:    mapping,
	})
	d.reverse.Add(reverseKey{scope: scope, value: mapping.Value}, reverseEntry{
		generation: generation,
		name:       name,
	})
}

// PutReverse - cache only the value to name direction
func (d *Directory) PutReverse(scope keyspace.ScopeID, value uint64, name string) {
	d.reverse.Add(reverseKey{scope: scope, value: value}, reverseEntry{
		generation: d.generation(scope),
		name:       name,
	})
}

// GetForward - look up a name, missing on stale generation
func (d *Directory) GetForward(scope keyspace.ScopeID, name string) (Mapping, bool) {
	key := forwardKey{scope: scope, name: name}
	item, ok := d.forward.Get(key)
	if !ok {
		return Mapping{}, false
	}
	entry := item.(forwardEntry)
	if entry.generation != d.generation(scope) {
		d.forward.Remove(key)
		return Mapping{}, false
	}
	return entry.mapping, true
}

// GetReverse - look up a value, missing on stale generation
func (d *Directory) GetReverse(scope keyspace.ScopeID, value uint64) (string, bool) {
	key := reverseKey{scope: scope, value: value}
	item, ok := d.reverse.Get(key)
	if !ok {
		return "", false
	}
	entry := item.(reverseEntry)
	if entry.generation != d.generation(scope) {
		d.reverse.Remove(key)
		return "", false
	}
	return entry.name, true
}

// InvalidateScope - drop every entry of one scope
func (d *Directory) InvalidateScope(scope keyspace.ScopeID) {
	d.Lock()
	d.generations[scope] += 1
	d.Unlock()
}

// Clear - drop everything
func (d *Directory) Clear() {
	d.Lock()
	d.generations = make(map[keyspace.ScopeID]uint64)
	d.Unlock()

	d.forward.Purge()
	d.reverse.Purge()
}

// Len - current entry counts, forward then reverse
func (d *Directory) Len() (int, int) {
	return d.forward.Len(), d.reverse.Len()
}
