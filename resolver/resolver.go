// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package resolver

import (
	"context"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/resolver/cache"
	"github.com/bitmark-inc/resolver/fault"
	"github.com/bitmark-inc/resolver/keyspace"
	"github.com/bitmark-inc/resolver/storage"
)

// Resolver - the engine over one scope
//
// create via Factory.Resolver or Factory.ResolverAt; all methods are
// safe for concurrent use and any number of resolvers over the same
// scope, from this or other factories over the same storage.Store,
// stay consistent through that shared store
type Resolver struct {
	log     *logger.L
	factory *Factory

	scope    keyspace.Subspace
	scopeID  keyspace.ScopeID
	scopeKey string

	mappingSpace keyspace.Subspace
	reverseSpace keyspace.Subspace
	stateSpace   keyspace.Subspace

	alloc *allocator
}

// Scope - the resolver's subspace
func (r *Resolver) Scope() keyspace.Subspace {
	return r.scope
}

// Resolve - the value for a name, creating it if absent
func (r *Resolver) Resolve(ctx context.Context, name string) (uint64, error) {
	result, err := r.ResolveWithMetadata(ctx, name, Hooks{})
	if nil != err {
		return 0, err
	}
	return result.Value, nil
}

// ResolveWithMetadata - the full record for a name, creating it if
// absent
//
// on create the hooks run: PreWrite may veto the create and Metadata
// supplies the stored metadata; neither runs when the name exists
func (r *Resolver) ResolveWithMetadata(ctx context.Context, name string, hooks Hooks) (Result, error) {

	if err := r.refreshState(ctx); nil != err {
		return Result{}, err
	}

	if mapping, ok := r.factory.caches.GetForward(r.scopeID, name); ok {
		return Result{Value: mapping.Value, Metadata: mapping.Metadata}, nil
	}

	result := Result{}
	created := false

	err := r.factory.store.Run(ctx, func(txn storage.Transaction) error {
		created = false
		r.factory.metrics().AddWaitDirectoryResolve()

		existing, err := r.readForward(txn, name)
		if nil != err {
			return err
		}
		if nil != existing {
			result = *existing
			return nil
		}

		created = true
		result, err = r.create(ctx, txn, name, hooks)
		return err
	})
	if nil != err {
		return Result{}, err
	}

	if created {
		r.factory.metrics().AddCommit()
		r.log.Debugf("scope %s: created %q -> %d", r.scope, name, result.Value)
	}

	r.factory.caches.PutMapping(r.scopeID, name, cache.Mapping{
		Value:    result.Value,
		Metadata: result.Metadata,
	})
	return result, nil
}

// the create protocol: lock check, pre-write check, metadata hook,
// allocation, both records written
func (r *Resolver) create(ctx context.Context, txn storage.Transaction, name string, hooks Hooks) (Result, error) {

	st, err := readState(txn, r.stateSpace)
	if nil != err {
		return Result{}, err
	}
	r.factory.metrics().AddResolverStateRead()

	if !st.CanCreate() {
		return Result{}, fault.ErrResolverLocked
	}

	ok, err := hooks.preWrite(ctx, r)
	if nil != err {
		return Result{}, err
	}
	if !ok {
		return Result{}, fault.ErrPreWriteCheckFailed
	}

	metadata := hooks.metadata(name)

	value, err := r.alloc.allocate(txn, st)
	if nil != err {
		return Result{}, err
	}

	r.writeMapping(txn, name, value, metadata)
	return Result{Value: value, Metadata: metadata}, nil
}

// MustResolve - the value for a name that must already exist
//
// never creates and never runs hooks
func (r *Resolver) MustResolve(ctx context.Context, name string) (uint64, error) {

	if err := r.refreshState(ctx); nil != err {
		return 0, err
	}

	if mapping, ok := r.factory.caches.GetForward(r.scopeID, name); ok {
		return mapping.Value, nil
	}

	result := Result{}
	err := r.factory.store.Run(ctx, func(txn storage.Transaction) error {
		existing, err := r.readForward(txn, name)
		if nil != err {
			return err
		}
		if nil == existing {
			return fault.ErrNameNotFound
		}
		result = *existing
		return nil
	})
	if nil != err {
		return 0, err
	}

	r.factory.caches.PutMapping(r.scopeID, name, cache.Mapping{
		Value:    result.Value,
		Metadata: result.Metadata,
	})
	return result.Value, nil
}

// MustResolveTxn - MustResolve inside the caller's transaction
func (r *Resolver) MustResolveTxn(txn storage.Transaction, name string) (uint64, error) {
	existing, err := r.readForward(txn, name)
	if nil != err {
		return 0, err
	}
	if nil == existing {
		return 0, fault.ErrNameNotFound
	}
	return existing.Value, nil
}

// Read - the record for a name, nil if absent; never creates
func (r *Resolver) Read(ctx context.Context, name string) (*Result, error) {

	if err := r.refreshState(ctx); nil != err {
		return nil, err
	}

	if mapping, ok := r.factory.caches.GetForward(r.scopeID, name); ok {
		return &Result{Value: mapping.Value, Metadata: mapping.Metadata}, nil
	}

	var result *Result
	err := r.factory.store.Run(ctx, func(txn storage.Transaction) error {
		var err error
		result, err = r.readForward(txn, name)
		return err
	})
	if nil != err {
		return nil, err
	}

	if nil != result {
		r.factory.caches.PutMapping(r.scopeID, name, cache.Mapping{
			Value:    result.Value,
			Metadata: result.Metadata,
		})
	}
	return result, nil
}

// Create - create a name that must not already exist
func (r *Resolver) Create(ctx context.Context, name string, hooks Hooks) (Result, error) {

	result := Result{}
	err := r.factory.store.Run(ctx, func(txn storage.Transaction) error {
		existing, err := r.readForward(txn, name)
		if nil != err {
			return err
		}
		if nil != existing {
			return fault.ErrNameAlreadyExists
		}

		result, err = r.create(ctx, txn, name, hooks)
		return err
	})
	if nil != err {
		return Result{}, err
	}

	r.factory.metrics().AddCommit()
	r.factory.caches.PutMapping(r.scopeID, name, cache.Mapping{
		Value:    result.Value,
		Metadata: result.Metadata,
	})
	return result, nil
}

// ReverseLookup - the name a value was assigned to
func (r *Resolver) ReverseLookup(ctx context.Context, value uint64) (string, error) {

	if err := r.refreshState(ctx); nil != err {
		return "", err
	}

	if name, ok := r.factory.caches.GetReverse(r.scopeID, value); ok {
		return name, nil
	}

	name := ""
	err := r.factory.store.Run(ctx, func(txn storage.Transaction) error {
		found := false
		var err error
		name, found, err = r.readReverse(txn, value)
		if nil != err {
			return err
		}
		if !found {
			return fault.ErrValueNotFound
		}
		return nil
	})
	if nil != err {
		return "", err
	}

	r.factory.caches.PutReverse(r.scopeID, value, name)
	return name, nil
}

// SetMapping - force a specific name to value mapping inside the
// caller's transaction
//
// idempotent when an identical mapping exists; a divergent forward or
// reverse record is a conflict
func (r *Resolver) SetMapping(txn storage.Transaction, name string, value uint64) error {

	existing, err := r.readForward(txn, name)
	if nil != err {
		return err
	}
	if nil != existing {
		if existing.Value != value {
			return fault.ErrMappingAlreadyExists
		}
		// idempotent, but both halves must really be there
		reverseName, found, err := r.readReverse(txn, value)
		if nil != err {
			return err
		}
		if !found || reverseName != name {
			r.log.Criticalf("scope %s: forward record %q -> %d has no matching reverse record", r.scope, name, value)
			return fault.ErrReverseEntryMissing
		}
		return nil
	}

	reverseName, found, err := r.readReverse(txn, value)
	if nil != err {
		return err
	}
	if found {
		if reverseName == name {
			// the forward half vanished: report, never heal
			r.log.Criticalf("scope %s: reverse record for %d names %q but forward record is missing", r.scope, value, name)
			return fault.ErrForwardEntryMissing
		}
		return fault.ErrReverseMappingAlreadyExists
	}

	r.writeMapping(txn, name, value, nil)
	return nil
}

// SetWindow - raise the allocation floor; prior values stay valid
func (r *Resolver) SetWindow(ctx context.Context, window uint64) error {
	return r.mutateState(ctx, func(txn storage.Transaction, st *State) error {
		if window > st.WindowHigh {
			st.WindowHigh = window
		}
		return r.alloc.raiseFloor(txn, window)
	})
}

// IncrementVersion - bump the state version so every cache, in this
// and other processes, refreshes within the staleness bound
func (r *Resolver) IncrementVersion(ctx context.Context) error {
	return r.mutateState(ctx, func(txn storage.Transaction, st *State) error {
		return nil
	})
}

// EnableWriteLock - block creates until DisableWriteLock
func (r *Resolver) EnableWriteLock(ctx context.Context) error {
	return r.mutateState(ctx, func(txn storage.Transaction, st *State) error {
		if Retired == st.Lock {
			return fault.ErrResolverRetired
		}
		st.Lock = WriteLocked
		return nil
	})
}

// DisableWriteLock - allow creates again
func (r *Resolver) DisableWriteLock(ctx context.Context) error {
	return r.mutateState(ctx, func(txn storage.Transaction, st *State) error {
		if Retired == st.Lock {
			return fault.ErrResolverRetired
		}
		st.Lock = Unlocked
		return nil
	})
}

// ExclusiveLock - permanently retire the scope
//
// only an unlocked scope can be retired and of any number of
// concurrent callers at most one succeeds
func (r *Resolver) ExclusiveLock(ctx context.Context) error {
	return r.mutateState(ctx, func(txn storage.Transaction, st *State) error {
		if Unlocked != st.Lock {
			return fault.ErrResolverNotUnlocked
		}
		st.Lock = Retired
		return nil
	})
}

// UpdateMetadataAndVersion - replace an existing entry's metadata and
// bump the version so caches pick up the change
func (r *Resolver) UpdateMetadataAndVersion(ctx context.Context, name string, metadata []byte) error {
	return r.mutateState(ctx, func(txn storage.Transaction, st *State) error {
		existing, err := r.readForward(txn, name)
		if nil != err {
			return err
		}
		if nil == existing {
			return fault.ErrNameNotFound
		}
		txn.Set(r.forwardKey(name), packEntry(existing.Value, metadata))
		return nil
	})
}

// GetVersion - the state version within the staleness bound
func (r *Resolver) GetVersion(ctx context.Context) (uint32, error) {
	st, err := r.factory.scopeState(ctx, r)
	if nil != err {
		return 0, err
	}
	return st.Version, nil
}

// run one state mutation transactionally; every mutation bumps the
// version and refreshes the local state cache
func (r *Resolver) mutateState(ctx context.Context, mutate func(storage.Transaction, *State) error) error {

	final := State{}
	err := r.factory.store.Run(ctx, func(txn storage.Transaction) error {
		st, err := readState(txn, r.stateSpace)
		if nil != err {
			return err
		}
		r.factory.metrics().AddResolverStateRead()

		err = mutate(txn, &st)
		if nil != err {
			return err
		}

		st.Version += 1
		writeState(txn, r.stateSpace, st)
		final = st
		return nil
	})
	if nil != err {
		return err
	}

	r.factory.metrics().AddCommit()
	r.factory.noteState(r, final)
	return nil
}

// make sure the cached state is inside the staleness bound
func (r *Resolver) refreshState(ctx context.Context) error {
	_, err := r.factory.scopeState(ctx, r)
	return err
}
