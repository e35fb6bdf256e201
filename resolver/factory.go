// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package resolver

import (
	"context"
	"sync"
	"time"

	"github.com/bitmark-inc/logger"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/bitmark-inc/resolver/background"
	"github.com/bitmark-inc/resolver/cache"
	"github.com/bitmark-inc/resolver/counter"
	"github.com/bitmark-inc/resolver/keyspace"
	"github.com/bitmark-inc/resolver/storage"
)

// default tuning
const (
	defaultRefreshPeriod = 30 * time.Second
)

// Config - engine tuning; the zero value selects all defaults
type Config struct {
	CacheSize     int              // mapping cache entries per direction, default 100
	RefreshPeriod time.Duration    // state staleness bound, default 30 s
	Metrics       *counter.Metrics // optional event counters
}

// Factory - shared context for resolvers over one store
//
// holds the store handle, the mapping caches and the state refresher;
// resolvers created from the same factory share cached entries for
// equal scopes
type Factory struct {
	log   *logger.L
	store storage.Store
	cfg   Config

	caches   *cache.Directory
	states   *gocache.Cache // scope key -> State, expires after RefreshPeriod
	versions sync.Map       // scope key -> uint32, last observed version
	tracked  sync.Map       // scope key -> *Resolver, for background refresh
	inflight singleflight.Group
	limiter  *rate.Limiter

	processes *background.T
}

// NewFactory - build the shared context over an open store
func NewFactory(store storage.Store, cfg *Config) (*Factory, error) {

	configuration := Config{}
	if nil != cfg {
		configuration = *cfg
	}
	if configuration.CacheSize <= 0 {
		configuration.CacheSize = cache.DefaultSize
	}
	if configuration.RefreshPeriod <= 0 {
		configuration.RefreshPeriod = defaultRefreshPeriod
	}

	caches, err := cache.New(configuration.CacheSize)
	if nil != err {
		return nil, err
	}

	f := &Factory{
		log:    logger.New("resolver"),
		store:  store,
		cfg:    configuration,
		caches: caches,
		states: gocache.New(configuration.RefreshPeriod, 2*configuration.RefreshPeriod),

		// background refresh may not exceed sixteen state reads per
		// refresh period in aggregate
		limiter: rate.NewLimiter(rate.Every(configuration.RefreshPeriod/16), 4),
	}

	f.processes = background.Start(background.Processes{&refresher{factory: f}}, nil)

	f.log.Infof("cache size: %d  refresh period: %s", configuration.CacheSize, configuration.RefreshPeriod)
	return f, nil
}

// Close - stop the background refresher
//
// the store stays open; its lifetime belongs to the caller
func (f *Factory) Close() {
	f.processes.Stop()
}

// Resolver - the resolver anchored at a path
func (f *Factory) Resolver(path keyspace.Path) *Resolver {
	return f.ResolverAt(keyspace.FromPath(path))
}

// ResolverAt - the resolver over an already resolved scope
//
// two calls with equal prefixes return resolvers that behave as one
func (f *Factory) ResolverAt(scope keyspace.Subspace) *Resolver {
	scopeID := scope.ScopeID()
	r := &Resolver{
		log:          f.log,
		factory:      f,
		scope:        scope,
		scopeID:      scopeID,
		scopeKey:     string(scopeID[:]),
		mappingSpace: scope.Sub(keyspace.MappingSpace),
		reverseSpace: scope.Sub(keyspace.ReverseSpace),
		stateSpace:   scope.Sub(keyspace.StateSpace),
	}
	r.alloc = newAllocator(r.reverseSpace, r.stateSpace)

	f.tracked.LoadOrStore(r.scopeKey, r)
	return r
}

// ClearCaches - drop every cached mapping and state
//
// intended for tests that need to force store reads
func (f *Factory) ClearCaches() {
	f.states.Flush()
	f.versions.Range(func(key, _ interface{}) bool {
		f.versions.Delete(key)
		return true
	})
	f.caches.Clear()
}

func (f *Factory) metrics() *counter.Metrics {
	return f.cfg.Metrics
}

// scopeState - the scope's state within the staleness bound
//
// a fresh cached state is returned as is; otherwise one store read is
// shared by every concurrent caller of the same scope
func (f *Factory) scopeState(ctx context.Context, r *Resolver) (State, error) {
	if item, ok := f.states.Get(r.scopeKey); ok {
		return item.(State), nil
	}

	result, err, _ := f.inflight.Do(r.scopeKey, func() (interface{}, error) {
		st, err := f.loadState(ctx, r)
		if nil != err {
			return nil, err
		}
		f.noteState(r, st)
		return st, nil
	})
	if nil != err {
		return State{}, err
	}
	return result.(State), nil
}

// one transactional read of the state record
func (f *Factory) loadState(ctx context.Context, r *Resolver) (State, error) {
	st := State{}
	err := f.store.Run(ctx, func(txn storage.Transaction) error {
		var err error
		st, err = readState(txn, r.stateSpace)
		return err
	})
	if nil != err {
		return State{}, err
	}
	f.metrics().AddResolverStateRead()
	return st, nil
}

// record a freshly observed state, invalidating the scope's mapping
// caches if its version moved
func (f *Factory) noteState(r *Resolver, st State) {
	f.states.Set(r.scopeKey, st, gocache.DefaultExpiration)

	previous, known := f.versions.Load(r.scopeKey)
	f.versions.Store(r.scopeKey, st.Version)

	if known && previous.(uint32) != st.Version {
		f.caches.InvalidateScope(r.scopeID)
		f.log.Debugf("scope %s: version %d -> %d: caches invalidated", r.scope, previous, st.Version)
	}
}

// refresher - opportunistic background re-read of tracked states
type refresher struct {
	factory *Factory
}

func (p *refresher) Run(args interface{}, shutdown <-chan struct{}) {
	f := p.factory

	interval := f.cfg.RefreshPeriod / 2
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	for {
		select {
		case <-ticker.C:
			f.refreshTracked(interval)
		case <-shutdown:
			ticker.Stop()
			return
		}
	}
}

func (f *Factory) refreshTracked(budget time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()

	f.tracked.Range(func(_, item interface{}) bool {
		if !f.limiter.Allow() {
			return false
		}
		r := item.(*Resolver)
		st, err := f.loadState(ctx, r)
		if nil != err {
			f.log.Warnf("scope %s: background state refresh failed: %s", r.scope, err)
			return false
		}
		f.noteState(r, st)
		return true
	})
}
