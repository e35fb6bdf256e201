// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/resolver/background"
	"github.com/bitmark-inc/resolver/fault"
)

// Store - the transactional store
type Store interface {
	Run(ctx context.Context, fn func(Transaction) error) error
	Close() error
}

// default retry behaviour for conflicting transactions
const (
	defaultRetryLimit   = 30
	retryDelayMinimum   = 2 * time.Millisecond
	retryDelayMaximum   = 250 * time.Millisecond
	janitorInterval     = 1 * time.Second
	maximumRecentWrites = 10000
)

// one committed transaction's write set
type commitRecord struct {
	sequence uint64
	keys     []string
}

type store struct {
	sync.Mutex // protects everything below

	log        *logger.L
	dataAccess DataAccess
	retryLimit int

	sequence   uint64         // sequence of the latest commit
	pruneFloor uint64         // lowest sequence still held in recent
	recent     []commitRecord // commits ordered by sequence
	live       map[uint64]int // begin sequence -> live transaction count
	rand       *rand.Rand     // jitter source
	processes  *background.T
	closed     bool
}

// New - open the database file and start the maintenance process
func New(database string) (Store, error) {
	dataAccess, err := newLevelDBAccess(database)
	if nil != err {
		return nil, err
	}
	return newStore(dataAccess, defaultRetryLimit), nil
}

// NewWithAccess - wrap an existing data access; used by unit tests
func NewWithAccess(dataAccess DataAccess, retryLimit int) Store {
	return newStore(dataAccess, retryLimit)
}

func newStore(dataAccess DataAccess, retryLimit int) Store {
	s := &store{
		log:        logger.New("storage"),
		dataAccess: dataAccess,
		retryLimit: retryLimit,
		live:       make(map[uint64]int),
		rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.processes = background.Start(background.Processes{&janitor{store: s}}, nil)
	return s
}

// Run - execute fn transactionally
//
// the transaction commits when fn returns nil; a commit conflict
// re-runs fn against a fresh snapshot after a jittered delay, up to
// the retry budget; any other error from fn aborts and is returned
// unchanged
func (s *store) Run(ctx context.Context, fn func(Transaction) error) error {

	for attempt := 0; attempt < s.retryLimit; attempt += 1 {

		if err := ctx.Err(); nil != err {
			return err
		}

		txn, err := s.begin()
		if nil != err {
			return err
		}

		err = fn(txn)
		if nil == err {
			if err = ctx.Err(); nil == err {
				err = s.commit(txn)
			}
		}
		s.finish(txn)

		if fault.ErrTransactionConflict != err {
			return err
		}

		s.log.Debugf("commit conflict, attempt: %d", attempt)
		if err := s.sleep(ctx, attempt); nil != err {
			return err
		}
	}

	s.log.Warnf("transaction retries exhausted after %d attempts", s.retryLimit)
	return fault.ErrRetriesExhausted
}

func (s *store) Close() error {
	s.Lock()
	if s.closed {
		s.Unlock()
		return nil
	}
	s.closed = true
	s.Unlock()

	s.processes.Stop()
	return s.dataAccess.Close()
}

func (s *store) begin() (*transaction, error) {
	s.Lock()
	defer s.Unlock()

	if s.closed {
		return nil, fault.ErrNotInitialised
	}

	view, err := s.dataAccess.Snapshot()
	if nil != err {
		return nil, err
	}

	txn := newTransactionAt(view, s.sequence)
	s.live[txn.beginSeq] += 1
	return txn, nil
}

// validate the read set and apply the write batch
func (s *store) commit(txn *transaction) error {
	s.Lock()
	defer s.Unlock()

	// a snapshot read needs no validation
	if 0 == len(txn.writes) {
		return nil
	}

	// conservative: the overlapping commit history was pruned away
	if txn.beginSeq < s.pruneFloor {
		return fault.ErrTransactionConflict
	}

	for _, record := range s.recent {
		if record.sequence <= txn.beginSeq {
			continue
		}
		for _, key := range record.keys {
			if txn.observed(key) {
				return fault.ErrTransactionConflict
			}
		}
	}

	batch, keys := txn.batch()
	err := s.dataAccess.Write(batch)
	if nil != err {
		return err
	}

	s.sequence += 1
	s.recent = append(s.recent, commitRecord{
		sequence: s.sequence,
		keys:     keys,
	})
	return nil
}

// drop the transaction from the live set and release its snapshot
func (s *store) finish(txn *transaction) {
	s.Lock()
	s.live[txn.beginSeq] -= 1
	if s.live[txn.beginSeq] <= 0 {
		delete(s.live, txn.beginSeq)
	}
	s.Unlock()

	txn.release()
}

// jittered exponential delay honouring cancellation
func (s *store) sleep(ctx context.Context, attempt int) error {
	delay := retryDelayMinimum << uint(attempt)
	if delay > retryDelayMaximum {
		delay = retryDelayMaximum
	}

	s.Lock()
	jitter := time.Duration(s.rand.Int63n(int64(delay)))
	s.Unlock()

	timer := time.NewTimer(delay/2 + jitter)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// prune commit records no live transaction can still conflict with
func (s *store) prune() {
	s.Lock()
	defer s.Unlock()

	floor := s.sequence
	for beginSeq := range s.live {
		if beginSeq < floor {
			floor = beginSeq
		}
	}

	i := 0
	for i < len(s.recent) && s.recent[i].sequence <= floor {
		i += 1
	}

	// hard bound: shed oldest records even while transactions hold
	// them; commit turns the gap into a conflict via pruneFloor
	if over := len(s.recent) - maximumRecentWrites; over > i {
		i = over
	}

	if i > 0 {
		if s.recent[i-1].sequence > s.pruneFloor {
			s.pruneFloor = s.recent[i-1].sequence
		}
		s.recent = append([]commitRecord(nil), s.recent[i:]...)
	}
}

// janitor - periodic pruning of the conflict history
type janitor struct {
	store *store
}

func (j *janitor) Run(args interface{}, shutdown <-chan struct{}) {
	ticker := time.NewTicker(janitorInterval)
	for {
		select {
		case <-ticker.C:
			j.store.prune()
		case <-shutdown:
			ticker.Stop()
			return
		}
	}
}
