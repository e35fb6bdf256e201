// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package resolver_test

import (
	"os"
	"testing"
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/resolver/counter"
	"github.com/bitmark-inc/resolver/keyspace"
	"github.com/bitmark-inc/resolver/resolver"
	"github.com/bitmark-inc/resolver/storage"
)

const (
	testingDirName   = "testing"
	databaseFileName = testingDirName + "/resolver.leveldb"

	// fast staleness bound so the tests observe refreshes quickly
	testRefreshPeriod = 100 * time.Millisecond
)

type testEnv struct {
	db      storage.Store
	factory *resolver.Factory
	metrics *counter.Metrics
}

func removeFiles() {
	os.RemoveAll(testingDirName)
}

func setup(t *testing.T) *testEnv {
	removeFiles()
	_ = os.Mkdir(testingDirName, 0700)

	logging := logger.Configuration{
		Directory: testingDirName,
		File:      "testing.log",
		Size:      1048576,
		Count:     10,
		Console:   false,
		Levels: map[string]string{
			logger.DefaultTag: "critical",
		},
	}

	// start logging
	_ = logger.Initialise(logging)

	db, err := storage.New(databaseFileName)
	if nil != err {
		t.Fatalf("cannot open database: %s", err)
	}

	metrics := &counter.Metrics{}
	factory, err := resolver.NewFactory(db, &resolver.Config{
		RefreshPeriod: testRefreshPeriod,
		Metrics:       metrics,
	})
	if nil != err {
		t.Fatalf("cannot create factory: %s", err)
	}

	return &testEnv{
		db:      db,
		factory: factory,
		metrics: metrics,
	}
}

// a second factory over the same store, standing in for another
// process
func (e *testEnv) otherProcess(t *testing.T) *resolver.Factory {
	factory, err := resolver.NewFactory(e.db, &resolver.Config{
		RefreshPeriod: testRefreshPeriod,
	})
	if nil != err {
		t.Fatalf("cannot create factory: %s", err)
	}
	return factory
}

func (e *testEnv) teardown(t *testing.T) {
	e.factory.Close()
	e.db.Close()
	logger.Finalise()
	removeFiles()
}

func testPath(t *testing.T, elements ...interface{}) keyspace.Path {
	path, err := keyspace.NewPath(elements...)
	if nil != err {
		t.Fatalf("bad path: %s", err)
	}
	return path
}
