// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/resolver/storage"
)

const (
	testingDirName   = "testing"
	databaseFileName = testingDirName + "/test.leveldb"
)

func removeFiles() {
	os.RemoveAll(testingDirName)
}

func setupTestLogger() {
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
}

func teardownTestLogger() {
	logger.Finalise()
	removeFiles()
}

func setup(t *testing.T) storage.Store {
	setupTestLogger()

	db, err := storage.New(filepath.Join(databaseFileName))
	if nil != err {
		t.Fatalf("cannot open database: %s", err)
	}
	return db
}

func teardown(t *testing.T, db storage.Store) {
	if nil != db {
		db.Close()
	}
	teardownTestLogger()
}
