// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	ldb_opt "github.com/syndtr/goleveldb/leveldb/opt"
	ldb_util "github.com/syndtr/goleveldb/leveldb/util"
)

// ReadAccess - a stable read view of the database
type ReadAccess interface {
	Get([]byte) ([]byte, error)
	Has([]byte) (bool, error)
	Iterator(*ldb_util.Range) iterator.Iterator
	Release()
}

// DataAccess - the narrow database surface used by transactions
type DataAccess interface {
	Snapshot() (ReadAccess, error)
	Write(*leveldb.Batch) error
	Close() error
}

// for database version
var versionKey = []byte{0x00, 'V', 'E', 'R', 'S', 'I', 'O', 'N'}

const currentDBVersion = 0x100

type levelDBAccess struct {
	db *leveldb.DB
}

type levelDBSnapshot struct {
	snapshot *leveldb.Snapshot
}

// open the LevelDB file and verify the version record
func newLevelDBAccess(name string) (DataAccess, error) {
	opt := &ldb_opt.Options{
		ErrorIfExist:   false,
		ErrorIfMissing: false,
	}

	db, err := leveldb.OpenFile(name, opt)
	if nil != err {
		return nil, err
	}

	versionValue, err := db.Get(versionKey, nil)
	if leveldb.ErrNotFound == err {
		// database was empty so tag as current version
		currentVersion := make([]byte, 4)
		binary.BigEndian.PutUint32(currentVersion, currentDBVersion)
		err = db.Put(versionKey, currentVersion, nil)
		if nil != err {
			db.Close()
			return nil, err
		}
		return &levelDBAccess{db: db}, nil
	} else if nil != err {
		db.Close()
		return nil, err
	}

	if 4 != len(versionValue) {
		db.Close()
		return nil, fmt.Errorf("incompatible database version length: expected: %d  actual: %d", 4, len(versionValue))
	}

	version := binary.BigEndian.Uint32(versionValue)
	if version > currentDBVersion {
		db.Close()
		return nil, fmt.Errorf("database version: %d > current version: %d", version, currentDBVersion)
	}

	return &levelDBAccess{db: db}, nil
}

func (a *levelDBAccess) Snapshot() (ReadAccess, error) {
	snapshot, err := a.db.GetSnapshot()
	if nil != err {
		return nil, err
	}
	return &levelDBSnapshot{snapshot: snapshot}, nil
}

func (a *levelDBAccess) Write(batch *leveldb.Batch) error {
	return a.db.Write(batch, nil)
}

func (a *levelDBAccess) Close() error {
	return a.db.Close()
}

func (s *levelDBSnapshot) Get(key []byte) ([]byte, error) {
	return s.snapshot.Get(key, nil)
}

func (s *levelDBSnapshot) Has(key []byte) (bool, error) {
	return s.snapshot.Has(key, nil)
}

func (s *levelDBSnapshot) Iterator(searchRange *ldb_util.Range) iterator.Iterator {
	return s.snapshot.NewIterator(searchRange, nil)
}

func (s *levelDBSnapshot) Release() {
	s.snapshot.Release()
}
