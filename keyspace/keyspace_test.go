// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keyspace_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/resolver/fault"
	"github.com/bitmark-inc/resolver/keyspace"
)

func TestNewPath(t *testing.T) {
	p, err := keyspace.NewPath("app", "layer", uint64(3))
	assert.Nil(t, err, "valid path rejected")
	assert.NotEqual(t, 0, len(p.Prefix()), "empty prefix")

	_, err = keyspace.NewPath("app", 3.5)
	assert.Equal(t, fault.ErrInvalidPathElement, err, "float element accepted")
}

// two subspaces built separately over the same path are the same scope
func TestScopeIdentity(t *testing.T) {
	pathA, _ := keyspace.NewPath("application", "directory")
	pathB, _ := keyspace.NewPath("application", "directory")
	pathC, _ := keyspace.NewPath("application", "other")

	a := keyspace.FromPath(pathA)
	b := keyspace.FromPath(pathB)
	c := keyspace.FromPath(pathC)

	assert.True(t, a.Equal(b), "identical paths must compare equal")
	assert.False(t, a.Equal(c), "distinct paths must not compare equal")
	assert.Equal(t, a.ScopeID(), b.ScopeID(), "scope ids diverge for equal prefixes")
	assert.NotEqual(t, a.ScopeID(), c.ScopeID(), "scope ids collide for distinct prefixes")
}

func TestSubKeyTail(t *testing.T) {
	path, _ := keyspace.NewPath("x")
	s := keyspace.FromPath(path)

	mapping := s.Sub(keyspace.MappingSpace)
	reverse := s.Sub(keyspace.ReverseSpace)
	state := s.Sub(keyspace.StateSpace)

	assert.False(t, mapping.Equal(reverse), "selector subspaces must be disjoint")
	assert.False(t, reverse.Equal(state), "selector subspaces must be disjoint")

	key := mapping.Key([]byte("tail"))
	assert.True(t, mapping.Contains(key), "key escaped its subspace")
	assert.False(t, reverse.Contains(key), "key leaked into sibling subspace")
	assert.Equal(t, []byte("tail"), mapping.Tail(key), "tail mismatch")
	assert.Nil(t, reverse.Tail(key), "foreign tail must be nil")
}

func TestRange(t *testing.T) {
	s := keyspace.NewSubspace([]byte{0x10, 0x20})
	low, high := s.Range()
	assert.Equal(t, []byte{0x10, 0x20}, low, "low bound")
	assert.Equal(t, []byte{0x10, 0x21}, high, "high bound")

	// carry into the previous byte
	s = keyspace.NewSubspace([]byte{0x10, 0xFF})
	low, high = s.Range()
	assert.Equal(t, []byte{0x10, 0xFF}, low, "low bound")
	assert.Equal(t, []byte{0x11}, high, "high bound must carry")

	// inside the range
	if !(bytes.Compare(low, s.Key([]byte{0x55})) <= 0 && bytes.Compare(s.Key([]byte{0x55}), high) < 0) {
		t.Error("contained key outside computed range")
	}
}
