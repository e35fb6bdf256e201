// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/resolver/fault"
	"github.com/bitmark-inc/resolver/tuple"
)

func TestStateRoundTrip(t *testing.T) {
	testList := []State{
		{},
		{Version: 1, Lock: Unlocked, WindowHigh: 0},
		{Version: 42, Lock: WriteLocked, WindowHigh: 10000},
		{Version: 0xFFFFFFFF, Lock: Retired, WindowHigh: 0xFFFFFFFFFFFFFFFF},
	}

	for i, st := range testList {
		decoded, err := unpackState(st.pack())
		assert.Nil(t, err, "%d: decode failed", i)
		assert.Equal(t, st, decoded, "%d: round trip mismatch", i)
	}
}

func TestStateDecodeErrors(t *testing.T) {
	testList := [][]byte{
		{0xFE},                              // not a tuple
		tuple.Pack(uint64(1)),               // wrong arity
		tuple.Pack(uint64(1), uint64(9), uint64(0)),          // invalid lock
		tuple.Pack(uint64(1 << 40), uint64(0), uint64(0)),    // version overflow
		tuple.Pack("one", uint64(0), uint64(0)),              // wrong type
	}

	for i, data := range testList {
		_, err := unpackState(data)
		assert.Equal(t, fault.ErrResolverStateCorrupt, err, "%d: corrupt record accepted", i)
	}
}

func TestLockStateString(t *testing.T) {
	assert.Equal(t, "unlocked", Unlocked.String())
	assert.Equal(t, "write-locked", WriteLocked.String())
	assert.Equal(t, "retired", Retired.String())
	assert.Equal(t, "invalid", LockState(9).String())
}

func TestCanCreate(t *testing.T) {
	assert.True(t, State{}.CanCreate(), "zero state must allow creates")
	assert.False(t, State{Lock: WriteLocked}.CanCreate(), "write locked state allows creates")
	assert.False(t, State{Lock: Retired}.CanCreate(), "retired state allows creates")
}
