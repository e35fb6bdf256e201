// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keyspace

import (
	"bytes"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/sha3"

	"github.com/bitmark-inc/resolver/fault"
	"github.com/bitmark-inc/resolver/tuple"
)

// subspace selector bytes appended to the path prefix
const (
	MappingSpace = 0x00
	ReverseSpace = 0x01
	StateSpace   = 0x02
)

// ScopeID - compact identity of a scope
//
// derived from the resolved byte prefix, never from object identity
type ScopeID [32]byte

// Path - a sequence of typed path elements
type Path []interface{}

// NewPath - build a path from typed elements
//
// accepted element types: string, uint64, []byte
func NewPath(elements ...interface{}) (Path, error) {
	for _, e := range elements {
		switch e.(type) {
		case string, uint64, []byte:
		default:
			return nil, fault.ErrInvalidPathElement
		}
	}
	return Path(elements), nil
}

// Prefix - the stable byte serialisation of the path
func (p Path) Prefix() []byte {
	return tuple.Pack([]interface{}(p)...)
}

// Subspace - a raw byte prefix carving out a key range
type Subspace struct {
	prefix []byte
}

// NewSubspace - wrap an already resolved byte prefix
func NewSubspace(prefix []byte) Subspace {
	p := make([]byte, len(prefix))
	copy(p, prefix)
	return Subspace{prefix: p}
}

// FromPath - the subspace at a resolved path
func FromPath(path Path) Subspace {
	return Subspace{prefix: path.Prefix()}
}

// Prefix - copy of the raw prefix bytes
func (s Subspace) Prefix() []byte {
	p := make([]byte, len(s.prefix))
	copy(p, s.prefix)
	return p
}

// Sub - the subspace one selector byte below this one
func (s Subspace) Sub(selector byte) Subspace {
	p := make([]byte, len(s.prefix)+1)
	copy(p, s.prefix)
	p[len(s.prefix)] = selector
	return Subspace{prefix: p}
}

// Key - a complete key: prefix ++ tail
func (s Subspace) Key(tail []byte) []byte {
	k := make([]byte, 0, len(s.prefix)+len(tail))
	k = append(k, s.prefix...)
	return append(k, tail...)
}

// Contains - true if the key lies inside this subspace
func (s Subspace) Contains(key []byte) bool {
	return bytes.HasPrefix(key, s.prefix)
}

// Tail - strip the prefix from a contained key
func (s Subspace) Tail(key []byte) []byte {
	if !s.Contains(key) {
		return nil
	}
	t := make([]byte, len(key)-len(s.prefix))
	copy(t, key[len(s.prefix):])
	return t
}

// Range - low (inclusive) and high (exclusive) bounds covering every
// key in the subspace
//
// high is the prefix with its last byte incremented, carrying into
// earlier bytes; an all 0xFF prefix has no upper bound and high is nil
func (s Subspace) Range() ([]byte, []byte) {
	low := s.Prefix()
	high := s.Prefix()
	for i := len(high) - 1; i >= 0; i -= 1 {
		if high[i] < 0xFF {
			high[i] += 1
			return low, high[:i+1]
		}
	}
	return low, nil
}

// Equal - scope equality is prefix equality
func (s Subspace) Equal(other Subspace) bool {
	return bytes.Equal(s.prefix, other.prefix)
}

// ScopeID - digest of the prefix, usable as a map key
func (s Subspace) ScopeID() ScopeID {
	return ScopeID(sha3.Sum256(s.prefix))
}

// String - short printable form for logs
func (s Subspace) String() string {
	id := s.ScopeID()
	return base58.Encode(id[:8])
}
