// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package resolver

import (
	"context"
)

// PreWriteCheck - predicate evaluated before a new entry is created
//
// returning false blocks the create with a locked error; the check
// never runs when the name already exists and must not mutate the
// resolver
type PreWriteCheck func(ctx context.Context, r *Resolver) (bool, error)

// MetadataHook - produces the metadata stored with a new entry
//
// runs only when the entry is actually created; the stored bytes are
// immutable afterwards except through UpdateMetadataAndVersion
type MetadataHook func(name string) []byte

// Hooks - the caller supplied create hooks; zero value allows
// everything and stores no metadata
type Hooks struct {
	PreWrite PreWriteCheck
	Metadata MetadataHook
}

func (h Hooks) preWrite(ctx context.Context, r *Resolver) (bool, error) {
	if nil == h.PreWrite {
		return true, nil
	}
	return h.PreWrite(ctx, r)
}

func (h Hooks) metadata(name string) []byte {
	if nil == h.Metadata {
		return nil
	}
	return h.Metadata(name)
}
