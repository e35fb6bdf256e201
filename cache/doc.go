// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package cache - bounded in-memory mapping caches
//
// two LRU caches keyed by (scope, name) and (scope, value); entries
// are stamped with a per-scope generation and a generation bump
// invalidates every entry of that scope without touching the others
//
// scope identity is the resolved byte prefix, so two resolver objects
// over the same path share entries
package cache
