// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package keyspace - subspace addressing
//
// a resolver is anchored at a path of typed elements; the path
// serialises to a stable byte prefix and three disjoint subspaces
// hang off that prefix
//
// Notes:
// 1. ++          = concatenation of byte data
// 2. P           = tuple encoding of the path elements
// 3. P ++ 0x00   - forward mapping records   name -> value
// 4. P ++ 0x01   - reverse mapping records   value -> name
// 5. P ++ 0x02   - resolver state record and allocation counter
//
// two subspaces with the same prefix are the same scope no matter
// which object they came from; all equality is on the prefix bytes
package keyspace
