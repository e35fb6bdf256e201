// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package resolver - transactional bidirectional name directory
//
// maintain a mapping from names to dense 64 bit values and back,
// scoped by a key-space path, on top of the transactional store
//
// Notes:
// 1. ++             = concatenation of byte data
// 2. P              = byte prefix of the resolver's path
// 3. P ++ 0x00 ++ pack(name)   - forward record
//                                data: pack(value, metadata)
// 4. P ++ 0x01 ++ pack(value)  - reverse record
//                                data: pack(name)
// 5. P ++ 0x02                 - state record
//                                data: pack(version, lock, window)
// 6. P ++ 0x02 ++ pack("alloc") - next allocation window
//                                data: pack(window start)
//
// records are create-once: a name's value never changes after the
// creating transaction commits; only its metadata may be replaced
//
// a successful create costs one commit carrying the forward record,
// the reverse record and any allocation window advance
package resolver
