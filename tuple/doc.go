// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package tuple - order-preserving tuple encoding
//
// encode a sequence of typed items into a byte string such that the
// byte strings compare in the same order as the tuples
//
// Notes:
// 1. nil      = 0x00
// 2. bytes    = 0x01 ++ escaped data ++ 0x00
// 3. string   = 0x02 ++ escaped UTF-8 ++ 0x00
// 4. uint64   = (0x14 + n) ++ n byte big endian value (minimal length)
// 5. escaping = embedded 0x00 becomes 0x00 0xFF
//
// the encoding is a persistent wire format: the tag values above are
// fixed and must never change
package tuple
