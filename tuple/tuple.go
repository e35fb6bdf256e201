// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tuple

import (
	"bytes"

	"github.com/bitmark-inc/resolver/fault"
)

// type tags
const (
	tagNil     = 0x00
	tagBytes   = 0x01
	tagString  = 0x02
	tagIntZero = 0x14 // n byte integers use tagIntZero + n
)

const maxIntBytes = 8

// Pack - encode items into a single order-preserving byte string
//
// accepted item types: nil, []byte, string, uint64
// panics on any other type as that is a programming error
func Pack(items ...interface{}) []byte {
	buffer := &bytes.Buffer{}
	for _, item := range items {
		switch it := item.(type) {
		case nil:
			buffer.WriteByte(tagNil)
		case []byte:
			buffer.WriteByte(tagBytes)
			escape(buffer, it)
			buffer.WriteByte(0x00)
		case string:
			buffer.WriteByte(tagString)
			escape(buffer, []byte(it))
			buffer.WriteByte(0x00)
		case uint64:
			packUint64(buffer, it)
		default:
			panic("tuple.Pack: unsupported item type")
		}
	}
	return buffer.Bytes()
}

// Unpack - decode a packed byte string back into its items
//
// []byte and string items are returned as copies
func Unpack(data []byte) ([]interface{}, error) {
	items := make([]interface{}, 0, 4)
	for len(data) > 0 {
		tag := data[0]
		data = data[1:]
		switch {
		case tagNil == tag:
			items = append(items, nil)

		case tagBytes == tag || tagString == tag:
			raw, rest, err := unescape(data)
			if nil != err {
				return nil, err
			}
			data = rest
			if tagBytes == tag {
				items = append(items, raw)
			} else {
				items = append(items, string(raw))
			}

		case tag >= tagIntZero && tag <= tagIntZero+maxIntBytes:
			n := int(tag - tagIntZero)
			if len(data) < n {
				return nil, fault.ErrTupleDataTruncated
			}
			value := uint64(0)
			for i := 0; i < n; i += 1 {
				value = value<<8 | uint64(data[i])
			}
			data = data[n:]
			items = append(items, value)

		default:
			return nil, fault.ErrTupleTypeInvalid
		}
	}
	return items, nil
}

// write an integer as tag + minimal big endian bytes
func packUint64(buffer *bytes.Buffer, value uint64) {
	n := 0
	for v := value; v != 0; v >>= 8 {
		n += 1
	}
	buffer.WriteByte(byte(tagIntZero + n))
	for i := n - 1; i >= 0; i -= 1 {
		buffer.WriteByte(byte(value >> uint(8*i)))
	}
}

// copy data escaping embedded NUL bytes
func escape(buffer *bytes.Buffer, data []byte) {
	for _, b := range data {
		buffer.WriteByte(b)
		if 0x00 == b {
			buffer.WriteByte(0xFF)
		}
	}
}

// reverse of escape, consuming up to the terminating NUL
func unescape(data []byte) ([]byte, []byte, error) {
	raw := make([]byte, 0, len(data))
	for i := 0; i < len(data); i += 1 {
		b := data[i]
		if 0x00 == b {
			if i+1 < len(data) && 0xFF == data[i+1] {
				raw = append(raw, 0x00)
				i += 1
				continue
			}
			return raw, data[i+1:], nil
		}
		raw = append(raw, b)
	}
	return nil, nil, fault.ErrTupleDataTruncated
}
