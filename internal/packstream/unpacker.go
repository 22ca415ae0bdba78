/*
 * Copyright (c) 2002-2020 "Neo4j,"
 * Neo4j Sweden AB [http://neo4j.com]
 *
 * This file is part of Neo4j.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 *  Unless required by applicable law or agreed to in writing, software
 *  distributed under the License is distributed on an "AS IS" BASIS,
 *  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *  See the License for the specific language governing permissions and
 *  limitations under the License.
 */

package packstream

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Called by the unpacker on each structure to turn tag + fields into a
// domain representation. Returning an error aborts the unpacking.
type Hydrate func(tag StructTag, fields []interface{}) (interface{}, error)

// Unpacker reads packstream values out of a complete message buffer.
// Every size field is checked against the remaining buffer before use,
// a size pointing outside the message means the data is corrupt.
type Unpacker struct {
	buf     []byte
	off     int
	hydrate Hydrate
	err     error
}

// UnpackStruct decodes buf, which must contain exactly one packstream
// structure, and returns whatever the hydrate hook made of it. The hook is
// applied bottom up, structures nested in the fields of the message reach
// it before the message itself does, so a record field holding a node
// arrives at the message hook already hydrated.
func (u *Unpacker) UnpackStruct(buf []byte, hydrate Hydrate) (interface{}, error) {
	u.buf = buf
	u.off = 0
	u.hydrate = hydrate
	u.err = nil

	marker := u.readByte()
	if u.err != nil {
		return nil, u.err
	}
	if marker < 0xb0 || marker >= 0xc0 {
		return nil, &IllegalFormatError{msg: "Expected message to be a struct"}
	}
	x := u.unpackStruct(int(marker - 0xb0))
	if u.err != nil {
		return nil, u.err
	}
	if u.off != len(u.buf) {
		return nil, &IllegalFormatError{msg: fmt.Sprintf("Message contains %d trailing bytes", len(u.buf)-u.off)}
	}
	return x, nil
}

func (u *Unpacker) setErr(err error) {
	if u.err == nil {
		u.err = err
	}
}

func (u *Unpacker) read(n int) []byte {
	if n < 0 || u.off+n > len(u.buf) {
		u.setErr(&IllegalFormatError{msg: fmt.Sprintf("Size %d exceeds remaining message of %d bytes", n, len(u.buf)-u.off)})
		return nil
	}
	b := u.buf[u.off : u.off+n]
	u.off += n
	return b
}

func (u *Unpacker) readByte() byte {
	b := u.read(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (u *Unpacker) readSize(numBytes int) int {
	b := u.read(numBytes)
	if b == nil {
		return 0
	}
	var n uint32
	for _, x := range b {
		n = n<<8 | uint32(x)
	}
	if int64(n) > int64(len(u.buf)) {
		u.setErr(&IllegalFormatError{msg: fmt.Sprintf("Size %d exceeds message of %d bytes", n, len(u.buf))})
		return 0
	}
	return int(n)
}

func (u *Unpacker) unpackString(n int) string {
	b := u.read(n)
	if b == nil {
		return ""
	}
	return string(b)
}

func (u *Unpacker) unpackBytes(n int) []byte {
	b := u.read(n)
	if b == nil {
		return nil
	}
	bc := make([]byte, n)
	copy(bc, b)
	return bc
}

func (u *Unpacker) unpackList(n int) []interface{} {
	l := make([]interface{}, 0, n)
	for i := 0; i < n; i++ {
		if u.err != nil {
			return nil
		}
		l = append(l, u.unpack())
	}
	return l
}

func (u *Unpacker) unpackMap(n int) map[string]interface{} {
	m := make(map[string]interface{}, n)
	for i := 0; i < n; i++ {
		if u.err != nil {
			return nil
		}
		keyx := u.unpack()
		key, isStr := keyx.(string)
		if !isStr {
			u.setErr(&IllegalFormatError{msg: "Map key is not a string"})
			return nil
		}
		m[key] = u.unpack()
	}
	return m
}

func (u *Unpacker) unpackStruct(n int) interface{} {
	tag := StructTag(u.readByte())
	fields := make([]interface{}, 0, n)
	for i := 0; i < n; i++ {
		if u.err != nil {
			return nil
		}
		fields = append(fields, u.unpack())
	}
	if u.err != nil {
		return nil
	}
	x, err := u.hydrate(tag, fields)
	if err != nil {
		u.setErr(err)
		return nil
	}
	return x
}

func (u *Unpacker) unpack() interface{} {
	if u.err != nil {
		return nil
	}

	marker := u.readByte()
	if u.err != nil {
		return nil
	}

	switch {
	// Tiny positive int
	case marker < 0x80:
		return int64(marker)
	// Tiny string
	case marker < 0x90:
		return u.unpackString(int(marker - 0x80))
	// Tiny list
	case marker < 0xa0:
		return u.unpackList(int(marker - 0x90))
	// Tiny map
	case marker < 0xb0:
		return u.unpackMap(int(marker - 0xa0))
	// Struct
	case marker < 0xc0:
		return u.unpackStruct(int(marker - 0xb0))
	// Tiny negative int
	case marker >= 0xf0:
		return int64(int8(marker))
	}

	switch marker {
	case 0xc0:
		return nil
	case 0xc1:
		b := u.read(8)
		if b == nil {
			return nil
		}
		return math.Float64frombits(binary.BigEndian.Uint64(b))
	case 0xc2:
		return false
	case 0xc3:
		return true
	case 0xc8:
		return int64(int8(u.readByte()))
	case 0xc9:
		b := u.read(2)
		if b == nil {
			return nil
		}
		return int64(int16(binary.BigEndian.Uint16(b)))
	case 0xca:
		b := u.read(4)
		if b == nil {
			return nil
		}
		return int64(int32(binary.BigEndian.Uint32(b)))
	case 0xcb:
		b := u.read(8)
		if b == nil {
			return nil
		}
		return int64(binary.BigEndian.Uint64(b))
	case 0xcc:
		return u.unpackBytes(u.readSize(1))
	case 0xcd:
		return u.unpackBytes(u.readSize(2))
	case 0xce:
		return u.unpackBytes(u.readSize(4))
	case 0xd0:
		return u.unpackString(u.readSize(1))
	case 0xd1:
		return u.unpackString(u.readSize(2))
	case 0xd2:
		return u.unpackString(u.readSize(4))
	case 0xd4:
		return u.unpackList(u.readSize(1))
	case 0xd5:
		return u.unpackList(u.readSize(2))
	case 0xd6:
		return u.unpackList(u.readSize(4))
	case 0xd8:
		return u.unpackMap(u.readSize(1))
	case 0xd9:
		return u.unpackMap(u.readSize(2))
	case 0xda:
		return u.unpackMap(u.readSize(4))
	}

	u.setErr(&IllegalFormatError{msg: fmt.Sprintf("Unknown marker: %02x", marker)})
	return nil
}
