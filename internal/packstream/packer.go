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
	"reflect"
)

// Tag of a packstream structure, identifies protocol messages and graph types.
type StructTag byte

// Generic representation of a packstream structure, used on the packing side
// by the dehydration hook and in tests on the receiving side.
type Struct struct {
	Tag    StructTag
	Fields []interface{}
}

// Called by the packer when it encounters a type it doesn't know how to
// represent, gives the caller a chance to turn domain types into structs.
type Dehydrate func(x interface{}) (*Struct, error)

// Packer appends packstream representations of values to a byte buffer,
// usually the chunkers message buffer.
type Packer struct {
	buf       []byte
	dehydrate Dehydrate
	err       error
}

// PackStruct appends a struct header with the given tag followed by the
// packed fields to buf and returns the extended buffer.
// Upon error the buffer is in an undefined state, the message under
// construction can not be salvaged.
func (p *Packer) PackStruct(buf []byte, dehydrate Dehydrate, tag StructTag, fields ...interface{}) ([]byte, error) {
	if dehydrate == nil {
		dehydrate = func(x interface{}) (*Struct, error) {
			return nil, &UnsupportedTypeError{t: reflect.TypeOf(x)}
		}
	}
	p.buf = buf
	p.dehydrate = dehydrate
	p.err = nil
	p.writeStruct(tag, fields)
	return p.buf, p.err
}

func (p *Packer) setErr(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *Packer) writeStruct(tag StructTag, fields []interface{}) {
	if len(fields) > 0x0f {
		p.setErr(&OverflowError{msg: "Trying to pack struct with too many fields"})
		return
	}
	p.buf = append(p.buf, 0xb0+byte(len(fields)), byte(tag))
	for _, f := range fields {
		p.pack(f)
	}
}

func (p *Packer) writeInt(i int64) {
	switch {
	case int64(-0x10) <= i && i < int64(0x80):
		p.buf = append(p.buf, byte(i))
	case int64(-0x80) <= i && i < int64(-0x10):
		p.buf = append(p.buf, 0xc8, byte(i))
	case int64(-0x8000) <= i && i < int64(0x8000):
		p.buf = append(p.buf, 0xc9, byte(i>>8), byte(i))
	case int64(-0x80000000) <= i && i < int64(0x80000000):
		p.buf = append(p.buf, 0xca, byte(i>>24), byte(i>>16), byte(i>>8), byte(i))
	default:
		buf := [9]byte{0xcb}
		binary.BigEndian.PutUint64(buf[1:], uint64(i))
		p.buf = append(p.buf, buf[:]...)
	}
}

func (p *Packer) writeFloat(f float64) {
	buf := [9]byte{0xc1}
	binary.BigEndian.PutUint64(buf[1:], math.Float64bits(f))
	p.buf = append(p.buf, buf[:]...)
}

func (p *Packer) writeBool(b bool) {
	if b {
		p.buf = append(p.buf, 0xc3)
		return
	}
	p.buf = append(p.buf, 0xc2)
}

func (p *Packer) writeNil() {
	p.buf = append(p.buf, 0xc0)
}

// Writes a size header for string, list and map. The tiny variant embeds
// sizes below 0x10 in the marker itself, larger sizes get an explicit
// 8, 16 or 32 bit big endian length.
func (p *Packer) writeHeader(ll int, shortOffset, longOffset byte) {
	l := int64(ll)
	switch {
	case l < 0x10:
		p.buf = append(p.buf, shortOffset+byte(l))
	case l < 0x100:
		p.buf = append(p.buf, longOffset, byte(l))
	case l < 0x10000:
		p.buf = append(p.buf, longOffset+1, byte(l>>8), byte(l))
	case l < math.MaxUint32:
		p.buf = append(p.buf, longOffset+2, byte(l>>24), byte(l>>16), byte(l>>8), byte(l))
	default:
		p.setErr(&OverflowError{msg: fmt.Sprintf("Trying to pack too large size %d", l)})
	}
}

func (p *Packer) writeString(s string) {
	p.writeHeader(len(s), 0x80, 0xd0)
	p.buf = append(p.buf, []byte(s)...)
}

func (p *Packer) writeListHeader(l int) {
	p.writeHeader(l, 0x90, 0xd4)
}

func (p *Packer) writeMapHeader(l int) {
	p.writeHeader(l, 0xa0, 0xd8)
}

func (p *Packer) writeBytes(b []byte) {
	l := int64(len(b))
	switch {
	case l < 0x100:
		p.buf = append(p.buf, 0xcc, byte(l))
	case l < 0x10000:
		p.buf = append(p.buf, 0xcd, byte(l>>8), byte(l))
	case l < math.MaxUint32:
		p.buf = append(p.buf, 0xce, byte(l>>24), byte(l>>16), byte(l>>8), byte(l))
	default:
		p.setErr(&OverflowError{msg: fmt.Sprintf("Trying to pack too large byte array of size %d", l)})
		return
	}
	p.buf = append(p.buf, b...)
}

func (p *Packer) checkOverflowInt(u uint64) bool {
	if u > math.MaxInt64 {
		p.setErr(&OverflowError{msg: "Trying to pack uint64 that doesn't fit into int64"})
		return false
	}
	return true
}

func (p *Packer) tryDehydrate(x interface{}) {
	s, err := p.dehydrate(x)
	if err != nil {
		p.setErr(err)
		return
	}
	if s == nil {
		p.writeNil()
		return
	}
	p.writeStruct(s.Tag, s.Fields)
}

func (p *Packer) writeSlice(x interface{}) {
	// Check for the common cases to avoid reflection
	switch v := x.(type) {
	case []byte:
		p.writeBytes(v)
	case []interface{}:
		p.writeListHeader(len(v))
		for _, s := range v {
			p.pack(s)
		}
	case []string:
		p.writeListHeader(len(v))
		for _, s := range v {
			p.writeString(s)
		}
	case []int64:
		p.writeListHeader(len(v))
		for _, i := range v {
			p.writeInt(i)
		}
	case []int:
		p.writeListHeader(len(v))
		for _, i := range v {
			p.writeInt(int64(i))
		}
	case []float64:
		p.writeListHeader(len(v))
		for _, f := range v {
			p.writeFloat(f)
		}
	case []bool:
		p.writeListHeader(len(v))
		for _, b := range v {
			p.writeBool(b)
		}
	default:
		rv := reflect.ValueOf(x)
		num := rv.Len()
		p.writeListHeader(num)
		for i := 0; i < num; i++ {
			p.pack(rv.Index(i).Interface())
		}
	}
}

func (p *Packer) writeMap(x interface{}) {
	switch v := x.(type) {
	case map[string]interface{}:
		p.writeMapHeader(len(v))
		for k, m := range v {
			p.writeString(k)
			p.pack(m)
		}
	case map[string]string:
		p.writeMapHeader(len(v))
		for k, m := range v {
			p.writeString(k)
			p.writeString(m)
		}
	case map[string]int64:
		p.writeMapHeader(len(v))
		for k, m := range v {
			p.writeString(k)
			p.writeInt(m)
		}
	case map[string]int:
		p.writeMapHeader(len(v))
		for k, m := range v {
			p.writeString(k)
			p.writeInt(int64(m))
		}
	case map[string]float64:
		p.writeMapHeader(len(v))
		for k, m := range v {
			p.writeString(k)
			p.writeFloat(m)
		}
	case map[string]bool:
		p.writeMapHeader(len(v))
		for k, m := range v {
			p.writeString(k)
			p.writeBool(m)
		}
	default:
		rv := reflect.ValueOf(x)
		p.writeMapHeader(rv.Len())
		for _, rk := range rv.MapKeys() {
			if rk.Kind() != reflect.String {
				p.setErr(&UnsupportedTypeError{t: reflect.TypeOf(x)})
				return
			}
			p.writeString(rk.String())
			p.pack(rv.MapIndex(rk).Interface())
		}
	}
}

func (p *Packer) pack(x interface{}) {
	if p.err != nil {
		return
	}
	if x == nil {
		p.writeNil()
		return
	}

	v := reflect.ValueOf(x)
	switch v.Kind() {
	case reflect.Bool:
		p.writeBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		p.writeInt(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := v.Uint()
		if p.checkOverflowInt(u) {
			p.writeInt(int64(u))
		}
	case reflect.Float32, reflect.Float64:
		p.writeFloat(v.Float())
	case reflect.String:
		p.writeString(v.String())
	case reflect.Ptr:
		if v.IsNil() {
			p.writeNil()
			return
		}
		if s, isS := x.(*Struct); isS {
			p.writeStruct(s.Tag, s.Fields)
			return
		}
		if reflect.Indirect(v).Kind() == reflect.Struct {
			p.tryDehydrate(x)
			return
		}
		p.pack(reflect.Indirect(v).Interface())
	case reflect.Struct:
		p.tryDehydrate(x)
	case reflect.Slice:
		p.writeSlice(x)
	case reflect.Map:
		p.writeMap(x)
	default:
		p.setErr(&UnsupportedTypeError{t: reflect.TypeOf(x)})
	}
}
