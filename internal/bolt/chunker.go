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

package bolt

import (
	"encoding/binary"
	"io"
)

const maxChunkSize = 0xffff

// chunker wraps each message in the transfer format of 16 bit big endian
// size prefixed chunks terminated by a zero size chunk. The packstream
// packer appends directly to buf between beginMessage and endMessage,
// several messages can be batched up before send.
type chunker struct {
	buf    []byte
	mstart int
	// Largest chunk payload this chunker will emit, never above 0xffff.
	maxSize int
}

func newChunker() chunker {
	return chunker{
		buf:     make([]byte, 0, 1024),
		maxSize: maxChunkSize,
	}
}

func (c *chunker) beginMessage() {
	// Reserve space for the size of the first chunk
	c.buf = append(c.buf, 0x00, 0x00)
	c.mstart = len(c.buf)
}

func (c *chunker) endMessage() {
	size := len(c.buf) - c.mstart
	if size <= c.maxSize {
		binary.BigEndian.PutUint16(c.buf[c.mstart-2:], uint16(size))
		c.buf = append(c.buf, 0x00, 0x00)
		return
	}

	// Message exceeds max chunk size, re-emit it as multiple chunks
	data := make([]byte, size)
	copy(data, c.buf[c.mstart:])
	c.buf = c.buf[:c.mstart-2]
	for len(data) > 0 {
		n := len(data)
		if n > c.maxSize {
			n = c.maxSize
		}
		c.buf = append(c.buf, byte(n>>8), byte(n))
		c.buf = append(c.buf, data[:n]...)
		data = data[n:]
	}
	c.buf = append(c.buf, 0x00, 0x00)
}

// Writes all buffered messages to the writer, usually the TCP connection.
// The buffer is reused afterwards, also on error.
func (c *chunker) send(wr io.Writer) error {
	_, err := wr.Write(c.buf)
	c.buf = c.buf[:0]
	return err
}
