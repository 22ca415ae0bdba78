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
	"fmt"
	"io"

	"github.com/graphbolt/go-driver/db"
)

// dechunkMessage reads one complete message from the reader, reassembling
// its chunks into msgBuf. Zero size chunks received before any payload are
// server keep-alives and are skipped. maxMessageSize below or equal to zero
// means unlimited.
//
// Returns the (possibly reallocated) buffer for reuse and the message
// within it. The message is only valid until the next call with the same
// buffer.
func dechunkMessage(rd io.Reader, msgBuf []byte, maxMessageSize int) ([]byte, []byte, error) {
	sizeBuf := []byte{0x00, 0x00}
	off := 0

	for {
		_, err := io.ReadFull(rd, sizeBuf)
		if err != nil {
			return msgBuf, nil, err
		}
		chunkSize := int(binary.BigEndian.Uint16(sizeBuf))

		if chunkSize == 0 {
			if off > 0 {
				return msgBuf, msgBuf[:off], nil
			}
			// Keep-alive chunk, wait for the real message
			continue
		}

		if maxMessageSize > 0 && off+chunkSize > maxMessageSize {
			return msgBuf, nil, &db.ProtocolError{
				Msg: fmt.Sprintf("Message exceeds max message size %d", maxMessageSize)}
		}

		if cap(msgBuf) < off+chunkSize {
			newBuf := make([]byte, off+chunkSize, (off+chunkSize)*2)
			copy(newBuf, msgBuf[:off])
			msgBuf = newBuf
		}
		msgBuf = msgBuf[:off+chunkSize]
		if _, err = io.ReadFull(rd, msgBuf[off:]); err != nil {
			return msgBuf, nil, err
		}
		off += chunkSize
	}
}
