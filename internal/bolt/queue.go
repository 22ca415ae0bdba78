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
	"container/list"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/graphbolt/go-driver/db"
	"github.com/graphbolt/go-driver/internal/packstream"
)

// responseHandler is the set of callbacks to apply to the response of a
// request. A nil callback means that kind of response is a protocol
// violation for the request.
type responseHandler struct {
	onSuccess func(*successResponse)
	onRecord  func(*db.Record)
	onFailure func(*db.ServerError)
	onIgnored func()
}

func onSuccessNoOp(*successResponse) {}
func onIgnoredNoOp()                 {}

// messageQueue owns the wire. Requests are appended along with the handler
// for their response and flushed in one write. Responses are correlated
// strictly by arrival order, receive applies the handler at the head of
// the queue to the next message, never by matching content.
type messageQueue struct {
	conn           net.Conn
	chunker        chunker
	packer         packstream.Packer
	unpacker       packstream.Unpacker
	handlers       list.List // List of responseHandler
	receiveBuffer  []byte
	maxMessageSize int
	socketTimeout  time.Duration
	err            error // Fatal error, the connection is useless after this
	onFatal        func(error)
}

func newMessageQueue(conn net.Conn, limits Limits, onFatal func(error)) messageQueue {
	chunker := newChunker()
	if limits.MaxChunkSize > 0 && limits.MaxChunkSize < maxChunkSize {
		chunker.maxSize = limits.MaxChunkSize
	}
	return messageQueue{
		conn:           conn,
		chunker:        chunker,
		receiveBuffer:  make([]byte, 4096),
		maxMessageSize: limits.MaxMessageSize,
		socketTimeout:  limits.SocketTimeout,
		onFatal:        onFatal,
	}
}

func (q *messageQueue) fatal(err error) {
	if q.err == nil {
		q.err = err
		q.onFatal(err)
	}
}

// Packs a request message and queues the handler for its response.
func (q *messageQueue) append(tag packstream.StructTag, handler responseHandler, fields ...interface{}) {
	if q.err != nil {
		return
	}
	q.chunker.beginMessage()
	var err error
	q.chunker.buf, err = q.packer.PackStruct(q.chunker.buf, nil, tag, fields...)
	if err != nil {
		// The message buffer is beyond repair at this point
		q.fatal(err)
		return
	}
	q.chunker.endMessage()
	q.handlers.PushBack(handler)
}

// Packs a request the server never responds to, only GOODBYE qualifies.
func (q *messageQueue) appendNoReply(tag packstream.StructTag) {
	if q.err != nil {
		return
	}
	q.chunker.beginMessage()
	var err error
	q.chunker.buf, err = q.packer.PackStruct(q.chunker.buf, nil, tag)
	if err != nil {
		q.fatal(err)
		return
	}
	q.chunker.endMessage()
}

// Re-arms a handler for the next response, used by record stream handlers
// that expect many responses.
func (q *messageQueue) pushFront(handler responseHandler) {
	q.handlers.PushFront(handler)
}

func (q *messageQueue) pop() responseHandler {
	return q.handlers.Remove(q.handlers.Front()).(responseHandler)
}

func (q *messageQueue) isEmpty() bool {
	return q.handlers.Len() == 0
}

// Flushes all appended messages to the connection.
func (q *messageQueue) send() {
	if q.err != nil {
		return
	}
	if q.socketTimeout > 0 {
		q.conn.SetWriteDeadline(time.Now().Add(q.socketTimeout))
	}
	if err := q.chunker.send(q.conn); err != nil {
		q.fatal(q.classifyIoError(err))
	}
}

// Receives one message and applies the handler at the head of the queue.
// A server FAILURE is returned as the error but is not fatal, the caller
// decides how to recover. Any other error is fatal.
func (q *messageQueue) receive() error {
	msg := q.receiveMsg()
	if q.err != nil {
		return q.err
	}

	if q.handlers.Len() == 0 {
		err := &db.ProtocolError{Msg: "Response without matching request"}
		q.fatal(err)
		return err
	}
	handler := q.pop()

	switch m := msg.(type) {
	case *db.Record:
		if handler.onRecord == nil {
			return q.unexpected("RECORD")
		}
		handler.onRecord(m)
	case *successResponse:
		if handler.onSuccess == nil {
			return q.unexpected("SUCCESS")
		}
		handler.onSuccess(m)
	case *db.ServerError:
		if handler.onFailure == nil {
			return q.unexpected("FAILURE")
		}
		handler.onFailure(m)
		return m
	case *ignoredResponse:
		if handler.onIgnored == nil {
			return q.unexpected("IGNORED")
		}
		handler.onIgnored()
	default:
		return q.unexpected(fmt.Sprintf("%T", msg))
	}
	return nil
}

// Receives until the handler queue is empty. The first error is returned,
// but after a server failure the remaining responses are still received,
// the server sends IGNORED for every request queued behind a failed one
// and those must come off the wire for the queue to stay in sync.
func (q *messageQueue) receiveAll() error {
	var first error
	for q.err == nil && q.handlers.Len() > 0 {
		err := q.receive()
		if err != nil && first == nil {
			first = err
		}
	}
	if q.err != nil && first == nil {
		first = q.err
	}
	return first
}

func (q *messageQueue) unexpected(kind string) error {
	err := &db.ProtocolError{Msg: fmt.Sprintf("Server sent unexpected %s response", kind)}
	q.fatal(err)
	return err
}

func (q *messageQueue) receiveMsg() interface{} {
	// Potentially dangerous to receive when an error has occurred, could hang.
	if q.err != nil {
		return nil
	}

	if q.socketTimeout > 0 {
		q.conn.SetReadDeadline(time.Now().Add(q.socketTimeout))
	}
	var msg []byte
	var err error
	q.receiveBuffer, msg, err = dechunkMessage(q.conn, q.receiveBuffer, q.maxMessageSize)
	if err != nil {
		q.fatal(q.classifyIoError(err))
		return nil
	}

	x, err := q.unpacker.UnpackStruct(msg, hydrate)
	if err != nil {
		q.fatal(err)
		return nil
	}
	return x
}

func (q *messageQueue) classifyIoError(err error) error {
	var protoErr *db.ProtocolError
	if errors.As(err, &protoErr) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &db.TimeoutError{Msg: fmt.Sprintf("Socket deadline exceeded: %s", err)}
	}
	return &db.ConnectivityError{Inner: err}
}
