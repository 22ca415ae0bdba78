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
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/graphbolt/go-driver/db"
	"github.com/graphbolt/go-driver/log"
)

const (
	bolt3_ready        = iota // Ready for use
	bolt3_streaming           // Receiving result from auto commit query
	bolt3_tx                  // Transaction pending
	bolt3_streamingtx         // Receiving result from a query within a transaction
	bolt3_failed              // Recoverable error, needs reset
	bolt3_dead                // Non recoverable protocol or connection error
	bolt3_unauthorized        // Initial state, not sent hello message with authentication
)

type internalTx3 struct {
	mode      db.AccessMode
	bookmarks []string
	timeout   time.Duration
	txMeta    map[string]interface{}
}

func (i *internalTx3) toMeta() map[string]interface{} {
	meta := map[string]interface{}{}
	if i.mode == db.ReadMode {
		meta["mode"] = "r"
	}
	if len(i.bookmarks) > 0 {
		meta["bookmarks"] = i.bookmarks
	}
	ms := int(i.timeout.Nanoseconds() / 1e6)
	if ms > 0 {
		meta["tx_timeout"] = ms
	}
	if len(i.txMeta) > 0 {
		meta["tx_metadata"] = i.txMeta
	}
	return meta
}

// Bolt 3 has no result batching, a PULL_ALL streams the complete result
// and there is no database selection.
type bolt3 struct {
	state         int
	txId          db.TxHandle
	currStream    *stream
	conn          net.Conn
	serverName    string
	queue         messageQueue
	connId        string
	logId         string
	serverVersion string
	minor         int
	tfirst        int64  // Time that server started streaming
	bookmark      string // Last bookmark
	birthDate     time.Time
	log           log.Logger
	err           error // Last fatal or failure error
}

func NewBolt3(serverName string, conn net.Conn, minor int, limits Limits, logger log.Logger) *bolt3 {
	b := &bolt3{
		state:      bolt3_unauthorized,
		conn:       conn,
		serverName: serverName,
		minor:      minor,
		birthDate:  time.Now(),
		log:        logger,
	}
	b.queue = newMessageQueue(conn, limits, b.onFatal)
	return b
}

func connectBolt3(serverName string, conn net.Conn, minor int, auth map[string]interface{},
	userAgent string, limits Limits, logger log.Logger) (*bolt3, error) {

	b := NewBolt3(serverName, conn, minor, limits, logger)
	if err := b.connect(auth, userAgent); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (b *bolt3) ServerName() string {
	return b.serverName
}

func (b *bolt3) ServerVersion() string {
	return b.serverVersion
}

func (b *bolt3) onFatal(err error) {
	b.err = err
	b.state = bolt3_dead
	b.log.Error(log.Bolt3, b.logId, err)
}

func (b *bolt3) onFailure(err *db.ServerError) {
	b.err = err
	b.state = bolt3_failed
	if err.Classification() == db.ClientError {
		b.log.Debugf(log.Bolt3, b.logId, "%s", err)
	} else {
		b.log.Error(log.Bolt3, b.logId, err)
	}
}

func (b *bolt3) expectedSuccessHandler(onSuccess func(*successResponse)) responseHandler {
	return responseHandler{
		onSuccess: onSuccess,
		onFailure: b.onFailure,
		onIgnored: onIgnoredNoOp,
	}
}

func (b *bolt3) connect(auth map[string]interface{}, userAgent string) error {
	if err := b.assertState(bolt3_unauthorized); err != nil {
		return err
	}

	hello := map[string]interface{}{
		"user_agent": userAgent,
	}
	for k, v := range auth {
		_, exists := hello[k]
		if exists {
			continue
		}
		hello[k] = v
	}

	b.queue.append(msgHello, b.expectedSuccessHandler(b.onHelloSuccess), hello)
	b.queue.send()
	if err := b.queue.receiveAll(); err != nil {
		b.state = bolt3_dead
		return err
	}
	if b.err != nil {
		return b.err
	}

	b.state = bolt3_ready
	b.log.Infof(log.Bolt3, b.logId, "Connected")
	return nil
}

func (b *bolt3) onHelloSuccess(succ *successResponse) {
	helloRes := succ.hello()
	if helloRes == nil {
		b.onFatal(&db.ProtocolError{Msg: fmt.Sprintf("Unexpected server response: %+v", succ)})
		return
	}
	b.connId = helloRes.connectionId
	b.logId = fmt.Sprintf("%s@%s", b.connId, b.serverName)
	b.serverVersion = helloRes.server
}

func (b *bolt3) TxBegin(
	mode db.AccessMode, bookmarks []string, timeout time.Duration, txMeta map[string]interface{}) (db.TxHandle, error) {

	// Ok, to begin transaction while streaming auto-commit, just empty the stream and continue.
	if b.state == bolt3_streaming {
		if err := b.bufferStream(); err != nil {
			return 0, err
		}
	}

	if err := b.assertState(bolt3_ready); err != nil {
		return 0, err
	}

	tx := &internalTx3{
		mode:      mode,
		bookmarks: bookmarks,
		timeout:   timeout,
		txMeta:    txMeta,
	}

	b.queue.append(msgBegin, b.expectedSuccessHandler(onSuccessNoOp), tx.toMeta())
	b.queue.send()
	if err := b.queue.receiveAll(); err != nil {
		return 0, err
	}
	if b.err != nil {
		return 0, b.err
	}

	b.state = bolt3_tx
	b.txId = db.TxHandle(time.Now().Unix())
	return b.txId, nil
}

func (b *bolt3) assertTxHandle(h1, h2 db.TxHandle) error {
	if h1 != h2 {
		err := errors.New("Invalid transaction handle")
		b.log.Error(log.Bolt3, b.logId, err)
		return err
	}
	return nil
}

func (b *bolt3) assertState(allowed ...int) error {
	if b.err != nil {
		return b.err
	}
	for _, a := range allowed {
		if b.state == a {
			return nil
		}
	}
	err := errors.New(fmt.Sprintf("Invalid state %d, expected: %+v", b.state, allowed))
	b.log.Error(log.Bolt3, b.logId, err)
	return err
}

func (b *bolt3) TxCommit(txh db.TxHandle) error {
	if err := b.assertTxHandle(b.txId, txh); err != nil {
		return err
	}

	// Consume pending stream if any
	if b.state == bolt3_streamingtx {
		if err := b.discardStream(); err != nil {
			return err
		}
	}

	if err := b.assertState(bolt3_tx); err != nil {
		return err
	}

	b.queue.append(msgCommit, b.expectedSuccessHandler(b.onCommitSuccess))
	b.queue.send()
	if err := b.queue.receiveAll(); err != nil {
		return err
	}
	if b.err != nil {
		return b.err
	}

	b.state = bolt3_ready
	return nil
}

func (b *bolt3) onCommitSuccess(succ *successResponse) {
	commitSuccess := succ.commit()
	if len(commitSuccess.bookmark) > 0 {
		b.bookmark = commitSuccess.bookmark
	}
}

func (b *bolt3) TxRollback(txh db.TxHandle) error {
	if err := b.assertTxHandle(b.txId, txh); err != nil {
		return err
	}

	if b.state == bolt3_streamingtx {
		if err := b.discardStream(); err != nil {
			return err
		}
	}

	if err := b.assertState(bolt3_tx); err != nil {
		return err
	}

	b.queue.append(msgRollback, b.expectedSuccessHandler(onSuccessNoOp))
	b.queue.send()
	if err := b.queue.receiveAll(); err != nil {
		return err
	}
	if b.err != nil {
		return b.err
	}

	b.state = bolt3_ready
	return nil
}

func (b *bolt3) pullAllResponseHandler(stream *stream) responseHandler {
	return responseHandler{
		onRecord: func(rec *db.Record) {
			if !stream.discarding {
				rec.Keys = stream.keys
				stream.push(rec)
			}
			// More responses follow until the summary
			b.queue.pushFront(b.pullAllResponseHandler(stream))
		},
		onSuccess: func(succ *successResponse) {
			b.endStream(stream, succ)
		},
		onFailure: func(err *db.ServerError) {
			stream.err = err
			b.currStream = nil
			b.onFailure(err)
		},
		onIgnored: func() {
			stream.err = errors.New("Stream interrupted while pulling records")
			b.currStream = nil
		},
	}
}

func (b *bolt3) runResponseHandler(stream *stream) responseHandler {
	return b.expectedSuccessHandler(func(succ *successResponse) {
		runRes := succ.run()
		if runRes == nil {
			b.onFatal(&db.ProtocolError{Msg: fmt.Sprintf("Failed to parse RUN response: %+v", succ)})
			return
		}
		b.tfirst = runRes.t_first
		stream.keys = runRes.fields
		stream.attached = true
	})
}

func (b *bolt3) endStream(stream *stream, succ *successResponse) {
	sum := succ.summary()
	sum.ServerName = b.serverName
	sum.ServerVersion = b.serverVersion
	sum.TFirst = b.tfirst
	sum.Major = 3
	sum.Minor = b.minor
	stream.sum = sum
	b.currStream = nil
	if b.state == bolt3_streamingtx {
		b.state = bolt3_tx
	} else {
		b.state = bolt3_ready
		if len(sum.Bookmark) > 0 {
			b.bookmark = sum.Bookmark
		}
	}
}

func (b *bolt3) run(cypher string, params map[string]interface{}, tx *internalTx3) (*stream, error) {
	// If already streaming, consume the whole thing first
	if err := b.bufferStream(); err != nil {
		return nil, err
	}

	if err := b.assertState(bolt3_tx, bolt3_ready); err != nil {
		return nil, err
	}

	meta := map[string]interface{}{}
	if tx != nil {
		meta = tx.toMeta()
	}
	if params == nil {
		params = map[string]interface{}{}
	}

	// Append run and pull all messages and send them together
	stream := &stream{}
	b.queue.append(msgRun, b.runResponseHandler(stream), cypher, params, meta)
	b.queue.append(msgPullAll, b.pullAllResponseHandler(stream))
	b.queue.send()
	if b.err != nil {
		return nil, b.err
	}

	// Process responses up to and including the run confirmation. Records
	// are left on the wire for Next to receive.
	for !stream.attached {
		if err := b.queue.receive(); err != nil {
			// Collect the IGNORED responses of anything pipelined behind
			// the failed request to keep the queue in sync.
			b.queue.receiveAll()
			return nil, err
		}
		if b.err != nil {
			return nil, b.err
		}
	}

	if b.state == bolt3_ready {
		b.state = bolt3_streaming
	} else {
		b.state = bolt3_streamingtx
	}
	b.currStream = stream
	return stream, nil
}

func (b *bolt3) Run(
	cypher string, params map[string]interface{}, mode db.AccessMode,
	bookmarks []string, timeout time.Duration, txMeta map[string]interface{}) (db.StreamHandle, error) {

	if err := b.assertState(bolt3_streaming, bolt3_ready); err != nil {
		return nil, err
	}

	tx := internalTx3{
		mode:      mode,
		bookmarks: bookmarks,
		timeout:   timeout,
		txMeta:    txMeta,
	}
	return b.run(cypher, params, &tx)
}

func (b *bolt3) RunTx(txh db.TxHandle, cypher string, params map[string]interface{}) (db.StreamHandle, error) {
	if err := b.assertTxHandle(b.txId, txh); err != nil {
		return nil, err
	}
	// Transaction meta was sent with the begin message
	return b.run(cypher, params, nil)
}

func (b *bolt3) Keys(streamHandle db.StreamHandle) ([]string, error) {
	stream, ok := streamHandle.(*stream)
	if !ok {
		return nil, errors.New("Invalid stream handle")
	}
	return stream.keys, nil
}

// Reads one record from the stream.
func (b *bolt3) Next(streamHandle db.StreamHandle) (*db.Record, *db.Summary, error) {
	stream, ok := streamHandle.(*stream)
	if !ok {
		return nil, nil, errors.New("Invalid stream handle")
	}

	for {
		buf, rec, sum, err := stream.bufferedNext()
		if buf {
			return rec, sum, err
		}

		if stream != b.currStream {
			return nil, nil, errors.New("Invalid stream handle")
		}

		if b.queue.isEmpty() {
			err := &db.ProtocolError{Msg: "Expected more records in stream"}
			b.onFatal(err)
			return nil, nil, err
		}
		if err := b.queue.receive(); err != nil {
			return nil, nil, err
		}
		if b.err != nil {
			return nil, nil, b.err
		}
	}
}

func (b *bolt3) Consume(streamHandle db.StreamHandle) (*db.Summary, error) {
	stream, ok := streamHandle.(*stream)
	if !ok {
		return nil, errors.New("Invalid stream handle")
	}

	if stream != b.currStream {
		return stream.sum, stream.err
	}

	if stream.err != nil || stream.sum != nil {
		return stream.sum, stream.err
	}

	if err := b.discardStream(); err != nil {
		return nil, err
	}
	return stream.sum, stream.err
}

func (b *bolt3) Buffer(streamHandle db.StreamHandle) error {
	stream, ok := streamHandle.(*stream)
	if !ok {
		return errors.New("Invalid stream handle")
	}

	if stream != b.currStream {
		return stream.Err()
	}

	if stream.err != nil || stream.sum != nil {
		return stream.Err()
	}

	if err := b.bufferStream(); err != nil {
		return err
	}
	return stream.Err()
}

// The whole result was requested with PULL_ALL, discarding means receiving
// and dropping the records still coming.
func (b *bolt3) discardStream() error {
	if b.state != bolt3_streaming && b.state != bolt3_streamingtx {
		return nil
	}
	stream := b.currStream
	if stream == nil {
		return nil
	}

	stream.discarding = true
	if err := b.queue.receiveAll(); err != nil {
		return err
	}
	return b.err
}

// Collects all records in current stream into its buffer.
func (b *bolt3) bufferStream() error {
	if b.state != bolt3_streaming && b.state != bolt3_streamingtx {
		return nil
	}
	stream := b.currStream
	if stream == nil {
		return nil
	}

	if err := b.queue.receiveAll(); err != nil {
		return err
	}
	return b.err
}

func (b *bolt3) Bookmark() string {
	return b.bookmark
}

func (b *bolt3) IsAlive() bool {
	return b.state != bolt3_dead
}

func (b *bolt3) Birthdate() time.Time {
	return b.birthDate
}

func (b *bolt3) Reset() {
	defer func() {
		b.txId = 0
		b.currStream = nil
		b.bookmark = ""
		b.err = nil
	}()

	if b.state == bolt3_ready || b.state == bolt3_dead || b.state == bolt3_unauthorized {
		// No need for reset
		return
	}

	// Discard any pending stream
	b.discardStream()

	if b.state == bolt3_ready || b.state == bolt3_dead {
		return
	}

	b.queue.append(msgReset, responseHandler{
		onSuccess: func(*successResponse) {
			b.state = bolt3_ready
		},
		onFailure: func(err *db.ServerError) {
			b.state = bolt3_dead
		},
		onIgnored: onIgnoredNoOp,
	})
	b.queue.send()
	b.queue.receiveAll()
}

// Beware, could be called on another thread when driver is closed.
func (b *bolt3) Close() {
	b.log.Infof(log.Bolt3, b.logId, "Close")
	if b.state != bolt3_dead {
		b.queue.appendNoReply(msgGoodbye)
		b.queue.send()
	}
	b.conn.Close()
	b.state = bolt3_dead
}
