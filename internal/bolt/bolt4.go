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
	bolt4_ready        = iota // Ready for use
	bolt4_streaming           // Receiving result from auto commit query
	bolt4_pendingtx           // Transaction has been requested but not applied
	bolt4_tx                  // Transaction pending
	bolt4_streamingtx         // Receiving result from a query within a transaction
	bolt4_failed              // Recoverable error, needs reset
	bolt4_dead                // Non recoverable protocol or connection error
	bolt4_unauthorized        // Initial state, not sent hello message with authentication
)

// Number of records to request per PULL, the server flags the batch end
// with has_more when the stream continues beyond it.
const bolt4FetchSize = 1000

type internalTx4 struct {
	mode         db.AccessMode
	bookmarks    []string
	timeout      time.Duration
	txMeta       map[string]interface{}
	databaseName string
}

func (i *internalTx4) toMeta() map[string]interface{} {
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
	if i.databaseName != db.DefaultDatabase {
		meta["db"] = i.databaseName
	}
	return meta
}

type bolt4 struct {
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
	tfirst        int64        // Time that server started streaming
	pendingTx     *internalTx4 // Stashed away when tx started explicitly
	bookmark      string       // Last bookmark
	birthDate     time.Time
	log           log.Logger
	databaseName  string
	err           error // Last fatal or failure error
}

func NewBolt4(serverName string, conn net.Conn, minor int, limits Limits, logger log.Logger) *bolt4 {
	b := &bolt4{
		state:      bolt4_unauthorized,
		conn:       conn,
		serverName: serverName,
		minor:      minor,
		birthDate:  time.Now(),
		log:        logger,
	}
	b.queue = newMessageQueue(conn, limits, b.onFatal)
	return b
}

func connectBolt4(serverName string, conn net.Conn, minor int, auth map[string]interface{},
	userAgent string, limits Limits, logger log.Logger) (*bolt4, error) {

	b := NewBolt4(serverName, conn, minor, limits, logger)
	if err := b.connect(auth, userAgent); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (b *bolt4) ServerName() string {
	return b.serverName
}

func (b *bolt4) ServerVersion() string {
	return b.serverVersion
}

// Invoked by the queue on I/O, codec and protocol violations, all of them
// beyond recovery for this connection.
func (b *bolt4) onFatal(err error) {
	b.err = err
	b.state = bolt4_dead
	b.log.Error(log.Bolt4, b.logId, err)
}

// Invoked when a request is answered with FAILURE. The server keeps the
// connection usable after a reset.
func (b *bolt4) onFailure(err *db.ServerError) {
	b.err = err
	b.state = bolt4_failed
	if err.Classification() == db.ClientError {
		// These could include potentially large cypher statement, only log to debug
		b.log.Debugf(log.Bolt4, b.logId, "%s", err)
	} else {
		b.log.Error(log.Bolt4, b.logId, err)
	}
}

func (b *bolt4) expectedSuccessHandler(onSuccess func(*successResponse)) responseHandler {
	return responseHandler{
		onSuccess: onSuccess,
		onFailure: b.onFailure,
		onIgnored: onIgnoredNoOp,
	}
}

func (b *bolt4) connect(auth map[string]interface{}, userAgent string) error {
	if err := b.assertState(bolt4_unauthorized); err != nil {
		return err
	}

	hello := map[string]interface{}{
		"user_agent": userAgent,
	}
	// Merge authentication info into hello message
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
		// The server hangs up on failed authentication, nothing to reset
		b.state = bolt4_dead
		return err
	}
	if b.err != nil {
		return b.err
	}

	b.state = bolt4_ready
	b.log.Infof(log.Bolt4, b.logId, "Connected")
	return nil
}

func (b *bolt4) onHelloSuccess(succ *successResponse) {
	helloRes := succ.hello()
	if helloRes == nil {
		b.onFatal(&db.ProtocolError{Msg: fmt.Sprintf("Unexpected server response: %+v", succ)})
		return
	}
	b.connId = helloRes.connectionId
	b.logId = fmt.Sprintf("%s@%s", b.connId, b.serverName)
	b.serverVersion = helloRes.server
}

func (b *bolt4) TxBegin(
	mode db.AccessMode, bookmarks []string, timeout time.Duration, txMeta map[string]interface{}) (db.TxHandle, error) {

	// Ok, to begin transaction while streaming auto-commit, just empty the stream and continue.
	if b.state == bolt4_streaming {
		if err := b.bufferStream(); err != nil {
			return 0, err
		}
	}

	if err := b.assertState(bolt4_ready); err != nil {
		return 0, err
	}

	tx := &internalTx4{
		mode:         mode,
		bookmarks:    bookmarks,
		timeout:      timeout,
		txMeta:       txMeta,
		databaseName: b.databaseName,
	}

	// If there are bookmarks, begin the transaction immediately for backwards compatible
	// reasons, otherwise delay it to save a round-trip
	if len(bookmarks) > 0 {
		b.queue.append(msgBegin, b.expectedSuccessHandler(onSuccessNoOp), tx.toMeta())
		b.queue.send()
		if err := b.queue.receiveAll(); err != nil {
			return 0, err
		}
		if b.err != nil {
			return 0, b.err
		}
		b.state = bolt4_tx
	} else {
		// Stash this into pending internal tx
		b.pendingTx = tx
		b.state = bolt4_pendingtx
	}
	b.txId = db.TxHandle(time.Now().Unix())
	return b.txId, nil
}

// Should NOT set b.err or change b.state as this is used to guard from
// misuse from clients that stick to their connections when they shouldn't.
func (b *bolt4) assertTxHandle(h1, h2 db.TxHandle) error {
	if h1 != h2 {
		err := errors.New("Invalid transaction handle")
		b.log.Error(log.Bolt4, b.logId, err)
		return err
	}
	return nil
}

// Should NOT set b.err or b.state since the connection is still valid
func (b *bolt4) assertState(allowed ...int) error {
	// Forward prior error instead, this former error is probably the
	// root cause of any state error. Like a call to Run with malformed
	// cypher causes an error and another call to Commit would cause the
	// state to be wrong. Do not log this.
	if b.err != nil {
		return b.err
	}
	for _, a := range allowed {
		if b.state == a {
			return nil
		}
	}
	err := errors.New(fmt.Sprintf("Invalid state %d, expected: %+v", b.state, allowed))
	b.log.Error(log.Bolt4, b.logId, err)
	return err
}

func (b *bolt4) TxCommit(txh db.TxHandle) error {
	if err := b.assertTxHandle(b.txId, txh); err != nil {
		return err
	}

	// Nothing to do, a transaction started but no commands were issued on it, server is unaware
	if b.state == bolt4_pendingtx {
		b.state = bolt4_ready
		return nil
	}

	// Consume pending stream if any to turn state from streamingtx to tx
	// Access to streams outside of tx boundary is not allowed, therefore we should discard
	// the stream (not buffer).
	if b.state == bolt4_streamingtx {
		if err := b.discardStream(); err != nil {
			return err
		}
	}

	// Should be in vanilla tx state now
	if err := b.assertState(bolt4_tx); err != nil {
		return err
	}

	// On failure the transaction outcome is unknown, the bookmark is only
	// updated upon confirmed commit.
	b.queue.append(msgCommit, b.expectedSuccessHandler(b.onCommitSuccess))
	b.queue.send()
	if err := b.queue.receiveAll(); err != nil {
		return err
	}
	if b.err != nil {
		return b.err
	}

	b.state = bolt4_ready
	return nil
}

func (b *bolt4) onCommitSuccess(succ *successResponse) {
	commitSuccess := succ.commit()
	if len(commitSuccess.bookmark) > 0 {
		b.bookmark = commitSuccess.bookmark
	}
}

func (b *bolt4) TxRollback(txh db.TxHandle) error {
	if err := b.assertTxHandle(b.txId, txh); err != nil {
		return err
	}

	// Nothing to do, a transaction started but no commands were issued on it
	if b.state == bolt4_pendingtx {
		b.state = bolt4_ready
		return nil
	}

	// Can not send rollback while still streaming, consume to turn state into tx
	if b.state == bolt4_streamingtx {
		if err := b.discardStream(); err != nil {
			return err
		}
	}

	// Should be in vanilla tx state now
	if err := b.assertState(bolt4_tx); err != nil {
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

	b.state = bolt4_ready
	return nil
}

func (b *bolt4) appendPullN(stream *stream) {
	b.queue.append(msgPullN, b.pullResponseHandler(stream), map[string]interface{}{"n": stream.fetchSize})
}

func (b *bolt4) appendDiscardN(stream *stream) {
	b.queue.append(msgDiscardN, b.discardResponseHandler(stream), map[string]interface{}{"n": stream.fetchSize})
}

func (b *bolt4) runResponseHandler(stream *stream) responseHandler {
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

func (b *bolt4) pullResponseHandler(stream *stream) responseHandler {
	return responseHandler{
		onRecord: func(rec *db.Record) {
			if !stream.discarding {
				rec.Keys = stream.keys
				stream.push(rec)
			}
			// Expect more responses for this PULL
			b.queue.pushFront(b.pullResponseHandler(stream))
		},
		onSuccess: func(succ *successResponse) {
			if succ.hasMore() {
				stream.endOfBatch = true
				return
			}
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

func (b *bolt4) discardResponseHandler(stream *stream) responseHandler {
	handler := b.pullResponseHandler(stream)
	// A record is never a valid response to DISCARD
	handler.onRecord = nil
	handler.onIgnored = func() {
		stream.err = errors.New("Stream interrupted while discarding records")
		b.currStream = nil
	}
	return handler
}

// Closes out the current stream upon its summary and transitions back to
// ready or tx.
func (b *bolt4) endStream(stream *stream, succ *successResponse) {
	sum := succ.summary()
	sum.ServerName = b.serverName
	sum.ServerVersion = b.serverVersion
	sum.TFirst = b.tfirst
	sum.Major = 4
	sum.Minor = b.minor
	stream.sum = sum
	b.currStream = nil
	if b.state == bolt4_streamingtx {
		b.state = bolt4_tx
	} else {
		b.state = bolt4_ready
		// Keep bookmark for auto-commit tx
		if len(sum.Bookmark) > 0 {
			b.bookmark = sum.Bookmark
		}
	}
}

func (b *bolt4) run(cypher string, params map[string]interface{}, tx *internalTx4) (*stream, error) {
	// If already streaming, consume the whole thing first
	if err := b.bufferStream(); err != nil {
		return nil, err
	}

	if err := b.assertState(bolt4_tx, bolt4_ready, bolt4_pendingtx); err != nil {
		return nil, err
	}

	var meta map[string]interface{}
	if tx != nil {
		meta = tx.toMeta()
	}

	// Append lazy begin transaction message
	if b.state == bolt4_pendingtx {
		b.queue.append(msgBegin, b.expectedSuccessHandler(func(*successResponse) {
			b.state = bolt4_tx
		}), meta)
		meta = nil
	}
	if meta == nil {
		meta = map[string]interface{}{}
	}
	if params == nil {
		params = map[string]interface{}{}
	}

	// Append run and pull messages and send them along with any pending begin
	stream := &stream{fetchSize: bolt4FetchSize}
	b.queue.append(msgRun, b.runResponseHandler(stream), cypher, params, meta)
	b.appendPullN(stream)
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

	if b.state == bolt4_ready {
		b.state = bolt4_streaming
	} else {
		b.state = bolt4_streamingtx
	}
	b.currStream = stream
	return stream, nil
}

func (b *bolt4) Run(
	cypher string, params map[string]interface{}, mode db.AccessMode,
	bookmarks []string, timeout time.Duration, txMeta map[string]interface{}) (db.StreamHandle, error) {

	if err := b.assertState(bolt4_streaming, bolt4_ready); err != nil {
		return nil, err
	}

	tx := internalTx4{
		mode:         mode,
		bookmarks:    bookmarks,
		timeout:      timeout,
		txMeta:       txMeta,
		databaseName: b.databaseName,
	}
	return b.run(cypher, params, &tx)
}

func (b *bolt4) RunTx(txh db.TxHandle, cypher string, params map[string]interface{}) (db.StreamHandle, error) {
	if err := b.assertTxHandle(b.txId, txh); err != nil {
		return nil, err
	}

	stream, err := b.run(cypher, params, b.pendingTx)
	b.pendingTx = nil
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func (b *bolt4) Keys(streamHandle db.StreamHandle) ([]string, error) {
	stream, ok := streamHandle.(*stream)
	if !ok {
		return nil, errors.New("Invalid stream handle")
	}
	// Don't care about if the stream is the current or even if it belongs to this connection.
	return stream.keys, nil
}

// Reads one record from the stream.
func (b *bolt4) Next(streamHandle db.StreamHandle) (*db.Record, *db.Summary, error) {
	stream, ok := streamHandle.(*stream)
	if !ok {
		return nil, nil, errors.New("Invalid stream handle")
	}

	for {
		// Buffered stream or someone elses stream, doesn't matter...
		buf, rec, sum, err := stream.bufferedNext()
		if buf {
			return rec, sum, err
		}

		// Nothing in the stream buffer, the stream must be the current
		// one to fetch on it otherwise something is wrong.
		if stream != b.currStream {
			return nil, nil, errors.New("Invalid stream handle")
		}

		if stream.endOfBatch {
			stream.endOfBatch = false
			b.appendPullN(stream)
			b.queue.send()
			if b.err != nil {
				return nil, nil, b.err
			}
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

func (b *bolt4) Consume(streamHandle db.StreamHandle) (*db.Summary, error) {
	stream, ok := streamHandle.(*stream)
	if !ok {
		return nil, errors.New("Invalid stream handle")
	}

	// If the stream isn't current, it should either already be complete
	// or have an error.
	if stream != b.currStream {
		return stream.sum, stream.err
	}

	// It is the current stream, it should not be complete but...
	if stream.err != nil || stream.sum != nil {
		return stream.sum, stream.err
	}

	if err := b.discardStream(); err != nil {
		return nil, err
	}
	return stream.sum, stream.err
}

func (b *bolt4) Buffer(streamHandle db.StreamHandle) error {
	stream, ok := streamHandle.(*stream)
	if !ok {
		return errors.New("Invalid stream handle")
	}

	// If the stream isn't current, it should either already be complete
	// or have an error.
	if stream != b.currStream {
		return stream.Err()
	}

	// It is the current stream, it should not be complete but...
	if stream.err != nil || stream.sum != nil {
		return stream.Err()
	}

	if err := b.bufferStream(); err != nil {
		return err
	}
	return stream.Err()
}

// Discards all records in current stream, the in-flight batch is received
// and dropped and the remainder is discarded on the server.
func (b *bolt4) discardStream() error {
	if b.state != bolt4_streaming && b.state != bolt4_streamingtx {
		// Nothing to do
		return nil
	}
	stream := b.currStream
	if stream == nil {
		return nil
	}

	stream.discarding = true
	for {
		if err := b.queue.receiveAll(); err != nil {
			return err
		}
		if b.err != nil {
			return b.err
		}
		if stream.sum != nil || stream.err != nil {
			return stream.err
		}
		if stream.endOfBatch {
			stream.endOfBatch = false
			stream.fetchSize = -1
			b.appendDiscardN(stream)
			b.queue.send()
			if b.err != nil {
				return b.err
			}
		}
	}
}

// Collects all records in current stream into its buffer.
func (b *bolt4) bufferStream() error {
	if b.state != bolt4_streaming && b.state != bolt4_streamingtx {
		// Nothing to do
		return nil
	}
	stream := b.currStream
	if stream == nil {
		return nil
	}

	for {
		if err := b.queue.receiveAll(); err != nil {
			return err
		}
		if b.err != nil {
			return b.err
		}
		if stream.sum != nil || stream.err != nil {
			return stream.err
		}
		if stream.endOfBatch {
			stream.endOfBatch = false
			stream.fetchSize = -1
			b.appendPullN(stream)
			b.queue.send()
			if b.err != nil {
				return b.err
			}
		}
	}
}

func (b *bolt4) Bookmark() string {
	return b.bookmark
}

func (b *bolt4) IsAlive() bool {
	return b.state != bolt4_dead
}

func (b *bolt4) Birthdate() time.Time {
	return b.birthDate
}

func (b *bolt4) Reset() {
	defer func() {
		// Reset internal state
		b.txId = 0
		b.currStream = nil
		b.bookmark = ""
		b.pendingTx = nil
		b.databaseName = db.DefaultDatabase
		b.err = nil
	}()

	if b.state == bolt4_ready || b.state == bolt4_dead || b.state == bolt4_unauthorized {
		// No need for reset
		return
	}

	// Discard any pending stream
	b.discardStream()

	if b.state == bolt4_ready || b.state == bolt4_dead {
		// No need for reset
		return
	}

	// Send the reset message to the server, any responses to requests
	// queued behind a failure arrive as IGNORED before the reset
	// confirmation and are received through their own handlers.
	b.queue.append(msgReset, responseHandler{
		onSuccess: func(*successResponse) {
			b.state = bolt4_ready
		},
		onFailure: func(err *db.ServerError) {
			b.state = bolt4_dead
		},
		onIgnored: onIgnoredNoOp,
	})
	b.queue.send()
	b.queue.receiveAll()
}

// Beware, could be called on another thread when driver is closed.
func (b *bolt4) Close() {
	b.log.Infof(log.Bolt4, b.logId, "Close")
	if b.state != bolt4_dead {
		b.queue.appendNoReply(msgGoodbye)
		b.queue.send()
	}
	b.conn.Close()
	b.state = bolt4_dead
}

func (b *bolt4) SelectDatabase(database string) {
	b.databaseName = database
}
