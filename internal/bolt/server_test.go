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
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/graphbolt/go-driver/internal/packstream"
	"github.com/graphbolt/go-driver/log"
)

var logger = &log.Void{}

// Fake of a bolt server for testing the protocol implementations.
// Uses panic upon errors, simplifies output when the server is running
// within a go routine in the test.
type testServer struct {
	conn     net.Conn
	chunker  chunker
	packer   packstream.Packer
	unpacker packstream.Unpacker
	msgBuf   []byte
}

func newTestServer(conn net.Conn) *testServer {
	return &testServer{
		conn:    conn,
		chunker: newChunker(),
		msgBuf:  make([]byte, 0, 4096),
	}
}

func (s *testServer) waitForHandshake() []byte {
	handshake := make([]byte, 4*5)
	_, err := io.ReadFull(s.conn, handshake)
	if err != nil {
		panic(err)
	}
	return handshake
}

func (s *testServer) acceptVersion(major, minor byte) {
	accepted := []byte{0x00, 0x00, minor, major}
	if _, err := s.conn.Write(accepted); err != nil {
		panic(err)
	}
}

func (s *testServer) rejectVersions() {
	if _, err := s.conn.Write([]byte{0x00, 0x00, 0x00, 0x00}); err != nil {
		panic(err)
	}
}

func (s *testServer) respondHTTP() {
	// "HTTP" as returned by a web server on the wrong port
	if _, err := s.conn.Write([]byte{'H', 'T', 'T', 'P'}); err != nil {
		panic(err)
	}
}

func (s *testServer) closeConnection() {
	s.conn.Close()
}

func (s *testServer) receiveMsg() *packstream.Struct {
	var msg []byte
	var err error
	s.msgBuf, msg, err = dechunkMessage(s.conn, s.msgBuf, 0)
	if err != nil {
		panic(err)
	}
	x, err := s.unpacker.UnpackStruct(msg, func(tag packstream.StructTag, fields []interface{}) (interface{}, error) {
		return &packstream.Struct{Tag: tag, Fields: fields}, nil
	})
	if err != nil {
		panic(err)
	}
	return x.(*packstream.Struct)
}

func (s *testServer) assertStructType(msg *packstream.Struct, t packstream.StructTag) {
	if msg.Tag != t {
		panic(fmt.Sprintf("Got wrong type of message expected %d but got %d (%+v)", t, msg.Tag, msg))
	}
}

func (s *testServer) send(tag packstream.StructTag, fields ...interface{}) {
	s.chunker.beginMessage()
	var err error
	s.chunker.buf, err = s.packer.PackStruct(s.chunker.buf, nil, tag, fields...)
	if err != nil {
		panic(err)
	}
	s.chunker.endMessage()
	if err := s.chunker.send(s.conn); err != nil {
		panic(err)
	}
}

func (s *testServer) sendSuccess(m map[string]interface{}) {
	s.send(msgSuccess, m)
}

func (s *testServer) sendRecord(values ...interface{}) {
	s.send(msgRecord, values)
}

func (s *testServer) sendFailureMsg(code, msg string) {
	s.send(msgFailure, map[string]interface{}{
		"code":    code,
		"message": msg,
	})
}

func (s *testServer) sendIgnoredMsg() {
	s.send(msgIgnored)
}

func (s *testServer) waitForHello() *packstream.Struct {
	msg := s.receiveMsg()
	s.assertStructType(msg, msgHello)
	m := msg.Fields[0].(map[string]interface{})
	if _, exists := m["scheme"]; !exists {
		s.sendFailureMsg("?", "Missing scheme in hello")
	}
	if _, exists := m["user_agent"]; !exists {
		s.sendFailureMsg("?", "Missing user_agent in hello")
	}
	return msg
}

func (s *testServer) acceptHello() {
	s.sendSuccess(map[string]interface{}{
		"connection_id": "cid",
		"server":        "fake/4.1",
	})
}

func (s *testServer) rejectHelloUnauthorized() {
	s.sendFailureMsg("Neo.ClientError.Security.Unauthorized", "")
}

func (s *testServer) waitForRun() *packstream.Struct {
	msg := s.receiveMsg()
	s.assertStructType(msg, msgRun)
	return msg
}

func (s *testServer) waitForPull() *packstream.Struct {
	msg := s.receiveMsg()
	s.assertStructType(msg, msgPullN)
	return msg
}

func (s *testServer) waitForDiscard() *packstream.Struct {
	msg := s.receiveMsg()
	s.assertStructType(msg, msgDiscardN)
	return msg
}

func (s *testServer) waitForReset() {
	msg := s.receiveMsg()
	s.assertStructType(msg, msgReset)
}

func (s *testServer) waitForTxBegin() *packstream.Struct {
	msg := s.receiveMsg()
	s.assertStructType(msg, msgBegin)
	return msg
}

func (s *testServer) waitForTxCommit() {
	msg := s.receiveMsg()
	s.assertStructType(msg, msgCommit)
}

func (s *testServer) waitForTxRollback() {
	msg := s.receiveMsg()
	s.assertStructType(msg, msgRollback)
}

// Utility when something else but connect is to be tested
func (s *testServer) accept(major, minor byte) {
	s.waitForHandshake()
	s.acceptVersion(major, minor)
	s.waitForHello()
	s.acceptHello()
}

// Waits for a RUN and the PULL that is pipelined with it, confirms the run
// and streams the records followed by the summary.
func (s *testServer) serveRun(records [][]interface{}, summary map[string]interface{}) {
	s.waitForRun()
	s.waitForPull()
	s.sendSuccess(map[string]interface{}{
		"fields":  []interface{}{"n"},
		"t_first": int64(1),
	})
	for _, rec := range records {
		s.sendRecord(rec...)
	}
	if summary == nil {
		summary = map[string]interface{}{}
	}
	s.sendSuccess(summary)
}

func setupBoltPipe(t *testing.T) (net.Conn, *testServer, func()) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Unable to listen: %s", err)
	}

	addr := l.Addr()
	clientConn, err := net.Dial(addr.Network(), addr.String())
	if err != nil {
		t.Fatalf("Dial error: %s", err)
	}

	srvConn, err := l.Accept()
	if err != nil {
		t.Fatalf("Accept error: %s", err)
	}
	srv := newTestServer(srvConn)

	return clientConn, srv, func() {
		l.Close()
	}
}
