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
	"testing"
	"time"

	"github.com/graphbolt/go-driver/db"
	"github.com/graphbolt/go-driver/dbtype"
	"github.com/graphbolt/go-driver/internal/packstream"
)

// bolt4.connect is tested through Connect, no need to test it here
func TestBolt4(ot *testing.T) {
	// Faked returns from a server
	runKeys := []string{"f1", "f2"}
	runBookmark := "bm"
	runRecords := [][]interface{}{
		{"1v1", "1v2"},
		{"2v1", "2v2"},
		{"3v1", "3v2"},
	}
	runSummary := map[string]interface{}{"bookmark": runBookmark, "type": "r"}

	auth := map[string]interface{}{
		"scheme":      "basic",
		"principal":   "neo4j",
		"credentials": "pass",
	}

	assertBoltState := func(t *testing.T, expected int, bolt *bolt4) {
		t.Helper()
		if expected != bolt.state {
			t.Errorf("Bolt is in unexpected state %d vs %d", expected, bolt.state)
		}
	}

	assertOnlyRecord := func(t *testing.T, rec *db.Record, sum *db.Summary, err error) {
		t.Helper()
		if rec == nil || sum != nil || err != nil {
			t.Fatalf("Expected only record, got rec:%v sum:%v err:%v", rec, sum, err)
		}
	}

	assertOnlySummary := func(t *testing.T, rec *db.Record, sum *db.Summary, err error) {
		t.Helper()
		if rec != nil || sum == nil || err != nil {
			t.Fatalf("Expected only summary, got rec:%v sum:%v err:%v", rec, sum, err)
		}
	}

	assertOnlyError := func(t *testing.T, rec *db.Record, sum *db.Summary, err error) {
		t.Helper()
		if rec != nil || sum != nil || err == nil {
			t.Fatalf("Expected only error, got rec:%v sum:%v err:%v", rec, sum, err)
		}
	}

	assertNoError := func(t *testing.T, err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("Expected no error, got %s", err)
		}
	}

	// Serves the run response and the three records through an accepted
	// connection, then runs the custom job.
	connectToServer := func(t *testing.T, serverJob func(srv *testServer)) (*bolt4, func()) {
		tcpConn, srv, cleanup := setupBoltPipe(t)
		go serverJob(srv)

		c, err := Connect("serverName", tcpConn, auth, "007", Limits{}, logger)
		if err != nil {
			t.Fatal(err)
		}

		bolt := c.(*bolt4)
		assertBoltState(t, bolt4_ready, bolt)
		return bolt, cleanup
	}

	serveRunWithKeys := func(srv *testServer) {
		srv.waitForRun()
		srv.waitForPull()
		srv.sendSuccess(map[string]interface{}{
			"fields":  []interface{}{"f1", "f2"},
			"t_first": int64(1),
		})
		for _, rec := range runRecords {
			srv.sendRecord(rec...)
		}
		srv.sendSuccess(runSummary)
	}

	assertRunResponseOk := func(t *testing.T, bolt *bolt4, stream db.StreamHandle) {
		t.Helper()
		for range runRecords {
			rec, sum, err := bolt.Next(stream)
			assertOnlyRecord(t, rec, sum, err)
		}
		rec, sum, err := bolt.Next(stream)
		assertOnlySummary(t, rec, sum, err)
	}

	ot.Run("Connect success", func(t *testing.T) {
		bolt, cleanup := connectToServer(t, func(srv *testServer) {
			handshake := srv.waitForHandshake()
			// There should be a version 4 proposal somewhere
			foundV4 := false
			for i := 1; i < 5; i++ {
				ver := handshake[(i * 4) : (i*4)+4]
				if ver[3] == 4 {
					foundV4 = true
				}
			}
			if !foundV4 {
				t.Errorf("Didn't find version 4 in handshake: %+v", handshake)
			}
			srv.acceptVersion(4, 1)
			srv.waitForHello()
			srv.acceptHello()
		})
		defer cleanup()
		defer bolt.Close()

		if bolt.ServerName() != "serverName" {
			t.Errorf("Unexpected server name: %s", bolt.ServerName())
		}
		if !bolt.IsAlive() {
			t.Error("Connection should be alive")
		}
		if bolt.ServerVersion() != "fake/4.1" {
			t.Errorf("Unexpected server version: %s", bolt.ServerVersion())
		}
	})

	ot.Run("Failed authentication", func(t *testing.T) {
		conn, srv, cleanup := setupBoltPipe(t)
		defer cleanup()
		defer conn.Close()
		go func() {
			srv.waitForHandshake()
			srv.acceptVersion(4, 1)
			srv.waitForHello()
			srv.rejectHelloUnauthorized()
		}()
		bolt, err := Connect("serverName", conn, auth, "007", Limits{}, logger)
		if bolt != nil {
			t.Fatal("Connect should have failed")
		}
		serverErr, is := err.(*db.ServerError)
		if !is {
			t.Fatalf("Expected server error, got %T: %s", err, err)
		}
		if !serverErr.IsAuthenticationError() {
			t.Errorf("Should be authentication error: %s", serverErr)
		}
	})

	ot.Run("Run auto-commit", func(t *testing.T) {
		bolt, cleanup := connectToServer(t, func(srv *testServer) {
			srv.accept(4, 1)
			serveRunWithKeys(srv)
		})
		defer cleanup()
		defer bolt.Close()

		stream, err := bolt.Run("MATCH (n) RETURN n", nil, db.ReadMode, nil, 0, nil)
		assertNoError(t, err)
		skeys, _ := bolt.Keys(stream)
		if len(skeys) != len(runKeys) || skeys[0] != runKeys[0] || skeys[1] != runKeys[1] {
			t.Errorf("Unexpected keys: %+v", skeys)
		}
		assertBoltState(t, bolt4_streaming, bolt)

		assertRunResponseOk(t, bolt, stream)
		assertBoltState(t, bolt4_ready, bolt)
		// Auto-commit bookmark is kept
		if bolt.Bookmark() != runBookmark {
			t.Errorf("Unexpected bookmark: %s", bolt.Bookmark())
		}
	})

	ot.Run("Run streaming graph values", func(t *testing.T) {
		bolt, cleanup := connectToServer(t, func(srv *testServer) {
			srv.accept(4, 1)
			srv.waitForRun()
			srv.waitForPull()
			srv.sendSuccess(map[string]interface{}{
				"fields":  []interface{}{"n", "r"},
				"t_first": int64(1),
			})
			srv.sendRecord(
				&packstream.Struct{Tag: 'N', Fields: []interface{}{
					int64(7),
					[]interface{}{"Person"},
					map[string]interface{}{"name": "Carrie"},
				}},
				&packstream.Struct{Tag: 'R', Fields: []interface{}{
					int64(1), int64(7), int64(8), "KNOWS",
					map[string]interface{}{},
				}},
			)
			srv.sendSuccess(runSummary)
		})
		defer cleanup()
		defer bolt.Close()

		stream, err := bolt.Run("MATCH (n)-[r]->() RETURN n, r", nil, db.ReadMode, nil, 0, nil)
		assertNoError(t, err)

		rec, sum, err := bolt.Next(stream)
		assertOnlyRecord(t, rec, sum, err)
		node, is := rec.Values[0].(dbtype.Node)
		if !is {
			t.Fatalf("Expected node, got %T", rec.Values[0])
		}
		if node.Id != 7 || len(node.Labels) != 1 || node.Labels[0] != "Person" {
			t.Errorf("Unexpected node: %+v", node)
		}
		if node.Props["name"] != "Carrie" {
			t.Errorf("Unexpected props: %+v", node.Props)
		}
		rel, is := rec.Values[1].(dbtype.Relationship)
		if !is {
			t.Fatalf("Expected relationship, got %T", rec.Values[1])
		}
		if rel.Id != 1 || rel.StartId != 7 || rel.EndId != 8 || rel.Type != "KNOWS" {
			t.Errorf("Unexpected relationship: %+v", rel)
		}

		rec, sum, err = bolt.Next(stream)
		assertOnlySummary(t, rec, sum, err)
	})

	ot.Run("Run with batched stream", func(t *testing.T) {
		bolt, cleanup := connectToServer(t, func(srv *testServer) {
			srv.accept(4, 1)
			srv.waitForRun()
			srv.waitForPull()
			srv.sendSuccess(map[string]interface{}{
				"fields":  []interface{}{"f1", "f2"},
				"t_first": int64(1),
			})
			srv.sendRecord(runRecords[0]...)
			srv.sendRecord(runRecords[1]...)
			srv.sendSuccess(map[string]interface{}{"has_more": true})
			// Client continues the stream with another PULL
			srv.waitForPull()
			srv.sendRecord(runRecords[2]...)
			srv.sendSuccess(runSummary)
		})
		defer cleanup()
		defer bolt.Close()

		stream, err := bolt.Run("MATCH (n) RETURN n", nil, db.ReadMode, nil, 0, nil)
		assertNoError(t, err)
		assertBoltState(t, bolt4_streaming, bolt)

		assertRunResponseOk(t, bolt, stream)
		assertBoltState(t, bolt4_ready, bolt)
	})

	ot.Run("Run transactional commit", func(t *testing.T) {
		committedBookmark := "cbm"
		bolt, cleanup := connectToServer(t, func(srv *testServer) {
			srv.accept(4, 1)
			srv.waitForTxBegin()
			srv.sendSuccess(map[string]interface{}{})
			serveRunWithKeys(srv)
			srv.waitForTxCommit()
			srv.sendSuccess(map[string]interface{}{"bookmark": committedBookmark})
		})
		defer cleanup()
		defer bolt.Close()

		tx, err := bolt.TxBegin(db.ReadMode, nil, 0, nil)
		assertNoError(t, err)
		// Lazy start of transaction when no bookmarks
		assertBoltState(t, bolt4_pendingtx, bolt)
		stream, err := bolt.RunTx(tx, "MATCH (n) RETURN n", nil)
		assertNoError(t, err)
		assertBoltState(t, bolt4_streamingtx, bolt)

		assertRunResponseOk(t, bolt, stream)
		assertBoltState(t, bolt4_tx, bolt)

		assertNoError(t, bolt.TxCommit(tx))
		assertBoltState(t, bolt4_ready, bolt)
		if bolt.Bookmark() != committedBookmark {
			t.Errorf("Unexpected bookmark: %s", bolt.Bookmark())
		}
	})

	ot.Run("Begin transaction with bookmark success", func(t *testing.T) {
		committedBookmark := "cbm"
		bolt, cleanup := connectToServer(t, func(srv *testServer) {
			srv.accept(4, 1)
			begin := srv.waitForTxBegin()
			meta := begin.Fields[0].(map[string]interface{})
			if _, exists := meta["bookmarks"]; !exists {
				panic("Expected bookmarks in begin meta")
			}
			srv.sendSuccess(map[string]interface{}{})
			serveRunWithKeys(srv)
			srv.waitForTxCommit()
			srv.sendSuccess(map[string]interface{}{"bookmark": committedBookmark})
		})
		defer cleanup()
		defer bolt.Close()

		tx, err := bolt.TxBegin(db.ReadMode, []string{"bm1"}, 0, nil)
		assertNoError(t, err)
		// Eager begin when there are bookmarks
		assertBoltState(t, bolt4_tx, bolt)
		stream, err := bolt.RunTx(tx, "MATCH (n) RETURN n", nil)
		assertNoError(t, err)
		assertRunResponseOk(t, bolt, stream)
		assertNoError(t, bolt.TxCommit(tx))
		if bolt.Bookmark() != committedBookmark {
			t.Errorf("Unexpected bookmark: %s", bolt.Bookmark())
		}
	})

	ot.Run("Begin transaction with bookmark failure", func(t *testing.T) {
		bolt, cleanup := connectToServer(t, func(srv *testServer) {
			srv.accept(4, 1)
			srv.waitForTxBegin()
			srv.sendFailureMsg("code", "not synced")
		})
		defer cleanup()
		defer bolt.Close()

		_, err := bolt.TxBegin(db.ReadMode, []string{"bm1"}, 0, nil)
		if err == nil {
			t.Fatal("Expected begin to fail")
		}
		assertBoltState(t, bolt4_failed, bolt)
		if bolt.Bookmark() != "" {
			t.Errorf("Should be no bookmark")
		}
	})

	ot.Run("Run transactional rollback", func(t *testing.T) {
		bolt, cleanup := connectToServer(t, func(srv *testServer) {
			srv.accept(4, 1)
			srv.waitForTxBegin()
			srv.sendSuccess(map[string]interface{}{})
			serveRunWithKeys(srv)
			srv.waitForTxRollback()
			srv.sendSuccess(map[string]interface{}{})
		})
		defer cleanup()
		defer bolt.Close()

		tx, err := bolt.TxBegin(db.ReadMode, nil, 0, nil)
		assertNoError(t, err)
		stream, err := bolt.RunTx(tx, "MATCH (n) RETURN n", nil)
		assertNoError(t, err)
		assertRunResponseOk(t, bolt, stream)
		assertNoError(t, bolt.TxRollback(tx))
		assertBoltState(t, bolt4_ready, bolt)
		// Rollback keeps the bookmark untouched
		if bolt.Bookmark() != "" {
			t.Errorf("Should be no bookmark")
		}
	})

	ot.Run("Commit of pending transaction is local", func(t *testing.T) {
		bolt, cleanup := connectToServer(t, func(srv *testServer) {
			srv.accept(4, 1)
			// No further requests expected
		})
		defer cleanup()
		defer bolt.Close()

		tx, err := bolt.TxBegin(db.WriteMode, nil, 0, nil)
		assertNoError(t, err)
		assertBoltState(t, bolt4_pendingtx, bolt)
		assertNoError(t, bolt.TxCommit(tx))
		assertBoltState(t, bolt4_ready, bolt)
	})

	ot.Run("Transaction timeout and metadata in begin", func(t *testing.T) {
		bolt, cleanup := connectToServer(t, func(srv *testServer) {
			srv.accept(4, 1)
			begin := srv.waitForTxBegin()
			meta := begin.Fields[0].(map[string]interface{})
			if meta["tx_timeout"] != int64(500) {
				panic("Expected tx_timeout 500")
			}
			if _, exists := meta["tx_metadata"]; !exists {
				panic("Expected tx_metadata")
			}
			srv.sendSuccess(map[string]interface{}{})
		})
		defer cleanup()
		defer bolt.Close()

		// Bookmarks force the eager begin so the server sees the meta
		_, err := bolt.TxBegin(db.WriteMode, []string{"bm1"}, 500*time.Millisecond,
			map[string]interface{}{"user": "meta"})
		assertNoError(t, err)
	})

	ot.Run("Server close while streaming", func(t *testing.T) {
		bolt, cleanup := connectToServer(t, func(srv *testServer) {
			srv.accept(4, 1)
			srv.waitForRun()
			srv.waitForPull()
			srv.sendSuccess(map[string]interface{}{
				"fields":  []interface{}{"f1", "f2"},
				"t_first": int64(1),
			})
			srv.sendRecord("1v1", "1v2")
			// Pretty nice towards bolt, a full message is written
			srv.closeConnection()
		})
		defer cleanup()
		defer bolt.Close()

		stream, err := bolt.Run("MATCH (n) RETURN n", nil, db.ReadMode, nil, 0, nil)
		assertNoError(t, err)
		assertBoltState(t, bolt4_streaming, bolt)

		rec, sum, err := bolt.Next(stream)
		assertOnlyRecord(t, rec, sum, err)

		// Next one should fail due to connection closed
		rec, sum, err = bolt.Next(stream)
		assertOnlyError(t, rec, sum, err)
		if bolt.IsAlive() {
			t.Error("Connection should be dead")
		}
	})

	ot.Run("Server fail on run with reset", func(t *testing.T) {
		bolt, cleanup := connectToServer(t, func(srv *testServer) {
			srv.accept(4, 1)
			srv.waitForRun()
			srv.waitForPull()
			srv.sendFailureMsg("code", "msg") // RUN failed
			srv.sendIgnoredMsg()              // PULL ignored
			srv.waitForReset()
			srv.sendSuccess(map[string]interface{}{})
		})
		defer cleanup()
		defer bolt.Close()

		// Fake syntax error that doesn't really matter...
		_, err := bolt.Run("MATCH (n RETURN n", nil, db.ReadMode, nil, 0, nil)
		if _, is := err.(*db.ServerError); !is {
			t.Fatalf("Expected server error, got %T", err)
		}
		assertBoltState(t, bolt4_failed, bolt)

		// New work is rejected until the connection has been reset
		if _, err = bolt.Run("MATCH (n) RETURN n", nil, db.ReadMode, nil, 0, nil); err == nil {
			t.Fatal("Expected error when running on failed connection")
		}
		assertBoltState(t, bolt4_failed, bolt)

		bolt.Reset()
		assertBoltState(t, bolt4_ready, bolt)
	})

	ot.Run("Server fail on run continue to commit", func(t *testing.T) {
		bolt, cleanup := connectToServer(t, func(srv *testServer) {
			srv.accept(4, 1)
			srv.waitForTxBegin()
			srv.sendSuccess(map[string]interface{}{})
			srv.waitForRun()
			srv.waitForPull()
			srv.sendFailureMsg("code", "msg")
			srv.sendIgnoredMsg()
		})
		defer cleanup()
		defer bolt.Close()

		tx, err := bolt.TxBegin(db.ReadMode, []string{"bm1"}, 0, nil)
		assertNoError(t, err)
		_, err = bolt.RunTx(tx, "MATCH (n) RETURN n", nil)
		if _, is := err.(*db.ServerError); !is {
			t.Fatalf("Expected server error, got %T", err)
		}
		err = bolt.TxCommit(tx) // This will fail due to above failed
		// Should have same error as from run since that is the original cause
		if _, is := err.(*db.ServerError); !is {
			t.Fatalf("Expected server error, got %T", err)
		}
	})

	ot.Run("Reset while streaming", func(t *testing.T) {
		bolt, cleanup := connectToServer(t, func(srv *testServer) {
			srv.accept(4, 1)
			serveRunWithKeys(srv)
			// The stream completes during discard, no RESET is needed
		})
		defer cleanup()
		defer bolt.Close()

		_, err := bolt.Run("MATCH (n) RETURN n", nil, db.ReadMode, nil, 0, nil)
		assertNoError(t, err)
		assertBoltState(t, bolt4_streaming, bolt)

		bolt.Reset()
		assertBoltState(t, bolt4_ready, bolt)
	})

	ot.Run("Buffer stream", func(t *testing.T) {
		bolt, cleanup := connectToServer(t, func(srv *testServer) {
			srv.accept(4, 1)
			serveRunWithKeys(srv)
			srv.closeConnection()
		})
		defer cleanup()
		defer bolt.Close()

		stream, _ := bolt.Run("cypher", nil, db.ReadMode, nil, 0, nil)
		// This should force all records to be buffered in the stream
		err := bolt.Buffer(stream)
		assertNoError(t, err)
		if bolt.Bookmark() != runBookmark {
			t.Errorf("Unexpected bookmark: %s", bolt.Bookmark())
		}

		// Server closed the connection and bolt will die on next use
		_, err = bolt.Run("cypher", nil, db.ReadMode, nil, 0, nil)
		if err == nil {
			t.Fatal("Expected run to fail")
		}
		assertBoltState(t, bolt4_dead, bolt)

		// Should still be able to read from the stream even though bolt is dead
		assertRunResponseOk(t, bolt, stream)

		// Buffering again should not affect anything
		assertNoError(t, bolt.Buffer(stream))
		rec, sum, err := bolt.Next(stream)
		assertOnlySummary(t, rec, sum, err)
	})

	ot.Run("Buffer stream with error", func(t *testing.T) {
		bolt, cleanup := connectToServer(t, func(srv *testServer) {
			srv.accept(4, 1)
			srv.waitForRun()
			srv.waitForPull()
			srv.sendSuccess(map[string]interface{}{
				"fields":  []interface{}{"f1", "f2"},
				"t_first": int64(1),
			})
			srv.sendRecord("1v1", "1v2")
			srv.sendFailureMsg("thecode", "themessage")
		})
		defer cleanup()
		defer bolt.Close()

		stream, _ := bolt.Run("cypher", nil, db.ReadMode, nil, 0, nil)
		err := bolt.Buffer(stream)
		// The error is reported when the stream reaches it
		if _, is := err.(*db.ServerError); !is {
			t.Fatalf("Expected server error, got %T", err)
		}
		// Retrieve the one record we got
		rec, sum, nextErr := bolt.Next(stream)
		assertOnlyRecord(t, rec, sum, nextErr)
		// Now we should see the error
		rec, sum, nextErr = bolt.Next(stream)
		assertOnlyError(t, rec, sum, nextErr)
		// Should be no bookmark since we failed
		if bolt.Bookmark() != "" {
			t.Errorf("Should be no bookmark")
		}
	})

	ot.Run("Consume stream with discard", func(t *testing.T) {
		bolt, cleanup := connectToServer(t, func(srv *testServer) {
			srv.accept(4, 1)
			srv.waitForRun()
			srv.waitForPull()
			srv.sendSuccess(map[string]interface{}{
				"fields":  []interface{}{"f1"},
				"t_first": int64(1),
			})
			srv.sendRecord("1")
			srv.sendRecord("2")
			srv.sendSuccess(map[string]interface{}{"has_more": true})
			// Rest of the stream is discarded on the server
			srv.waitForDiscard()
			srv.sendSuccess(runSummary)
		})
		defer cleanup()
		defer bolt.Close()

		stream, _ := bolt.Run("cypher", nil, db.ReadMode, nil, 0, nil)
		// Read one to put it in a less comfortable state
		rec, sum, err := bolt.Next(stream)
		assertOnlyRecord(t, rec, sum, err)

		sum, err = bolt.Consume(stream)
		assertNoError(t, err)
		if sum == nil {
			t.Fatal("Expected summary")
		}
		if bolt.Bookmark() != runBookmark {
			t.Errorf("Unexpected bookmark: %s", bolt.Bookmark())
		}

		// Should only get the summary from the stream since we consumed everything
		rec, sum, err = bolt.Next(stream)
		assertOnlySummary(t, rec, sum, err)

		// Consuming again should just return the summary again
		sum, err = bolt.Consume(stream)
		assertNoError(t, err)
		if sum == nil {
			t.Fatal("Expected summary")
		}
	})

	ot.Run("Consume with invalid stream", func(t *testing.T) {
		bolt, cleanup := connectToServer(t, func(srv *testServer) {
			srv.accept(4, 1)
		})
		defer cleanup()
		defer bolt.Close()

		sum, err := bolt.Consume(db.StreamHandle(1))
		if sum != nil || err == nil {
			t.Fatal("Expected error for invalid handle")
		}
	})

	ot.Run("Database selection in run", func(t *testing.T) {
		bolt, cleanup := connectToServer(t, func(srv *testServer) {
			srv.accept(4, 1)
			run := srv.waitForRun()
			meta := run.Fields[2].(map[string]interface{})
			if meta["db"] != "thedb" {
				panic("Expected db selection in run meta")
			}
			srv.waitForPull()
			srv.sendSuccess(map[string]interface{}{
				"fields":  []interface{}{"f1"},
				"t_first": int64(1),
			})
			srv.sendSuccess(map[string]interface{}{})
		})
		defer cleanup()
		defer bolt.Close()

		bolt.SelectDatabase("thedb")
		stream, err := bolt.Run("cypher", nil, db.ReadMode, nil, 0, nil)
		assertNoError(t, err)
		rec, sum, err := bolt.Next(stream)
		assertOnlySummary(t, rec, sum, err)
	})
}
