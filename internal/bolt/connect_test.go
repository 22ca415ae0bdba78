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

	"github.com/graphbolt/go-driver/db"
)

func TestConnect(ot *testing.T) {
	auth := map[string]interface{}{
		"scheme":      "basic",
		"principal":   "neo4j",
		"credentials": "pass",
	}

	ot.Run("Handshake layout", func(t *testing.T) {
		conn, srv, cleanup := setupBoltPipe(t)
		defer cleanup()

		go func() {
			handshake := srv.waitForHandshake()
			// Magic preamble
			magic := []byte{0x60, 0x60, 0xb0, 0x17}
			for i, m := range magic {
				if handshake[i] != m {
					panic("Bad magic in handshake")
				}
			}
			// Proposals in priority order, newest first
			if handshake[7] != 4 || handshake[6] != 1 {
				panic("First proposal should be 4.1")
			}
			if handshake[19] != 3 || handshake[18] != 1 {
				panic("Last proposal should be 3.1")
			}
			srv.acceptVersion(4, 1)
			srv.waitForHello()
			srv.acceptHello()
		}()

		boltconn, err := Connect("servername", conn, auth, "007", Limits{}, logger)
		if err != nil {
			t.Fatal(err)
		}
		boltconn.Close()
	})

	ot.Run("Server rejects versions", func(t *testing.T) {
		conn, srv, cleanup := setupBoltPipe(t)
		defer cleanup()

		// Simulate server that rejects whatever version the client supports
		go func() {
			srv.waitForHandshake()
			srv.rejectVersions()
			srv.closeConnection()
		}()

		_, err := Connect("servername", conn, auth, "007", Limits{}, logger)
		verErr, is := err.(*db.UnsupportedVersionError)
		if !is {
			t.Fatalf("Expected unsupported version error, got %T: %s", err, err)
		}
		if verErr.Server != [2]int{0, 0} {
			t.Errorf("Unexpected server version in error: %+v", verErr.Server)
		}
	})

	ot.Run("Server answers with non-proposed version", func(t *testing.T) {
		conn, srv, cleanup := setupBoltPipe(t)
		defer cleanup()

		go func() {
			srv.waitForHandshake()
			srv.acceptVersion(1, 0)
		}()

		boltconn, err := Connect("servername", conn, auth, "007", Limits{}, logger)
		if _, is := err.(*db.UnsupportedVersionError); !is {
			t.Fatalf("Expected unsupported version error, got %T: %s", err, err)
		}
		if boltconn != nil {
			t.Error("Shouldn't have returned a connection")
		}
	})

	ot.Run("Server responds HTTP", func(t *testing.T) {
		conn, srv, cleanup := setupBoltPipe(t)
		defer cleanup()

		go func() {
			srv.waitForHandshake()
			srv.respondHTTP()
		}()

		_, err := Connect("servername", conn, auth, "007", Limits{}, logger)
		if _, is := err.(*db.ProtocolError); !is {
			t.Fatalf("Expected protocol error, got %T: %s", err, err)
		}
	})

	ot.Run("Server hangs up during handshake", func(t *testing.T) {
		conn, srv, cleanup := setupBoltPipe(t)
		defer cleanup()

		go func() {
			srv.waitForHandshake()
			srv.closeConnection()
		}()

		_, err := Connect("servername", conn, auth, "007", Limits{}, logger)
		if _, is := err.(*db.ConnectivityError); !is {
			t.Fatalf("Expected connectivity error, got %T: %s", err, err)
		}
	})

	ot.Run("Version 3 server gets bolt3", func(t *testing.T) {
		conn, srv, cleanup := setupBoltPipe(t)
		defer cleanup()

		go func() {
			srv.waitForHandshake()
			srv.acceptVersion(3, 1)
			srv.waitForHello()
			srv.acceptHello()
		}()

		boltconn, err := Connect("servername", conn, auth, "007", Limits{}, logger)
		if err != nil {
			t.Fatal(err)
		}
		defer boltconn.Close()
		if _, is := boltconn.(*bolt3); !is {
			t.Errorf("Expected bolt3 connection, got %T", boltconn)
		}
	})
}
