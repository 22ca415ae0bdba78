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

// Package bolt contains implementations of the database functionality.
package bolt

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/graphbolt/go-driver/db"
	"github.com/graphbolt/go-driver/log"
)

type protocolVersion struct {
	major byte
	minor byte
}

// Supported versions in priority order
var versions = [4]protocolVersion{
	{major: 4, minor: 1},
	{major: 4, minor: 0},
	{major: 3, minor: 5},
	{major: 3, minor: 1},
}

// Limits carried from the driver configuration into the connection.
type Limits struct {
	// MaxMessageSize caps the size of a received message, zero or below
	// means unlimited.
	MaxMessageSize int
	// MaxChunkSize caps the payload of an outgoing chunk, zero or below
	// or anything above the protocol limit of 0xffff means the protocol
	// limit.
	MaxChunkSize int
	// SocketTimeout is the deadline applied to each socket read and write,
	// zero or below disables deadlines.
	SocketTimeout time.Duration
}

func proposedVersions() [4][2]int {
	p := [4][2]int{}
	for i, v := range versions {
		p[i] = [2]int{int(v.major), int(v.minor)}
	}
	return p
}

// Connect negotiates the protocol version with the server and returns a
// connection implementing db.Connection for the agreed version, ready for
// use after authentication. The version selects the implementation once,
// at construction, a bolt3 connection will never send a 4.x message and
// vice versa.
func Connect(serverName string, conn net.Conn, auth map[string]interface{},
	userAgent string, limits Limits, logger log.Logger) (db.Connection, error) {

	// Send handshake to server
	handshake := []byte{
		0x60, 0x60, 0xb0, 0x17, // Magic: GoGoBolt
		0x00, 0x00, versions[0].minor, versions[0].major,
		0x00, 0x00, versions[1].minor, versions[1].major,
		0x00, 0x00, versions[2].minor, versions[2].major,
		0x00, 0x00, versions[3].minor, versions[3].major,
	}
	if limits.SocketTimeout > 0 {
		conn.SetDeadline(time.Now().Add(limits.SocketTimeout))
	}
	if _, err := conn.Write(handshake); err != nil {
		return nil, &db.ConnectivityError{Inner: err}
	}

	// Receive accepted server version
	buf := make([]byte, 4)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return nil, &db.ConnectivityError{Inner: err}
	}
	if limits.SocketTimeout > 0 {
		conn.SetDeadline(time.Time{})
	}

	major := buf[3]
	minor := buf[2]
	if major == 'P' && minor == 'T' {
		// Server responded HTTP
		return nil, &db.ProtocolError{Msg: "Server responded HTTP, make sure the port is a Bolt endpoint"}
	}
	matched := false
	for _, v := range versions {
		if buf[0] == 0 && buf[1] == 0 && major == v.major && minor == v.minor {
			matched = true
			break
		}
	}
	if !matched {
		return nil, &db.UnsupportedVersionError{
			Proposed: proposedVersions(),
			Server:   [2]int{int(major), int(minor)},
		}
	}

	var boltConn db.Connection
	var err error
	switch major {
	case 3:
		boltConn, err = connectBolt3(serverName, conn, int(minor), auth, userAgent, limits, logger)
	case 4:
		boltConn, err = connectBolt4(serverName, conn, int(minor), auth, userAgent, limits, logger)
	default:
		// Unreachable, matched versions only contain 3 and 4
		return nil, &db.ProtocolError{Msg: fmt.Sprintf("No implementation for version %d.%d", major, minor)}
	}
	if err != nil {
		return nil, err
	}
	return boltConn, nil
}
