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

package db

import (
	"fmt"
	"strings"
)

// ServerError is created when the database server fails to fulfill a
// request, a FAILURE on the wire. The connection recovers through Reset,
// the error itself carries the server's code and message.
type ServerError struct {
	Code string
	Msg  string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("Server error: [%s] %s", e.Code, e.Msg)
}

// Classification resolves the error code against the installed
// classification rules, see classification.go.
func (e *ServerError) Classification() Classification {
	return classify(e.Code)
}

// IsRetriable returns true for errors where retrying the enclosing unit of
// work on another or the same connection might succeed.
func (e *ServerError) IsRetriable() bool {
	return isRetriable(e.Code)
}

func (e *ServerError) IsAuthenticationError() bool {
	return e.Code == "Neo.ClientError.Security.Unauthorized"
}

// Category is the second to last part of the error code, the last part is
// the title. Empty when the code doesn't follow the four part convention.
func (e *ServerError) Category() string {
	parts := strings.Split(e.Code, ".")
	if len(parts) != 4 {
		return ""
	}
	return parts[2]
}

// ConnectivityError represents a failure in the underlying connection,
// the connection is dead and will not be used again.
type ConnectivityError struct {
	Inner error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("Connectivity error: %s", e.Inner)
}

// TimeoutError is raised when a socket deadline expires. The connection is
// left in an unknown protocol state and goes dead.
type TimeoutError struct {
	Msg string
}

func (e *TimeoutError) Error() string {
	return e.Msg
}

// ProtocolError is raised when the server breaks a protocol invariant,
// an unexpected message or malformed data. Always fatal for the connection.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("Protocol error: %s", e.Msg)
}

// UnsupportedVersionError is raised when the version negotiation handshake
// ends with a version this driver didn't propose, including the all zero
// rejection response.
type UnsupportedVersionError struct {
	Proposed [4][2]int
	Server   [2]int
}

func (e *UnsupportedVersionError) Error() string {
	if e.Server == [2]int{0, 0} {
		return fmt.Sprintf("Server rejected all proposed versions %v", e.Proposed)
	}
	return fmt.Sprintf("Server responded with unsupported version %d.%d to proposals %v",
		e.Server[0], e.Server[1], e.Proposed)
}
