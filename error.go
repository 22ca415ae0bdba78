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

package graphbolt

import (
	"fmt"
	"strings"

	"github.com/graphbolt/go-driver/db"
)

// UsageError represents errors caused by incorrect usage of the driver API.
// This does not include Cypher syntax, those errors will be ServerError.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// TransactionExecutionLimit indicates that a retryable operation has failed
// to complete within the configured maximum retry time.
type TransactionExecutionLimit struct {
	Errors []string
	Causes int
}

func (e *TransactionExecutionLimit) Error() string {
	return fmt.Sprintf("Retryable operation failed to complete after %d attempts, suppressed errors: [%s]",
		e.Causes, strings.Join(e.Errors, ", "))
}

// IsServerError returns true if the error is a server generated error and
// extracts it for inspection of code and message.
func IsServerError(err error) (*db.ServerError, bool) {
	serverErr, is := err.(*db.ServerError)
	return serverErr, is
}

// IsRetriableError returns true if the error is either a transient server
// error or a loss of connectivity, in which case retrying the enclosing
// transaction on another connection could succeed.
func IsRetriableError(err error) bool {
	switch e := err.(type) {
	case *db.ServerError:
		return e.IsRetriable()
	case *db.ConnectivityError:
		return true
	}
	return false
}

// IsTransientError returns true if the error is a server generated error
// of transient nature.
func IsTransientError(err error) bool {
	serverErr, is := err.(*db.ServerError)
	return is && serverErr.Classification() == db.TransientError
}

// IsAuthenticationError returns true if the server rejected the provided
// credentials.
func IsAuthenticationError(err error) bool {
	serverErr, is := err.(*db.ServerError)
	return is && serverErr.IsAuthenticationError()
}

// IsConnectivityError returns true if the error signals a problem with the
// underlying connection or the network, not with the executed work itself.
func IsConnectivityError(err error) bool {
	switch err.(type) {
	case *db.ConnectivityError, *db.TimeoutError:
		return true
	}
	return false
}

// IsUsageError returns true if the error is caused by incorrect usage of
// the driver API.
func IsUsageError(err error) bool {
	_, is := err.(*UsageError)
	return is
}
