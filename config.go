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
	"time"

	"github.com/graphbolt/go-driver/log"
)

// A Config contains options that can be used to customize certain
// aspects of the driver
type Config struct {
	// Logging target the driver will send its log outputs
	//
	// default: No Op Logger (log.Void)
	Log log.Logger
	// MaxTransactionRetryTime is the maximum amount of time that a managed
	// transaction will retry before failing.
	//
	// default: 30 * time.Second
	MaxTransactionRetryTime time.Duration
	// MaxConnectionPoolSize is the maximum number of connections, borrowed
	// and idle combined, that the driver maintains.
	//
	// default: 100
	MaxConnectionPoolSize int
	// ConnectionAcquisitionTimeout is the maximum amount of time a session
	// waits to acquire a connection when the pool is exhausted. Zero or
	// below waits forever.
	//
	// default: 1 * time.Minute
	ConnectionAcquisitionTimeout time.Duration
	// SocketConnectTimeout is the maximum amount of time to wait for a TCP
	// connection to be established.
	//
	// default: 5 * time.Second
	SocketConnectTimeout time.Duration
	// SocketTimeout is the deadline applied to each read and write on the
	// underlying connection. Zero or below disables deadlines.
	//
	// default: 0
	SocketTimeout time.Duration
	// MaxMessageSize caps the size of a single incoming message, a message
	// exceeding the cap poisons the connection. Zero or below means
	// unlimited.
	//
	// default: 64 MiB
	MaxMessageSize int
	// MaxChunkSize caps the payload of a single outgoing chunk. The wire
	// format limits chunks to 65535 bytes, configuring anything above that
	// is an error.
	//
	// default: 65535
	MaxChunkSize int
	// UserAgent is the string identifying this driver to the server.
	//
	// default: "graphbolt-go/4.1"
	UserAgent string
}

// UserAgent used by the driver unless overridden in the configuration.
const DefaultUserAgent = "graphbolt-go/4.1"

func defaultConfig() *Config {
	return &Config{
		Log:                          &log.Void{},
		MaxTransactionRetryTime:      30 * time.Second,
		MaxConnectionPoolSize:        100,
		ConnectionAcquisitionTimeout: 1 * time.Minute,
		SocketConnectTimeout:         5 * time.Second,
		SocketTimeout:                0,
		MaxMessageSize:               64 * 1024 * 1024,
		MaxChunkSize:                 0xffff,
		UserAgent:                    DefaultUserAgent,
	}
}

func validateConfig(config *Config) error {
	if config.Log == nil {
		config.Log = &log.Void{}
	}
	if config.MaxConnectionPoolSize == 0 {
		return &UsageError{Message: "Maximum connection pool cannot be 0"}
	}
	if config.UserAgent == "" {
		return &UsageError{Message: "User agent cannot be empty"}
	}
	if config.MaxChunkSize > 0xffff {
		return &UsageError{Message: "Maximum chunk size cannot exceed 65535"}
	}
	return nil
}
