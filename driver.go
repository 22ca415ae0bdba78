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
	"net"
	"net/url"
	"sync/atomic"

	"github.com/graphbolt/go-driver/db"
	"github.com/graphbolt/go-driver/internal/bolt"
	"github.com/graphbolt/go-driver/log"
	"github.com/graphbolt/go-driver/pool"
)

// AccessMode defines modes that routing driver decides to which cluster member
// a connection should be opened.
type AccessMode int

const (
	// AccessModeWrite tells the driver to use a connection to 'Leader'
	AccessModeWrite AccessMode = 0
	// AccessModeRead tells the driver to use a connection to one of the 'Follower' or 'Read Replica'.
	AccessModeRead AccessMode = 1
)

// Driver represents a pool of connections to a database server. It's
// safe for concurrent use.
type Driver interface {
	// Target returns the url this driver is bootstrapped
	Target() url.URL
	// Session acquires a new session with the provided access mode and
	// initial bookmarks.
	Session(accessMode AccessMode, bookmarks ...string) (Session, error)
	// NewSession acquires a new session with full control over its
	// configuration, including which database to connect to.
	NewSession(config SessionConfig) (Session, error)
	// Close the driver and all underlying connections
	Close() error
}

// NewDriver is the entry point to the driver to create an instance of a
// Driver. It is the first function to be called in order to establish a
// connection to a database. It requires a Bolt URI and an authentication
// token as parameters and can also take optional configuration function(s)
// as variadic parameters.
//
// To connect to a single instance database, you need to pass a URI with
// scheme 'bolt'
//	driver, err = NewDriver("bolt://db.server:7687", BasicAuth(username, password, ""))
//
// You can override default configuration options by providing a
// configuration function(s)
//	driver, err = NewDriver(uri, BasicAuth(username, password, ""), func(config *Config) {
//		config.MaxConnectionPoolSize = 10
//	})
func NewDriver(target string, auth AuthToken, configurers ...func(*Config)) (Driver, error) {
	parsed, err := url.Parse(target)
	if err != nil {
		return nil, err
	}

	if parsed.Scheme != "bolt" {
		return nil, &UsageError{Message: "URL scheme " + parsed.Scheme + " is not supported"}
	}
	if parsed.Host == "" {
		return nil, &UsageError{Message: "URL is missing a host"}
	}
	if len(parsed.RawQuery) > 0 {
		return nil, &UsageError{Message: "Routing context is not supported for direct connections"}
	}

	config := defaultConfig()
	for _, configurer := range configurers {
		configurer(config)
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	address := parsed.Host
	if parsed.Port() == "" {
		address = net.JoinHostPort(parsed.Hostname(), defaultPort)
	}

	d := &driver{
		target: parsed,
		config: config,
		log:    config.Log,
	}

	connect := func() (db.Connection, error) {
		conn, err := net.DialTimeout("tcp", address, config.SocketConnectTimeout)
		if err != nil {
			return nil, &db.ConnectivityError{Inner: err}
		}
		limits := bolt.Limits{
			MaxMessageSize: config.MaxMessageSize,
			MaxChunkSize:   config.MaxChunkSize,
			SocketTimeout:  config.SocketTimeout,
		}
		boltConn, err := bolt.Connect(address, conn, auth.tokens, config.UserAgent, limits, config.Log)
		if err != nil {
			conn.Close()
			return nil, err
		}
		return boltConn, nil
	}

	d.pool = pool.New(connect, pool.Config{
		MaxSize:            config.MaxConnectionPoolSize,
		AcquisitionTimeout: config.ConnectionAcquisitionTimeout,
	}, config.Log)

	d.log.Infof(log.Driver, d.target.Host, "Created driver")
	return d, nil
}

const defaultPort = "7687"

type driver struct {
	target *url.URL
	config *Config
	pool   *pool.Pool
	log    log.Logger
	closed int32
}

func (d *driver) Target() url.URL {
	return *d.target
}

func (d *driver) Session(accessMode AccessMode, bookmarks ...string) (Session, error) {
	return d.NewSession(SessionConfig{AccessMode: accessMode, Bookmarks: bookmarks})
}

func (d *driver) NewSession(config SessionConfig) (Session, error) {
	if atomic.LoadInt32(&d.closed) == 1 {
		return nil, &UsageError{Message: "Driver is closed"}
	}
	return newSession(d.config, config, d.pool), nil
}

func (d *driver) Close() error {
	if atomic.CompareAndSwapInt32(&d.closed, 0, 1) {
		d.pool.Close()
		d.log.Infof(log.Driver, d.target.Host, "Closed driver")
	}
	return nil
}
