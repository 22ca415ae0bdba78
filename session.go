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
	"github.com/graphbolt/go-driver/db"
	"github.com/graphbolt/go-driver/log"
)

// TransactionWork represents a unit of work that will be executed against
// the provided transaction
type TransactionWork func(tx Transaction) (interface{}, error)

// SessionConfig is used to configure a new session, its zero value uses
// safe defaults.
type SessionConfig struct {
	// AccessMode used when using Session.Run and explicit transactions.
	// Used to route query to the leader or to a follower in a cluster.
	// Session.ReadTransaction and Session.WriteTransaction does not
	// rely on this mode.
	AccessMode AccessMode
	// Bookmarks are the initial bookmarks used to ensure that the executing
	// server is at least up to date to the point represented by the latest
	// of the provided bookmarks.
	Bookmarks []string
	// DatabaseName contains the name of the database that the commands in
	// the session will execute on. Empty selects the server's default
	// database. Only supported from server protocol version 4 and up.
	DatabaseName string
}

// Session represents a logical connection (which is not tied to a physical
// connection) to the server. Not safe for concurrent use.
type Session interface {
	// LastBookmark returns the bookmark received following the last
	// successfully completed transaction. If no bookmark was received or
	// if this transaction was rolled back, the bookmark value will not be
	// changed.
	LastBookmark() string
	// BeginTransaction starts a new explicit transaction on this session
	BeginTransaction(configurers ...func(*TransactionConfig)) (Transaction, error)
	// ReadTransaction executes the given unit of work in a AccessModeRead
	// transaction with retry logic in place
	ReadTransaction(work TransactionWork, configurers ...func(*TransactionConfig)) (interface{}, error)
	// WriteTransaction executes the given unit of work in a AccessModeWrite
	// transaction with retry logic in place
	WriteTransaction(work TransactionWork, configurers ...func(*TransactionConfig)) (interface{}, error)
	// Run executes an auto-commit statement and returns a result
	Run(cypher string, params map[string]interface{}, configurers ...func(*TransactionConfig)) (Result, error)
	// Close closes any open resources and marks this session as unusable
	Close() error
}

// Connection pool as seen by the session.
type sessionPool interface {
	Borrow() (db.Connection, error)
	Return(c db.Connection)
}

type session struct {
	config       *Config
	defaultMode  db.AccessMode
	bookmarks    []string
	databaseName string
	pool         sessionPool
	conn         db.Connection
	res          *result
	tx           *transaction
	open         bool
	log          log.Logger
}

func newSession(config *Config, sessConfig SessionConfig, pool sessionPool) *session {
	// filter out bookmarks with empty string
	bookmarks := make([]string, 0, len(sessConfig.Bookmarks))
	for _, b := range sessConfig.Bookmarks {
		if len(b) > 0 {
			bookmarks = append(bookmarks, b)
		}
	}

	return &session{
		config:       config,
		defaultMode:  db.AccessMode(sessConfig.AccessMode),
		bookmarks:    bookmarks,
		databaseName: sessConfig.DatabaseName,
		pool:         pool,
		open:         true,
		log:          config.Log,
	}
}

func (s *session) LastBookmark() string {
	// Pick up bookmark from pending auto-commit if there is one
	s.retrieveBookmark(s.conn)
	if len(s.bookmarks) > 0 {
		return s.bookmarks[len(s.bookmarks)-1]
	}
	return ""
}

// Collects the bookmark on the connection after completed work, the new
// bookmark replaces the initial set for subsequent work on this session.
func (s *session) retrieveBookmark(c db.Connection) {
	if c == nil {
		return
	}
	if b := c.Bookmark(); len(b) > 0 {
		s.bookmarks = []string{b}
	}
}

// Borrows a connection from the pool and selects the session database on
// it when the server supports that.
func (s *session) borrowConn() (db.Connection, error) {
	c, err := s.pool.Borrow()
	if err != nil {
		return nil, err
	}
	if s.databaseName != db.DefaultDatabase {
		selector, ok := c.(db.DatabaseSelector)
		if !ok {
			s.pool.Return(c)
			return nil, &UsageError{Message: "Database selection is not supported by the connected server"}
		}
		selector.SelectDatabase(s.databaseName)
	}
	return c, nil
}

// Brings the session to a state where a new piece of work can start, any
// open auto-commit stream is buffered and its connection handed back.
func (s *session) consumeCurrent() {
	if s.res != nil {
		s.res.buffer()
		s.res = nil
	}
	if s.conn != nil {
		s.retrieveBookmark(s.conn)
		s.pool.Return(s.conn)
		s.conn = nil
	}
}

func (s *session) BeginTransaction(configurers ...func(*TransactionConfig)) (Transaction, error) {
	if !s.open {
		return nil, &UsageError{Message: "Session is already closed"}
	}
	// Guard for more than one transaction per session
	if s.tx != nil {
		err := &UsageError{Message: "Session already has a pending transaction"}
		s.log.Error(log.Session, "", err)
		return nil, err
	}

	s.consumeCurrent()

	config := computeTransactionConfig(configurers...)

	conn, err := s.borrowConn()
	if err != nil {
		return nil, err
	}

	txHandle, err := conn.TxBegin(s.defaultMode, s.bookmarks, config.Timeout, config.Metadata)
	if err != nil {
		s.pool.Return(conn)
		return nil, err
	}

	tx := &transaction{
		conn:     conn,
		txHandle: txHandle,
	}
	tx.onClosed = func() {
		s.retrieveBookmark(tx.conn)
		s.pool.Return(tx.conn)
		tx.conn = nil
		s.tx = nil
	}
	s.tx = tx
	return tx, nil
}

func (s *session) ReadTransaction(work TransactionWork, configurers ...func(*TransactionConfig)) (interface{}, error) {
	return s.runRetriable(db.ReadMode, work, configurers...)
}

func (s *session) WriteTransaction(work TransactionWork, configurers ...func(*TransactionConfig)) (interface{}, error) {
	return s.runRetriable(db.WriteMode, work, configurers...)
}

func (s *session) runRetriable(mode db.AccessMode, work TransactionWork, configurers ...func(*TransactionConfig)) (interface{}, error) {
	if !s.open {
		return nil, &UsageError{Message: "Session is already closed"}
	}
	if s.tx != nil {
		return nil, &UsageError{Message: "Session already has a pending transaction"}
	}

	config := computeTransactionConfig(configurers...)
	retry := newRetryLogic(s.config)

	return retry.retry(func() (interface{}, error) {
		s.consumeCurrent()

		conn, err := s.borrowConn()
		if err != nil {
			return nil, err
		}
		defer func() {
			s.retrieveBookmark(conn)
			s.pool.Return(conn)
		}()

		txHandle, err := conn.TxBegin(mode, s.bookmarks, config.Timeout, config.Metadata)
		if err != nil {
			return nil, err
		}

		tx := &transaction{conn: conn, txHandle: txHandle, onClosed: func() {}}
		x, err := work(tx)
		if err != nil {
			tx.Close()
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return x, nil
	})
}

func (s *session) Run(cypher string, params map[string]interface{}, configurers ...func(*TransactionConfig)) (Result, error) {
	if !s.open {
		return nil, &UsageError{Message: "Session is already closed"}
	}
	if s.tx != nil {
		err := &UsageError{Message: "Trying to run auto-commit transaction while in explicit transaction"}
		s.log.Error(log.Session, "", err)
		return nil, err
	}

	s.consumeCurrent()

	config := computeTransactionConfig(configurers...)

	conn, err := s.borrowConn()
	if err != nil {
		return nil, err
	}

	stream, err := conn.Run(cypher, params, s.defaultMode, s.bookmarks, config.Timeout, config.Metadata)
	if err != nil {
		s.pool.Return(conn)
		return nil, err
	}

	s.conn = conn
	s.res = newResult(conn, stream, cypher, params)
	return s.res, nil
}

func (s *session) Close() error {
	if !s.open {
		return nil
	}
	var err error
	if s.tx != nil {
		err = s.tx.Close()
	}
	s.consumeCurrent()
	s.open = false
	s.log.Debugf(log.Session, "", "Closed")
	return err
}
