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

	"github.com/graphbolt/go-driver/db"
)

// TransactionConfig holds the settings for explicit and auto-commit
// transactions. Actual configuration is expected to be done using the
// configuration functions that is passed as variadic parameters to
// Session.Run, Session.BeginTransaction, Session.ReadTransaction and
// Session.WriteTransaction.
type TransactionConfig struct {
	// Timeout is the configured transaction timeout. Zero means use the
	// server side configured timeout.
	Timeout time.Duration
	// Metadata is the configured transaction metadata that will be attached
	// to the underlying transaction.
	Metadata map[string]interface{}
}

// WithTxTimeout returns a transaction configuration function that applies
// a timeout to a transaction.
//
// To apply a transaction timeout to an explicit transaction:
//	session.BeginTransaction(WithTxTimeout(5*time.Second))
func WithTxTimeout(timeout time.Duration) func(*TransactionConfig) {
	return func(config *TransactionConfig) {
		config.Timeout = timeout
	}
}

// WithTxMetadata returns a transaction configuration function that attaches
// metadata to a transaction.
func WithTxMetadata(metadata map[string]interface{}) func(*TransactionConfig) {
	return func(config *TransactionConfig) {
		config.Metadata = metadata
	}
}

func computeTransactionConfig(configurers ...func(*TransactionConfig)) TransactionConfig {
	config := TransactionConfig{Timeout: 0, Metadata: nil}
	for _, configurer := range configurers {
		configurer(&config)
	}
	return config
}

// Transaction represents an explicit transaction that can be committed
// or rolled back.
type Transaction interface {
	// Run executes a statement on this transaction and returns a result
	Run(cypher string, params map[string]interface{}) (Result, error)
	// Commit commits the transaction
	Commit() error
	// Rollback rolls back the transaction
	Rollback() error
	// Close rolls back the actual transaction if it's not already committed
	// or rolled back, and closes all resources associated with this
	// transaction
	Close() error
}

type transaction struct {
	conn     db.Connection
	txHandle db.TxHandle
	res      *result
	done     bool
	err      error
	onClosed func()
}

func (tx *transaction) Run(cypher string, params map[string]interface{}) (Result, error) {
	if tx.done {
		return nil, &UsageError{Message: "Transaction is already committed or rolled back"}
	}
	if tx.res != nil {
		tx.res.buffer()
		tx.res = nil
	}
	stream, err := tx.conn.RunTx(tx.txHandle, cypher, params)
	if err != nil {
		return nil, err
	}
	tx.res = newResult(tx.conn, stream, cypher, params)
	return tx.res, nil
}

func (tx *transaction) Commit() error {
	if tx.done {
		return &UsageError{Message: "Transaction is already committed or rolled back"}
	}
	if tx.res != nil {
		tx.res.buffer()
		tx.res = nil
	}
	tx.err = tx.conn.TxCommit(tx.txHandle)
	tx.done = true
	tx.onClosed()
	return tx.err
}

func (tx *transaction) Rollback() error {
	if tx.done {
		return &UsageError{Message: "Transaction is already committed or rolled back"}
	}
	tx.err = tx.conn.TxRollback(tx.txHandle)
	tx.done = true
	tx.onClosed()
	return tx.err
}

func (tx *transaction) Close() error {
	if tx.done {
		return nil
	}
	return tx.Rollback()
}
