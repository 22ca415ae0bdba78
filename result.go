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
)

// Result receives a stream of records.
type Result interface {
	// Keys returns the keys available on the result set.
	Keys() ([]string, error)
	// Next returns true only if there is a record to be processed.
	Next() bool
	// Err returns the latest error that caused this Next to return false.
	Err() error
	// Record returns the current record.
	Record() *Record
	// Summary waits until the end of the stream and returns its summary.
	Summary() (*db.Summary, error)
	// Consume discards all remaining records and returns the summary.
	Consume() (*db.Summary, error)
}

type result struct {
	conn    db.Connection
	stream  db.StreamHandle
	cypher  string
	params  map[string]interface{}
	record  *db.Record
	summary *db.Summary
	err     error
}

func newResult(conn db.Connection, stream db.StreamHandle, cypher string, params map[string]interface{}) *result {
	return &result{
		conn:   conn,
		stream: stream,
		cypher: cypher,
		params: params,
	}
}

func (r *result) Keys() ([]string, error) {
	return r.conn.Keys(r.stream)
}

func (r *result) Next() bool {
	rec, sum, err := r.conn.Next(r.stream)
	r.record = rec
	if sum != nil {
		r.summary = sum
	}
	if err != nil {
		r.err = err
	}
	return rec != nil
}

func (r *result) Err() error {
	return r.err
}

func (r *result) Record() *Record {
	return r.record
}

func (r *result) Summary() (*db.Summary, error) {
	if r.summary != nil {
		return r.summary, nil
	}
	// Drain the stream into memory, the records stay available through Next.
	if err := r.conn.Buffer(r.stream); err != nil {
		r.err = err
		return nil, err
	}
	sum, err := r.conn.Consume(r.stream)
	if err != nil {
		r.err = err
		return nil, err
	}
	r.summary = sum
	return sum, nil
}

func (r *result) Consume() (*db.Summary, error) {
	r.record = nil
	sum, err := r.conn.Consume(r.stream)
	if err != nil {
		r.err = err
		return nil, err
	}
	r.summary = sum
	return sum, nil
}

// Moves remaining records in the stream into memory so that the connection
// can be used for something else. Errors surface on the next access.
func (r *result) buffer() {
	if err := r.conn.Buffer(r.stream); err != nil && r.err == nil {
		r.err = err
	}
}
