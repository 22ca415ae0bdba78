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

// Package pool maintains a pool of ready to use database connections.
// Connections are validated when borrowed and reset to their post-connect
// state when returned, a connection that went dead is destroyed and
// replaced instead of being handed out again.
package pool

import (
	"context"
	"time"

	commonspool "github.com/jolestar/go-commons-pool/v2"
	"github.com/pkg/errors"

	"github.com/graphbolt/go-driver/db"
	"github.com/graphbolt/go-driver/log"
)

// Connector establishes a new authenticated connection.
type Connector func() (db.Connection, error)

type Config struct {
	// MaxSize is the maximum number of connections, borrowed and idle
	// combined. Zero or below means the default of 100.
	MaxSize int
	// AcquisitionTimeout bounds how long Borrow waits for a connection
	// when the pool is exhausted, zero or below waits forever.
	AcquisitionTimeout time.Duration
}

const defaultMaxSize = 100

type Pool struct {
	pool               *commonspool.ObjectPool
	acquisitionTimeout time.Duration
	log                log.Logger
}

type connectionFactory struct {
	connect Connector
	log     log.Logger
}

func (f *connectionFactory) MakeObject(ctx context.Context) (*commonspool.PooledObject, error) {
	c, err := f.connect()
	if err != nil {
		return nil, errors.Wrap(err, "unable to establish connection")
	}
	return commonspool.NewPooledObject(c), nil
}

func (f *connectionFactory) DestroyObject(ctx context.Context, object *commonspool.PooledObject) error {
	object.Object.(db.Connection).Close()
	return nil
}

func (f *connectionFactory) ValidateObject(ctx context.Context, object *commonspool.PooledObject) bool {
	return object.Object.(db.Connection).IsAlive()
}

func (f *connectionFactory) ActivateObject(ctx context.Context, object *commonspool.PooledObject) error {
	return nil
}

// Returned connections are brought back to the same state as directly
// after connect. A connection that can not recover reports itself not
// alive and is destroyed by the pool instead of reused.
func (f *connectionFactory) PassivateObject(ctx context.Context, object *commonspool.PooledObject) error {
	c := object.Object.(db.Connection)
	c.Reset()
	if !c.IsAlive() {
		return errors.New("connection died during reset")
	}
	return nil
}

func New(connect Connector, config Config, logger log.Logger) *Pool {
	maxSize := config.MaxSize
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	factory := &connectionFactory{connect: connect, log: logger}
	poolConfig := commonspool.NewDefaultPoolConfig()
	poolConfig.MaxTotal = maxSize
	poolConfig.MaxIdle = maxSize
	poolConfig.TestOnBorrow = true
	poolConfig.TestOnReturn = false
	poolConfig.BlockWhenExhausted = true

	return &Pool{
		pool:               commonspool.NewObjectPool(context.Background(), factory, poolConfig),
		acquisitionTimeout: config.AcquisitionTimeout,
		log:                logger,
	}
}

// Borrow hands out a live connection, either an idle one or a newly
// established one. Waits when the pool is exhausted, at most the
// configured acquisition timeout.
func (p *Pool) Borrow() (db.Connection, error) {
	ctx := context.Background()
	if p.acquisitionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.acquisitionTimeout)
		defer cancel()
	}
	x, err := p.pool.BorrowObject(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "unable to acquire connection")
	}
	return x.(db.Connection), nil
}

// Return gives a connection back for reuse. The connection is reset
// before it becomes available to the next borrower.
func (p *Pool) Return(c db.Connection) {
	if err := p.pool.ReturnObject(context.Background(), c); err != nil {
		p.log.Warnf(log.Pool, "", "Failed to return connection: %s", err)
	}
}

// Close destroys all idle connections. Borrowed connections are destroyed
// as they are returned.
func (p *Pool) Close() {
	p.pool.Close(context.Background())
}
