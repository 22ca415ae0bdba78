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

// Package log defines the logging interface used throughout the driver
// along with a few ready made implementations.
package log

// Logger is the logging interface that the driver internals use. The name
// identifies the component (bolt3, bolt4, pool, driver, session) and the id
// identifies the instance, typically a connection id.
//
// Credentials are never passed to a logger.
type Logger interface {
	Error(name string, id string, err error)
	Warnf(name string, id string, msg string, args ...interface{})
	Infof(name string, id string, msg string, args ...interface{})
	Debugf(name string, id string, msg string, args ...interface{})
}

// Component names used by the driver when logging.
const (
	Driver  = "driver"
	Session = "session"
	Pool    = "pool"
	Bolt3   = "bolt3"
	Bolt4   = "bolt4"
)
