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

// Package graphbolt provides required functionality to connect and execute
// statements against a graph database over the Bolt protocol.
//
// A driver maintains a pool of connections to a single server:
//	driver, err := graphbolt.NewDriver("bolt://localhost:7687", graphbolt.BasicAuth("user", "password", ""))
//	if err != nil {
//		return err
//	}
//	defer driver.Close()
//
// All work happens through sessions, which are cheap to create and not
// safe for concurrent use:
//	session, err := driver.Session(graphbolt.AccessModeRead)
//	if err != nil {
//		return err
//	}
//	defer session.Close()
//
//	result, err := session.Run("MATCH (n) RETURN n.name", nil)
//	if err != nil {
//		return err
//	}
//	for result.Next() {
//		fmt.Println(result.Record().Values[0])
//	}
//	if err = result.Err(); err != nil {
//		return err
//	}
package graphbolt
