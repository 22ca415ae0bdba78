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

// Package dbtype contains the graph types that query results are hydrated
// into. All types are immutable snapshots of what the server sent.
package dbtype

// Node represents a node in the graph.
type Node struct {
	// Id of this node within the database.
	Id int64
	// Labels attached to this node.
	Labels []string
	// Props of this node.
	Props map[string]interface{}
}

// Relationship represents a directed relationship between two nodes.
type Relationship struct {
	// Id of this relationship within the database.
	Id int64
	// StartId is the id of the node this relationship starts at.
	StartId int64
	// EndId is the id of the node this relationship ends at.
	EndId int64
	// Type of this relationship.
	Type string
	// Props of this relationship.
	Props map[string]interface{}
}

// RelNode is the wire form of a relationship within a path, a relationship
// without its endpoints. Paths bind these to nodes through the index list.
type RelNode struct {
	Id    int64
	Type  string
	Props map[string]interface{}
}

// Path represents a path of nodes and the relationships that connect them.
// A path with a single node has no relationships.
type Path struct {
	Nodes         []Node
	Relationships []Relationship
}
