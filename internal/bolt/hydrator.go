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

package bolt

import (
	"errors"
	"fmt"

	"github.com/graphbolt/go-driver/db"
	"github.com/graphbolt/go-driver/dbtype"
	"github.com/graphbolt/go-driver/internal/packstream"
)

// Called by packstream unpacker to hydrate a packstream struct into something
// more usable by the consumer.
func hydrate(tag packstream.StructTag, fields []interface{}) (interface{}, error) {
	switch tag {
	case msgSuccess:
		return hydrateSuccess(fields)
	case msgIgnored:
		return hydrateIgnored(fields)
	case msgFailure:
		return hydrateFailure(fields)
	case msgRecord:
		return hydrateRecord(fields)
	case 'N':
		return hydrateNode(fields)
	case 'R':
		return hydrateRelationship(fields)
	case 'r':
		return hydrateRelNode(fields)
	case 'P':
		return hydratePath(fields)
	default:
		return nil, errors.New(fmt.Sprintf("Unknown tag: %02x", tag))
	}
}

func hydrateNode(fields []interface{}) (interface{}, error) {
	if len(fields) != 3 {
		return nil, errors.New("Node hydrate error")
	}
	id, idok := fields[0].(int64)
	labelsx, labelsok := fields[1].([]interface{})
	props, propsok := fields[2].(map[string]interface{})
	if !idok || !labelsok || !propsok {
		return nil, errors.New("Node hydrate error")
	}
	n := dbtype.Node{Id: id, Props: props, Labels: make([]string, len(labelsx))}
	// Convert labels to strings
	for i, x := range labelsx {
		l, lok := x.(string)
		if !lok {
			return nil, errors.New("Node hydrate error")
		}
		n.Labels[i] = l
	}
	return n, nil
}

func hydrateRelationship(fields []interface{}) (interface{}, error) {
	if len(fields) != 5 {
		return nil, errors.New("Relationship hydrate error")
	}
	id, idok := fields[0].(int64)
	sid, sidok := fields[1].(int64)
	eid, eidok := fields[2].(int64)
	lbl, lblok := fields[3].(string)
	props, propsok := fields[4].(map[string]interface{})
	if !idok || !sidok || !eidok || !lblok || !propsok {
		return nil, errors.New("Relationship hydrate error")
	}
	return dbtype.Relationship{Id: id, StartId: sid, EndId: eid, Type: lbl, Props: props}, nil
}

func hydrateRelNode(fields []interface{}) (interface{}, error) {
	if len(fields) != 3 {
		return nil, errors.New("RelNode hydrate error")
	}
	id, idok := fields[0].(int64)
	lbl, lblok := fields[1].(string)
	props, propsok := fields[2].(map[string]interface{})
	if !idok || !lblok || !propsok {
		return nil, errors.New("RelNode hydrate error")
	}
	return dbtype.RelNode{Id: id, Type: lbl, Props: props}, nil
}

// A path on the wire is the distinct nodes, the distinct relationships
// without endpoints and an index list that alternates between relationship
// and node. A positive relationship index means the relationship points
// forward along the path, negative means backward. Indexes are one-based,
// node indexes are zero-based into the nodes list.
func hydratePath(fields []interface{}) (interface{}, error) {
	if len(fields) != 3 {
		return nil, errors.New("Path hydrate error")
	}
	nodesx, nok := fields[0].([]interface{})
	relnodesx, rok := fields[1].([]interface{})
	indsx, iok := fields[2].([]interface{})
	if !nok || !rok || !iok {
		return nil, errors.New("Path hydrate error")
	}

	if len(nodesx) == 0 {
		return nil, errors.New("Path hydrate error")
	}

	nodes := make([]dbtype.Node, len(nodesx))
	for i, nx := range nodesx {
		n, ok := nx.(dbtype.Node)
		if !ok {
			return nil, errors.New("Path hydrate error")
		}
		nodes[i] = n
	}

	relnodes := make([]dbtype.RelNode, len(relnodesx))
	for i, rx := range relnodesx {
		r, ok := rx.(dbtype.RelNode)
		if !ok {
			return nil, errors.New("Path hydrate error")
		}
		relnodes[i] = r
	}

	indexes := make([]int, len(indsx))
	for i, ix := range indsx {
		p, ok := ix.(int64)
		if !ok {
			return nil, errors.New("Path hydrate error")
		}
		indexes[i] = int(p)
	}
	// Must be even number
	if (len(indexes) & 0x01) == 1 {
		return nil, errors.New("Path hydrate error")
	}

	return buildPath(nodes, relnodes, indexes)
}

func buildPath(nodes []dbtype.Node, relnodes []dbtype.RelNode, indexes []int) (dbtype.Path, error) {
	num := len(indexes) / 2
	path := dbtype.Path{
		Nodes:         make([]dbtype.Node, 0, num+1),
		Relationships: make([]dbtype.Relationship, 0, num),
	}
	prev := nodes[0]
	path.Nodes = append(path.Nodes, prev)
	i := 0
	for num > 0 {
		reli := indexes[i]
		i++
		nodei := indexes[i]
		i++
		if nodei < 0 || nodei >= len(nodes) {
			return dbtype.Path{}, errors.New("Path hydrate error")
		}
		curr := nodes[nodei]
		var rel dbtype.Relationship
		switch {
		case reli > 0 && reli <= len(relnodes):
			relnode := relnodes[reli-1]
			rel = dbtype.Relationship{
				Id: relnode.Id, Type: relnode.Type, Props: relnode.Props,
				StartId: prev.Id, EndId: curr.Id,
			}
		case reli < 0 && -reli <= len(relnodes):
			relnode := relnodes[(-reli)-1]
			rel = dbtype.Relationship{
				Id: relnode.Id, Type: relnode.Type, Props: relnode.Props,
				StartId: curr.Id, EndId: prev.Id,
			}
		default:
			return dbtype.Path{}, errors.New("Path hydrate error")
		}
		path.Relationships = append(path.Relationships, rel)
		path.Nodes = append(path.Nodes, curr)
		prev = curr
		num--
	}
	return path, nil
}

func hydrateSuccess(fields []interface{}) (interface{}, error) {
	if len(fields) != 1 {
		return nil, errors.New("Success hydrate error")
	}
	meta, metaok := fields[0].(map[string]interface{})
	if !metaok {
		return nil, errors.New("Success hydrate error")
	}
	return &successResponse{meta: meta}, nil
}

func hydrateRecord(fields []interface{}) (interface{}, error) {
	if len(fields) != 1 {
		return nil, errors.New("Record hydrate error")
	}
	v, vok := fields[0].([]interface{})
	if !vok {
		return nil, errors.New("Record hydrate error")
	}
	// Keys are attached by the owner of the stream
	return &db.Record{Values: v}, nil
}

func hydrateIgnored(fields []interface{}) (interface{}, error) {
	if len(fields) != 0 {
		return nil, errors.New("Ignored hydrate error")
	}
	return &ignoredResponse{}, nil
}

func hydrateFailure(fields []interface{}) (interface{}, error) {
	if len(fields) != 1 {
		return nil, errors.New("Failure hydrate error")
	}
	m, mok := fields[0].(map[string]interface{})
	if !mok {
		return nil, errors.New("Failure hydrate error")
	}
	code, cok := m["code"].(string)
	msg, msgok := m["message"].(string)
	if !cok || !msgok {
		return nil, errors.New("Failure hydrate error")
	}
	// Hydrate right into the error defined in the db package to avoid
	// remapping at a later state.
	return &db.ServerError{Code: code, Msg: msg}, nil
}
