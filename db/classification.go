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

package db

import (
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Classification groups server error codes by how the client should react
// to them.
type Classification string

const (
	// ClientError means the request itself was at fault, retrying the same
	// request will fail the same way.
	ClientError Classification = "CLIENT_ERROR"
	// DatabaseError means the server failed internally.
	DatabaseError Classification = "DATABASE_ERROR"
	// TransientError means the request might succeed if retried.
	TransientError Classification = "TRANSIENT_ERROR"
	// UnknownError is used for codes matching no rule.
	UnknownError Classification = "UNKNOWN"
)

// ClassificationRules is the table that maps server error codes to
// classifications and retriability. Prefix rules use longest match wins,
// exact code rules override prefix rules.
//
// The zero value matches nothing; start from DefaultClassificationRules.
type ClassificationRules struct {
	// Prefixes classified as transient, client or database errors.
	Transient []string `yaml:"transient"`
	Client    []string `yaml:"client"`
	Database  []string `yaml:"database"`
	// Exact codes that are retriable regardless of their classification,
	// the cluster leader switch codes belong here.
	Retriable []string `yaml:"retriable"`
	// Exact codes that are never retriable even when classified transient.
	NotRetriable []string `yaml:"notRetriable"`
}

// DefaultClassificationRules returns the rule table the driver ships with.
func DefaultClassificationRules() *ClassificationRules {
	return &ClassificationRules{
		Transient: []string{"Neo.TransientError."},
		Client:    []string{"Neo.ClientError."},
		Database:  []string{"Neo.DatabaseError."},
		Retriable: []string{
			"Neo.ClientError.Cluster.NotALeader",
			"Neo.ClientError.General.ForbiddenOnReadOnlyDatabase",
		},
		NotRetriable: []string{
			"Neo.TransientError.Transaction.Terminated",
			"Neo.TransientError.Transaction.LockClientStopped",
		},
	}
}

// LoadClassificationRules parses a YAML rule table. The result replaces the
// default table entirely when installed, it is not merged.
func LoadClassificationRules(r io.Reader) (*ClassificationRules, error) {
	rules := &ClassificationRules{}
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// SetClassificationRules installs a rule table for all subsequent
// classification queries. Not safe to call concurrently with driver use,
// install rules before connecting.
func SetClassificationRules(r *ClassificationRules) {
	rules = r
}

var rules = DefaultClassificationRules()

func (r *ClassificationRules) Classify(code string) Classification {
	match := ""
	class := UnknownError
	pick := func(prefixes []string, c Classification) {
		for _, p := range prefixes {
			if strings.HasPrefix(code, p) && len(p) > len(match) {
				match = p
				class = c
			}
		}
	}
	pick(r.Transient, TransientError)
	pick(r.Client, ClientError)
	pick(r.Database, DatabaseError)
	return class
}

func (r *ClassificationRules) IsRetriable(code string) bool {
	for _, c := range r.NotRetriable {
		if code == c {
			return false
		}
	}
	for _, c := range r.Retriable {
		if code == c {
			return true
		}
	}
	return r.Classify(code) == TransientError
}

func classify(code string) Classification {
	return rules.Classify(code)
}

func isRetriable(code string) bool {
	return rules.IsRetriable(code)
}
