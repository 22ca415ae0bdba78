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

// boltcli runs a single Cypher statement against a Bolt endpoint and prints
// the returned records.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	graphbolt "github.com/graphbolt/go-driver"
	"github.com/graphbolt/go-driver/log"
)

var (
	address  string
	username string
	password string
	database string
	timeout  time.Duration
	verbose  bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "boltcli \"CYPHER\" [PARAM=VALUE...]",
		Short: "Run a Cypher statement against a Bolt endpoint",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return runQuery(cmd, args[0], args[1:])
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&address, "address", "a", "bolt://localhost:7687", "Bolt URI of the server")
	flags.StringVarP(&username, "username", "u", "", "username to authenticate with")
	flags.StringVarP(&password, "password", "p", "", "password to authenticate with")
	flags.StringVarP(&database, "database", "d", "", "database to run the statement on")
	flags.DurationVar(&timeout, "timeout", 0, "transaction timeout")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable driver debug logging")

	return cmd
}

func runQuery(cmd *cobra.Command, cypher string, rawParams []string) error {
	params, err := parseParams(rawParams)
	if err != nil {
		return err
	}

	logger := &log.Void{}
	var driverLog log.Logger = logger
	if verbose {
		zapLog, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer zapLog.Sync()
		driverLog = log.ToZap(zapLog)
	}

	auth := graphbolt.NoAuth()
	if username != "" {
		auth = graphbolt.BasicAuth(username, password, "")
	}

	driver, err := graphbolt.NewDriver(address, auth, func(config *graphbolt.Config) {
		config.Log = driverLog
	})
	if err != nil {
		return err
	}
	defer driver.Close()

	session, err := driver.NewSession(graphbolt.SessionConfig{DatabaseName: database})
	if err != nil {
		return err
	}
	defer session.Close()

	var configurers []func(*graphbolt.TransactionConfig)
	if timeout > 0 {
		configurers = append(configurers, graphbolt.WithTxTimeout(timeout))
	}

	result, err := session.Run(cypher, params, configurers...)
	if err != nil {
		return err
	}

	keys, err := result.Keys()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.Join(keys, "\t"))

	numRecords := 0
	for result.Next() {
		values := result.Record().Values
		strs := make([]string, len(values))
		for i, v := range values {
			strs[i] = fmt.Sprintf("%v", v)
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(strs, "\t"))
		numRecords++
	}
	if err := result.Err(); err != nil {
		return err
	}

	summary, err := result.Summary()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d records from %s (%s)\n",
		numRecords, summary.ServerName, summary.ServerVersion)
	return nil
}

// Parses positional KEY=VALUE arguments into statement parameters, values
// stay strings.
func parseParams(args []string) (map[string]interface{}, error) {
	if len(args) == 0 {
		return nil, nil
	}
	params := make(map[string]interface{}, len(args))
	for _, arg := range args {
		parts := strings.SplitN(arg, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected KEY=VALUE", arg)
		}
		params[parts[0]] = parts[1]
	}
	return params, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
