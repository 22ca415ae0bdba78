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
	"math/rand"
	"time"

	"github.com/graphbolt/go-driver/log"
)

type retryLogic struct {
	log               log.Logger
	initialRetryDelay time.Duration
	maxRetryTime      time.Duration
	delayMultiplier   float64
	delayJitter       float64
	sleep             func(time.Duration)
}

func newRetryLogic(config *Config) *retryLogic {
	return &retryLogic{
		log:               config.Log,
		initialRetryDelay: 1 * time.Second,
		maxRetryTime:      config.MaxTransactionRetryTime,
		delayMultiplier:   2.0,
		delayJitter:       0.2,
		sleep:             time.Sleep,
	}
}

func (logic *retryLogic) computeDelayWithJitter(delay time.Duration) time.Duration {
	jitter := time.Duration(float64(delay) * logic.delayJitter)
	return delay - jitter + time.Duration(2*float64(jitter)*rand.Float64())
}

func (logic *retryLogic) retry(work func() (interface{}, error)) (interface{}, error) {
	var (
		result           interface{}
		err              error
		suppressedErrors []string
		startTime        time.Time
	)

	count := 0
	nextDelay := logic.initialRetryDelay

	for {
		count++

		result, err = work()
		if err == nil {
			return result, nil
		}

		if IsRetriableError(err) {
			suppressedErrors = append(suppressedErrors, err.Error())

			if startTime.IsZero() {
				startTime = time.Now()
			}

			if time.Since(startTime) < logic.maxRetryTime {
				delayWithJitter := logic.computeDelayWithJitter(nextDelay)
				logic.log.Infof(log.Session, "", "Retryable operation failed to complete [error: %s], retrying in %dms",
					err, delayWithJitter.Nanoseconds()/int64(time.Millisecond))
				logic.sleep(delayWithJitter)
				nextDelay = time.Duration(float64(delayWithJitter) * logic.delayMultiplier)
				continue
			}
		}

		break
	}

	if count == 1 {
		return nil, err
	}

	return nil, &TransactionExecutionLimit{
		Errors: suppressedErrors,
		Causes: count,
	}
}
