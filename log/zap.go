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

package log

import (
	"fmt"

	"go.uber.org/zap"
)

// Zap adapts a zap logger to the driver logging interface. Component name
// and instance id become structured fields.
type Zap struct {
	log *zap.Logger
}

func ToZap(log *zap.Logger) *Zap {
	return &Zap{log: log}
}

func (l *Zap) Error(name, id string, err error) {
	l.log.Error(err.Error(), zap.String("component", name), zap.String("id", id))
}

func (l *Zap) Warnf(name, id string, msg string, args ...interface{}) {
	l.log.Warn(fmt.Sprintf(msg, args...), zap.String("component", name), zap.String("id", id))
}

func (l *Zap) Infof(name, id string, msg string, args ...interface{}) {
	l.log.Info(fmt.Sprintf(msg, args...), zap.String("component", name), zap.String("id", id))
}

func (l *Zap) Debugf(name, id string, msg string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(msg, args...), zap.String("component", name), zap.String("id", id))
}
