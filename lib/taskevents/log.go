// Copyright (c) 2016-2025 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package taskevents

import (
	"go.uber.org/zap"

	"github.com/uber/dagrun/lib/taskgraph"
)

// LogRecorder writes every event as a structured log entry.
type LogRecorder struct {
	logger *zap.Logger
}

// NewLogRecorder creates a LogRecorder writing to logger.
func NewLogRecorder(logger *zap.Logger) *LogRecorder {
	return &LogRecorder{logger}
}

// Record implements taskgraph.EventRecorder.
func (r *LogRecorder) Record(e taskgraph.Event) {
	fields := []zap.Field{
		zap.String("execution", e.ExecutionID),
		zap.String("task", e.Task.ID),
		zap.String("info", e.Task.Info),
		zap.String("kind", e.Task.Kind),
		zap.String("state", string(e.Task.State)),
		zap.Int("retry", e.Task.CurrentRetries),
		zap.Time("event_time", e.Time),
	}
	if e.Action != "" {
		fields = append(fields, zap.String("action", string(e.Action)))
	}
	if e.Task.Error != "" {
		fields = append(fields, zap.String("error", e.Task.Error))
	}
	if e.Task.Containing != "" {
		fields = append(fields, zap.String("subgraph", e.Task.Containing))
	}
	r.logger.Info(string(e.Type), fields...)
}

// Close flushes the logger.
func (r *LogRecorder) Close() error {
	// Sync on stderr fails on some platforms; event logs are best effort.
	r.logger.Sync()
	return nil
}
