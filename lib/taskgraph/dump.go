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
package taskgraph

import "time"

// Dump is a diagnostic snapshot of a task.
type Dump struct {
	ID             string    `json:"id"`
	Info           string    `json:"info"`
	Kind           string    `json:"kind"`
	State          State     `json:"state"`
	Error          string    `json:"error,omitempty"`
	CurrentRetries int       `json:"current_retries"`
	TotalRetries   int       `json:"total_retries"`
	ExecuteAfter   time.Time `json:"execute_after"`
	Containing     string    `json:"containing_subgraph,omitempty"`
	FailedTask     string    `json:"failed_task,omitempty"`
}

// EventType identifies an Event.
type EventType string

// Event types.
const (
	EventStateChanged EventType = "state_changed"
	EventHandled      EventType = "handled"
)

// Event is emitted on every task state change and handler decision.
type Event struct {
	Type        EventType `json:"type"`
	Time        time.Time `json:"time"`
	ExecutionID string    `json:"execution_id"`
	Action      Action    `json:"action,omitempty"`
	Task        Dump      `json:"task"`
}

// EventRecorder receives task events. Record is called from any goroutine,
// possibly while graph locks are held, and must not call back into the graph.
type EventRecorder interface {
	Record(e Event)
}
