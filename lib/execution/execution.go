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
package execution

import (
	"errors"
	"time"

	"github.com/uber/dagrun/lib/taskgraph"
)

// Errors returned by the Controller.
var (
	ErrExecutionNotFound = errors.New("execution not found")
	ErrExecutionExists   = errors.New("execution already exists")
	ErrTooManyRunning    = errors.New("too many running executions")
	ErrControllerClosed  = errors.New("controller closed")
)

// Status is the status of an execution.
type Status string

// Execution statuses.
const (
	Running   Status = "running"
	Succeeded Status = "succeeded"
	Failed    Status = "failed"
	Cancelled Status = "cancelled"
)

// Finished returns true if the execution has ended.
func (s Status) Finished() bool {
	return s != Running
}

// Info describes an execution.
type Info struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Status     Status           `json:"status"`
	Error      string           `json:"error,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at,omitempty"`
	Tasks      []taskgraph.Dump `json:"tasks,omitempty"`
}

// statusOf classifies the result of Graph.Execute.
func statusOf(err error) Status {
	switch {
	case err == nil:
		return Succeeded
	case errors.Is(err, taskgraph.ErrExecutionCancelled):
		return Cancelled
	default:
		return Failed
	}
}
