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

// Package broker defines how operations are dispatched to remote workers and
// how their outcome travels back.
package broker

import (
	"context"

	"github.com/satori/go.uuid"
)

// OperationContext identifies the task on whose behalf a message is sent.
// RetryNumber is the task's current retry counter.
type OperationContext struct {
	ExecutionID string `json:"execution_id"`
	TaskID      string `json:"task_id"`
	Info        string `json:"info"`
	RetryNumber int    `json:"retry_number"`
}

// Message is a single remote invocation of Target on Queue.
type Message struct {
	ID      string                 `json:"id"`
	Queue   string                 `json:"queue"`
	Target  string                 `json:"target"`
	Payload map[string]interface{} `json:"payload"`
	Context OperationContext       `json:"context"`
}

// WithID returns m with a freshly generated ID if it has none.
func (m Message) WithID() Message {
	if m.ID == "" {
		m.ID = uuid.NewV4().String()
	}
	return m
}

// Broker submits messages for remote execution.
type Broker interface {
	Submit(ctx context.Context, msg Message) (AsyncResult, error)
}

// AsyncResult is a handle to the outcome of a submitted message.
type AsyncResult interface {
	// Get blocks until the remote operation finishes or ctx is done. Errors
	// returned by the remote operation keep their operrors classification.
	Get(ctx context.Context) (interface{}, error)
}
