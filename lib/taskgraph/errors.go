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

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrExecutionCancelled is returned when the context of a blocking call
	// ends. It is never reported as a task failure.
	ErrExecutionCancelled = errors.New("execution cancelled")

	// ErrTaskNotInGraph is returned when a dependency endpoint is missing.
	ErrTaskNotInGraph = errors.New("task not in graph")

	// ErrTaskInOtherGraph is returned when adding a task owned by another
	// graph.
	ErrTaskInOtherGraph = errors.New("task belongs to another graph")

	// ErrSubgraphConflict is returned when adding a task which already
	// belongs to a different subgraph.
	ErrSubgraphConflict = errors.New("task belongs to another subgraph")

	// ErrTaskTerminated is returned when changing the state of a terminated
	// task.
	ErrTaskTerminated = errors.New("task already terminated")
)

// TaskFailedError is returned by Execute when a failure is not contained by
// any subgraph. It names the deepest concrete task that failed.
type TaskFailedError struct {
	TaskID string
	Info   string
	Err    error
}

func (e *TaskFailedError) Error() string {
	return fmt.Sprintf("task %s (%s) failed: %s", e.Info, e.TaskID, e.Err)
}

func (e *TaskFailedError) Unwrap() error {
	return e.Err
}

func cancelled(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrExecutionCancelled, ctx.Err())
}
