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

// Action is the decision carried by a HandlerResult.
type Action string

// Handler decisions.
const (
	ActionRetry    Action = "retry"
	ActionFail     Action = "fail"
	ActionIgnore   Action = "ignore"
	ActionContinue Action = "continue"
)

// HandlerResult is the decision taken once a task terminates.
type HandlerResult struct {
	Action Action

	// Retry only. IgnoreTotalRetries allows the retry even when the retry
	// budget is exhausted.
	IgnoreTotalRetries bool

	// Retry only. A positive RetryAfter overrides the task's retry interval.
	RetryAfter time.Duration

	// Retry only. Replacement is run in place of the terminated task. When
	// nil, a duplicate of the terminated task is created.
	Replacement *Task
}

// RetryOption customizes a retry decision.
type RetryOption func(*HandlerResult)

// IgnoreTotalRetries retries even if the retry budget is exhausted.
func IgnoreTotalRetries() RetryOption {
	return func(r *HandlerResult) { r.IgnoreTotalRetries = true }
}

// RetryAfter delays the retry by d instead of the task's retry interval.
func RetryAfter(d time.Duration) RetryOption {
	return func(r *HandlerResult) { r.RetryAfter = d }
}

// RetryWith runs t instead of a duplicate of the terminated task.
func RetryWith(t *Task) RetryOption {
	return func(r *HandlerResult) { r.Replacement = t }
}

// Retry requests the task to be run again.
func Retry(opts ...RetryOption) HandlerResult {
	r := HandlerResult{Action: ActionRetry}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// Fail aborts the graph, or fails the containing subgraph.
func Fail() HandlerResult {
	return HandlerResult{Action: ActionFail}
}

// Ignore drops the task as if it had succeeded.
func Ignore() HandlerResult {
	return HandlerResult{Action: ActionIgnore}
}

// Continue accepts the outcome of the task.
func Continue() HandlerResult {
	return HandlerResult{Action: ActionContinue}
}

// SuccessHandler decides what happens after a task succeeds.
type SuccessHandler interface {
	OnSuccess(t *Task) HandlerResult
}

// FailureHandler decides what happens after a task fails or asks to be
// rescheduled.
type FailureHandler interface {
	OnFailure(t *Task) HandlerResult
}

// SuccessHandlerFunc adapts a function to SuccessHandler.
type SuccessHandlerFunc func(t *Task) HandlerResult

// OnSuccess calls f.
func (f SuccessHandlerFunc) OnSuccess(t *Task) HandlerResult { return f(t) }

// FailureHandlerFunc adapts a function to FailureHandler.
type FailureHandlerFunc func(t *Task) HandlerResult

// OnFailure calls f.
func (f FailureHandlerFunc) OnFailure(t *Task) HandlerResult { return f(t) }
