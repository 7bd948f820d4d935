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
	"sync"
	"time"

	"github.com/andres-erbsen/clock"
)

// Result is a handle to the eventual outcome of a task. When the task is
// retried the handle follows the replacement.
type Result struct {
	mu   sync.Mutex
	task *Task
}

// Task returns the task currently tracked by r.
func (r *Result) Task() *Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.task
}

func (r *Result) setTask(t *Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.task = t
}

// Get waits for the task to terminate and evaluates its handlers. Retry
// decisions are carried out in place when retryOnFailure is set: the
// replacement substitutes the task in its graph, waits out its delay and is
// dispatched, and Get waits again.
//
// Fail returns the operation error. So does any failed outcome when
// retryOnFailure is false. Ignore and Continue return the value with a nil
// error. If ctx ends first, an error wrapping ErrExecutionCancelled is
// returned.
func (r *Result) Get(ctx context.Context, retryOnFailure bool) (interface{}, error) {
	for {
		t := r.Task()
		if err := t.WaitForTerminated(ctx); err != nil {
			return nil, err
		}
		res, err := t.HandleTaskTerminated()
		if err != nil {
			return nil, err
		}
		value, terr := t.Value(), t.Err()

		if res.Action == ActionRetry && retryOnFailure {
			next := res.Replacement
			if g := t.Graph(); g != nil {
				if err := g.replace(t, next); err != nil {
					return nil, err
				}
			}
			r.setTask(next)
			if err := sleepUntil(ctx, next.clk, next.ExecuteAfter()); err != nil {
				return nil, err
			}
			next.ApplyAsync(ctx)
			continue
		}
		if res.Action == ActionFail {
			if terr == nil {
				terr = errors.New("failed by handler")
			}
			return value, terr
		}
		if terr != nil && !retryOnFailure {
			return value, terr
		}
		return value, nil
	}
}

func sleepUntil(ctx context.Context, clk clock.Clock, ts time.Time) error {
	d := ts.Sub(clk.Now())
	if d <= 0 {
		return nil
	}
	select {
	case <-clk.After(d):
		return nil
	case <-ctx.Done():
		return cancelled(ctx)
	}
}
