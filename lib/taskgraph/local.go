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

	"github.com/uber/dagrun/lib/broker"
	"github.com/uber/dagrun/lib/operrors"
	"github.com/uber/dagrun/lib/tracing"
)

// Executor runs jobs asynchronously, typically on a bounded worker pool.
type Executor interface {
	Submit(ctx context.Context, job func()) error
}

// LocalFunc is the body of a local task.
type LocalFunc func(ctx context.Context, opctx broker.OperationContext) (interface{}, error)

type localOp struct {
	exec Executor
	fn   LocalFunc
}

// NewLocalTask creates a task running fn on exec.
func NewLocalTask(exec Executor, info string, fn LocalFunc, opts ...TaskOption) *Task {
	return newTask(info, &localOp{exec, fn}, opts)
}

func (op *localOp) kind() string { return "local" }

func (op *localOp) duplicate(d *Task) operation { return op }

func (op *localOp) dispatch(ctx context.Context, t *Task) error {
	t.SetState(Sending)
	t.SetState(Sent)
	return op.exec.Submit(ctx, func() { op.run(ctx, t) })
}

func (op *localOp) run(ctx context.Context, t *Task) {
	opctx := t.OperationContext()
	ctx, endSpan := tracing.StartSpan(ctx, "task "+t.info,
		tracing.AttrExecution.String(opctx.ExecutionID),
		tracing.AttrTaskID.String(opctx.TaskID),
		tracing.AttrRetry.Int(opctx.RetryNumber))
	defer endSpan()

	if err := t.SetState(Started); err != nil {
		return
	}
	v, err := op.call(ctx, opctx)
	if err != nil {
		tracing.RecordSpanError(ctx, err)
	} else {
		tracing.SetSpanOK(ctx)
	}
	t.finish(v, err)
}

// call runs fn, converting panics into non-recoverable errors.
func (op *localOp) call(ctx context.Context, opctx broker.OperationContext) (v interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = operrors.NonRecoverable("panic in %s: %v", opctx.Info, p)
		}
	}()
	return op.fn(ctx, opctx)
}
