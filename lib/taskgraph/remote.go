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
	"fmt"

	"github.com/uber/dagrun/lib/broker"
	"github.com/uber/dagrun/lib/tracing"
)

type remoteOp struct {
	broker  broker.Broker
	queue   string
	target  string
	payload map[string]interface{}

	// Sent along with the message. RetryNumber follows the retries of the
	// owning task.
	context broker.OperationContext
}

// NewRemoteTask creates a task running target on a worker consuming queue.
// The task info defaults to target.
func NewRemoteTask(
	b broker.Broker,
	queue string,
	target string,
	payload map[string]interface{},
	opts ...TaskOption) *Task {

	op := &remoteOp{
		broker:  b,
		queue:   queue,
		target:  target,
		payload: payload,
	}
	t := newTask(target, op, opts)
	op.context = broker.OperationContext{
		TaskID:      t.id,
		Info:        t.info,
		RetryNumber: t.currentRetries,
	}
	return t
}

func (op *remoteOp) kind() string { return "remote" }

func (op *remoteOp) duplicate(d *Task) operation {
	c := *op
	c.context.TaskID = d.id
	c.context.RetryNumber = d.currentRetries
	return &c
}

func (op *remoteOp) dispatch(ctx context.Context, t *Task) error {
	t.SetState(Sending)

	opctx := t.OperationContext()
	spanCtx, endSpan := tracing.StartSpan(ctx, "submit "+op.target,
		tracing.AttrExecution.String(opctx.ExecutionID),
		tracing.AttrTaskID.String(opctx.TaskID),
		tracing.AttrTarget.String(op.target),
		tracing.AttrRetry.Int(opctx.RetryNumber))
	res, err := op.broker.Submit(spanCtx, broker.Message{
		Queue:   op.queue,
		Target:  op.target,
		Payload: op.payload,
		Context: opctx,
	})
	if err != nil {
		tracing.RecordSpanError(spanCtx, err)
		endSpan()
		return fmt.Errorf("submit %s to %s: %w", op.target, op.queue, err)
	}
	endSpan()

	t.SetState(Sent)
	go func() {
		v, err := res.Get(ctx)
		t.finish(v, err)
	}()
	return nil
}
