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
	"sync"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/satori/go.uuid"
	"go.uber.org/atomic"

	"github.com/uber/dagrun/lib/broker"
	"github.com/uber/dagrun/lib/operrors"
	"github.com/uber/dagrun/utils/log"
)

var _taskSeq atomic.Uint64

// newTaskID returns ids which sort in creation order within a process.
func newTaskID() string {
	return fmt.Sprintf("%012d-%s", _taskSeq.Inc(), uuid.NewV4().String()[:8])
}

// operation is the body of a task.
type operation interface {
	kind() string

	// dispatch starts the operation. An error fails the task.
	dispatch(ctx context.Context, t *Task) error

	// duplicate returns the operation of d, a retry of the owning task.
	duplicate(d *Task) operation
}

// Task is a unit of work with a retry policy, scheduled by a Graph or run
// directly through ApplyAsync and Result.Get. A Task instance runs at most
// once; retries run duplicates.
type Task struct {
	id   string
	info string
	op   operation
	clk  clock.Clock

	totalRetries   int
	retryInterval  time.Duration
	currentRetries int
	executeAfter   time.Time
	onSuccess      SuccessHandler
	onFailure      FailureHandler

	totalRetriesSet  bool
	retryIntervalSet bool
	clkSet           bool

	// Non-nil for subgraphs.
	sub *subgraphState

	// Serializes handler evaluation.
	handleMu sync.Mutex

	mu         sync.Mutex
	graph      *Graph
	containing string
	state      State
	value      interface{}
	err        error
	done       chan struct{}
	result     *Result
	handled    *HandlerResult
}

// TaskOption configures a Task.
type TaskOption func(*Task)

// WithID sets the task id instead of generating one.
func WithID(id string) TaskOption {
	return func(t *Task) { t.id = id }
}

// WithInfo sets the human readable description of the task.
func WithInfo(info string) TaskOption {
	return func(t *Task) { t.info = info }
}

// WithTotalRetries sets the retry budget. Use InfiniteRetries for no limit.
func WithTotalRetries(n int) TaskOption {
	return func(t *Task) {
		t.totalRetries = n
		t.totalRetriesSet = true
	}
}

// WithRetryInterval sets the delay before a retry.
func WithRetryInterval(d time.Duration) TaskOption {
	return func(t *Task) {
		t.retryInterval = d
		t.retryIntervalSet = true
	}
}

// WithCurrentRetries sets the number of retries already consumed.
func WithCurrentRetries(n int) TaskOption {
	return func(t *Task) { t.currentRetries = n }
}

// WithExecuteAfter delays the task until at least ts.
func WithExecuteAfter(ts time.Time) TaskOption {
	return func(t *Task) { t.executeAfter = ts }
}

// WithOnSuccess sets the success handler.
func WithOnSuccess(h SuccessHandler) TaskOption {
	return func(t *Task) { t.onSuccess = h }
}

// WithOnFailure sets the failure handler.
func WithOnFailure(h FailureHandler) TaskOption {
	return func(t *Task) { t.onFailure = h }
}

// WithTaskClock sets the clock used for retry delays. Tasks added to a graph
// otherwise use the graph's clock.
func WithTaskClock(clk clock.Clock) TaskOption {
	return func(t *Task) {
		t.clk = clk
		t.clkSet = true
	}
}

func newTask(info string, op operation, opts []TaskOption) *Task {
	t := &Task{
		info:          info,
		op:            op,
		clk:           clock.New(),
		totalRetries:  DefaultTotalRetries,
		retryInterval: DefaultRetryInterval,
		state:         Pending,
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.id == "" {
		t.id = newTaskID()
	}
	return t
}

// ID returns the task id.
func (t *Task) ID() string { return t.id }

// Info returns the human readable description of the task.
func (t *Task) Info() string { return t.info }

// Kind returns "local", "remote" or "subgraph".
func (t *Task) Kind() string { return t.op.kind() }

// CurrentRetries returns how many retries preceded this task.
func (t *Task) CurrentRetries() int { return t.currentRetries }

// ExecuteAfter returns the time before which the task is not run.
func (t *Task) ExecuteAfter() time.Time { return t.executeAfter }

// TotalRetries returns the retry budget.
func (t *Task) TotalRetries() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalRetries
}

// RetryInterval returns the default delay before a retry.
func (t *Task) RetryInterval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.retryInterval
}

// State returns the current state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Terminated returns true once the task reached a terminal state.
func (t *Task) Terminated() bool {
	return t.State().Terminal()
}

// Done is closed when the task reaches a terminal state.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Value returns the value produced by the operation.
func (t *Task) Value() interface{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value
}

// Err returns the error produced by the operation.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Graph returns the graph owning t, or nil.
func (t *Task) Graph() *Graph {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.graph
}

func (t *Task) containingID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.containing
}

func (t *Task) setContaining(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.containing = id
}

// ContainingSubgraph returns the subgraph t belongs to, or nil.
func (t *Task) ContainingSubgraph() *Subgraph {
	g := t.Graph()
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.containingLocked(t)
}

// AsSubgraph returns t as a Subgraph if it is one.
func (t *Task) AsSubgraph() (*Subgraph, bool) {
	if t.sub == nil {
		return nil, false
	}
	return &Subgraph{t}, true
}

// OperationContext returns the context sent along with the operation.
func (t *Task) OperationContext() broker.OperationContext {
	c := broker.OperationContext{
		TaskID:      t.id,
		Info:        t.info,
		RetryNumber: t.currentRetries,
	}
	if g := t.Graph(); g != nil {
		c.ExecutionID = g.ID()
	}
	if op, ok := t.op.(*remoteOp); ok {
		c.RetryNumber = op.context.RetryNumber
	}
	return c
}

// SetState moves t to s. Reaching a terminal state unblocks every waiter.
func (t *Task) SetState(s State) error {
	return t.transition(s, nil, nil)
}

func (t *Task) transition(s State, value interface{}, err error) error {
	if !s.Valid() {
		return fmt.Errorf("invalid task state %q", s)
	}
	t.mu.Lock()
	if t.state.Terminal() {
		t.mu.Unlock()
		return ErrTaskTerminated
	}
	t.state = s
	if s.Terminal() {
		t.value = value
		t.err = err
		close(t.done)
	}
	g := t.graph
	t.mu.Unlock()

	g.record(EventStateChanged, t, "")
	return nil
}

// finish records the outcome of the operation.
func (t *Task) finish(value interface{}, err error) {
	s := Succeeded
	if err != nil {
		s = Failed
		if _, ok := operrors.AsOperationRetry(err); ok {
			s = Rescheduled
		}
	}
	if terr := t.transition(s, value, err); terr != nil {
		log.With("task", t.id).Warnf("Dropping outcome of %s: %s", t.info, terr)
	}
}

// WaitForTerminated blocks until t terminates or ctx is done.
func (t *Task) WaitForTerminated(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return cancelled(ctx)
	}
}

// ApplyAsync dispatches t and returns a handle to its outcome. Subsequent
// calls return the same Result without dispatching again.
func (t *Task) ApplyAsync(ctx context.Context) *Result {
	t.mu.Lock()
	if t.result != nil {
		r := t.result
		t.mu.Unlock()
		return r
	}
	r := &Result{task: t}
	t.result = r
	pending := t.state == Pending
	t.mu.Unlock()

	if pending {
		if err := t.op.dispatch(ctx, t); err != nil {
			t.finish(nil, err)
		}
	}
	return r
}

// DuplicateForRetry returns a pending copy of t with a new id, one more
// consumed retry and the given earliest execution time.
func (t *Task) DuplicateForRetry(executeAfter time.Time) *Task {
	t.mu.Lock()
	totalRetries, retryInterval := t.totalRetries, t.retryInterval
	t.mu.Unlock()

	d := &Task{
		id:               newTaskID(),
		info:             t.info,
		clk:              t.clk,
		totalRetries:     totalRetries,
		retryInterval:    retryInterval,
		currentRetries:   t.currentRetries + 1,
		executeAfter:     executeAfter,
		onSuccess:        t.onSuccess,
		onFailure:        t.onFailure,
		totalRetriesSet:  true,
		retryIntervalSet: true,
		clkSet:           t.clkSet,
		state:            Pending,
		done:             make(chan struct{}),
	}
	if t.sub != nil {
		d.sub = newSubgraphState()
	}
	d.op = t.op.duplicate(d)
	return d
}

// HandleTaskTerminated evaluates the handlers of a terminated task and
// returns the resulting decision. The decision is computed once; later calls
// return the same result.
//
// Operation retries always retry. Non-recoverable errors always fail.
// Retries beyond the budget fail. Failures inside a subgraph are contained:
// the subgraph is marked failed and the task result becomes Ignore.
func (t *Task) HandleTaskTerminated() (HandlerResult, error) {
	t.handleMu.Lock()
	defer t.handleMu.Unlock()

	t.mu.Lock()
	if t.handled != nil {
		res := *t.handled
		t.mu.Unlock()
		return res, nil
	}
	state, err := t.state, t.err
	t.mu.Unlock()

	if !state.Terminal() {
		return HandlerResult{}, fmt.Errorf("task %s is %s, not terminated", t.id, state)
	}

	var res HandlerResult
	if state == Succeeded {
		res = Continue()
		if t.onSuccess != nil {
			res = t.onSuccess.OnSuccess(t)
		}
	} else {
		res = t.handleNotSucceeded(err)
	}
	if res.Action == ActionRetry {
		res = t.prepareRetry(res)
	}
	res = t.notifyContaining(res)

	t.mu.Lock()
	t.handled = &res
	g := t.graph
	t.mu.Unlock()

	g.record(EventHandled, t, res.Action)
	return res, nil
}

func (t *Task) handleNotSucceeded(err error) HandlerResult {
	if t.sub != nil {
		// Subgraph failures carry the error of a child, which must not be
		// classified again.
		if t.onFailure != nil {
			return t.onFailure.OnFailure(t)
		}
		return Fail()
	}
	if e, ok := operrors.AsOperationRetry(err); ok {
		return Retry(IgnoreTotalRetries(), RetryAfter(e.RetryAfter))
	}

	rec, recoverable := operrors.AsRecoverable(err)
	var res HandlerResult
	switch {
	case t.onFailure != nil:
		res = t.onFailure.OnFailure(t)
	case err != nil && !recoverable && t.failOnUnclassified():
		res = Fail()
	default:
		res = Retry()
	}
	if operrors.IsNonRecoverable(err) {
		return Fail()
	}
	if recoverable && res.Action == ActionRetry && res.RetryAfter == 0 {
		res.RetryAfter = rec.RetryAfter
	}
	return res
}

func (t *Task) failOnUnclassified() bool {
	g := t.Graph()
	return g != nil && g.config.FailOnUnclassifiedErrors
}

func (t *Task) retryAllowed(res HandlerResult) bool {
	total := t.TotalRetries()
	return total == InfiniteRetries || t.currentRetries < total || res.IgnoreTotalRetries
}

func (t *Task) prepareRetry(res HandlerResult) HandlerResult {
	if !t.retryAllowed(res) {
		log.With("task", t.id).Infof("Retries of %s exhausted after %d attempts", t.info, t.currentRetries+1)
		return Fail()
	}
	if res.Replacement == nil {
		if t.sub != nil {
			// Subgraphs can only be retried by an explicit replacement.
			return Fail()
		}
		delay := t.RetryInterval()
		if res.RetryAfter > 0 {
			delay = res.RetryAfter
		}
		res.Replacement = t.DuplicateForRetry(t.clk.Now().Add(delay))
	}
	return res
}

func (t *Task) notifyContaining(res HandlerResult) HandlerResult {
	g := t.Graph()
	if g == nil {
		return res
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.containingLocked(t)
	if s == nil {
		return res
	}
	var replacement *Task
	switch res.Action {
	case ActionFail:
		res = Ignore()
		s.markFailed(t)
	case ActionRetry:
		replacement = res.Replacement
	}
	s.taskTerminatedLocked(t, replacement)
	return res
}

// deepestFailure follows failed subgraphs down to the concrete task which
// failed first.
func (t *Task) deepestFailure() *Task {
	cur := t
	for cur.sub != nil {
		cur.mu.Lock()
		next := cur.sub.failedTask
		cur.mu.Unlock()
		if next == nil {
			break
		}
		cur = next
	}
	return cur
}

func failureError(t *Task) error {
	d := t.deepestFailure()
	err := d.Err()
	if err == nil {
		err = errors.New("failed by handler")
	}
	return &TaskFailedError{TaskID: d.id, Info: d.info, Err: err}
}

// Dump returns a diagnostic snapshot of t.
func (t *Task) Dump() Dump {
	t.mu.Lock()
	defer t.mu.Unlock()

	d := Dump{
		ID:             t.id,
		Info:           t.info,
		Kind:           t.op.kind(),
		State:          t.state,
		CurrentRetries: t.currentRetries,
		TotalRetries:   t.totalRetries,
		ExecuteAfter:   t.executeAfter,
		Containing:     t.containing,
	}
	if t.err != nil {
		d.Error = t.err.Error()
	}
	if t.sub != nil && t.sub.failedTask != nil {
		d.FailedTask = t.sub.failedTask.id
	}
	return d
}
