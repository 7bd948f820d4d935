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

	"github.com/uber/dagrun/utils/log"
)

type subgraphState struct {
	// Guarded by the graph lock.
	children map[string]*Task

	// Guarded by the subgraph task lock.
	failedTask *Task
}

func newSubgraphState() *subgraphState {
	return &subgraphState{children: make(map[string]*Task)}
}

// Subgraph is a task grouping other tasks of the same graph. It performs no
// work: it succeeds once all its children are gone, and fails as soon as one
// child fails.
type Subgraph struct {
	*Task
}

func newSubgraph(name string, opts []TaskOption) *Subgraph {
	t := newTask(name, subgraphOp{}, opts)
	t.sub = newSubgraphState()
	return &Subgraph{t}
}

// AddTask adds child to s and to the graph of s. Fails with
// ErrSubgraphConflict if child already belongs to another subgraph.
func (s *Subgraph) AddTask(child *Task) error {
	g := s.Graph()
	if g == nil {
		return ErrTaskNotInGraph
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if id := child.containingID(); id != "" && id != s.id {
		return ErrSubgraphConflict
	}
	if err := g.addLocked(child); err != nil {
		return err
	}
	child.setContaining(s.id)
	s.sub.children[child.id] = child
	return nil
}

// Subgraph creates an empty subgraph nested in s.
func (s *Subgraph) Subgraph(name string, opts ...TaskOption) (*Subgraph, error) {
	c := newSubgraph(name, opts)
	if err := s.AddTask(c.Task); err != nil {
		return nil, err
	}
	return c, nil
}

// Sequence returns a Sequence adding tasks to s.
func (s *Subgraph) Sequence() *Sequence {
	return &Sequence{sub: s}
}

// Children returns the tasks currently in s in creation order.
func (s *Subgraph) Children() []*Task {
	g := s.Graph()
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return sortedTasks(s.sub.children)
}

// FailedTask returns the child whose failure failed s, or nil.
func (s *Subgraph) FailedTask() *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub.failedTask
}

// TaskTerminated removes child from s, adding replacement in its place if
// not nil. s succeeds when its last child is gone.
func (s *Subgraph) TaskTerminated(child, replacement *Task) {
	g := s.Graph()
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	s.taskTerminatedLocked(child, replacement)
}

func (s *Subgraph) taskTerminatedLocked(child, replacement *Task) {
	delete(s.sub.children, child.id)
	if replacement != nil {
		replacement.setContaining(s.id)
		s.sub.children[replacement.id] = replacement
	}
	if len(s.sub.children) == 0 && !s.Terminated() {
		s.transition(Succeeded, nil, nil)
	}
}

// markFailed fails s on behalf of child. Only the first failure is kept.
func (s *Subgraph) markFailed(child *Task) {
	s.mu.Lock()
	if s.sub.failedTask != nil {
		s.mu.Unlock()
		return
	}
	s.sub.failedTask = child
	s.mu.Unlock()

	if err := s.transition(Failed, nil, failureError(child)); err != nil {
		log.With("task", s.id).Warnf("Subgraph %s failed by %s after terminating: %s", s.info, child.info, err)
	}
}

type subgraphOp struct{}

func (subgraphOp) kind() string { return "subgraph" }

func (subgraphOp) duplicate(d *Task) operation { return subgraphOp{} }

func (subgraphOp) dispatch(ctx context.Context, t *Task) error {
	next := Succeeded
	if g := t.Graph(); g != nil {
		g.mu.Lock()
		defer g.mu.Unlock()
		if len(t.sub.children) > 0 {
			next = Started
		}
	}
	// Children may have finished before the subgraph was dispatched.
	t.transition(next, nil, nil)
	return nil
}
