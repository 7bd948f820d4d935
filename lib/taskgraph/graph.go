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

// Package taskgraph schedules tasks along a dependency graph.
//
// A Graph holds tasks keyed by id and edges "src depends on dst". Execute
// repeatedly handles terminated tasks, replacing retried tasks by their
// duplicates, and dispatches pending tasks without outstanding dependencies,
// until the graph is empty, a failure escapes every subgraph, or the context
// ends.
//
// Subgraphs group tasks of the same graph. A task may not run while its
// containing subgraph, or any subgraph above it, still has dependencies. A
// failure inside a subgraph fails the subgraph instead of the graph; the
// subgraph's own failure handler then decides what happens.
package taskgraph

import (
	"context"
	"sort"
	"sync"

	"github.com/andres-erbsen/clock"
	"github.com/satori/go.uuid"
	"github.com/uber-go/tally"
	"go.uber.org/zap"

	"github.com/uber/dagrun/utils/log"
)

// Option configures a Graph.
type Option func(*Graph)

// WithClock sets the clock of the graph and of every task added to it.
func WithClock(clk clock.Clock) Option {
	return func(g *Graph) { g.clk = clk }
}

// WithRecorder sets the recorder receiving task events.
func WithRecorder(r EventRecorder) Option {
	return func(g *Graph) { g.recorder = r }
}

// WithExecutionID sets the id of the graph, which is also passed to
// operations as their execution id.
func WithExecutionID(id string) Option {
	return func(g *Graph) { g.id = id }
}

// Graph is a dependency graph of tasks.
type Graph struct {
	id       string
	config   Config
	stats    tally.Scope
	clk      clock.Clock
	recorder EventRecorder
	logger   *zap.SugaredLogger

	mu         sync.Mutex
	tasks      map[string]*Task
	deps       map[string]map[string]bool
	dependents map[string]map[string]bool
}

// New creates an empty Graph.
func New(config Config, stats tally.Scope, opts ...Option) *Graph {
	g := &Graph{
		config: config.applyDefaults(),
		stats: stats.Tagged(map[string]string{
			"module": "taskgraph",
		}),
		clk:        clock.New(),
		tasks:      make(map[string]*Task),
		deps:       make(map[string]map[string]bool),
		dependents: make(map[string]map[string]bool),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.id == "" {
		g.id = uuid.NewV4().String()
	}
	g.logger = log.With("execution", g.id)
	return g
}

// ID returns the id of the graph.
func (g *Graph) ID() string {
	return g.id
}

// AddTask adds t to g. Adding a task already in g is a no-op.
func (g *Graph) AddTask(t *Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.addLocked(t)
}

func (g *Graph) addLocked(t *Task) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.graph == g {
		if _, ok := g.tasks[t.id]; ok {
			return nil
		}
	} else if t.graph != nil {
		return ErrTaskInOtherGraph
	}
	t.graph = g
	if !t.clkSet {
		t.clk = g.clk
	}
	if !t.totalRetriesSet {
		t.totalRetries = g.config.TotalRetries
	}
	if !t.retryIntervalSet {
		t.retryInterval = g.config.RetryInterval
	}
	g.tasks[t.id] = t
	return nil
}

// RemoveTask removes t and its edges from g. Removing a subgraph removes its
// children first.
func (g *Graph) RemoveTask(t *Task) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.removeLocked(t)
}

func (g *Graph) removeLocked(t *Task) {
	if g.tasks[t.id] != t {
		return
	}
	if t.sub != nil {
		for _, c := range t.sub.children {
			g.removeLocked(c)
		}
	}
	if s := g.containingLocked(t); s != nil {
		delete(s.sub.children, t.id)
	}
	delete(g.tasks, t.id)
	for dst := range g.deps[t.id] {
		delete(g.dependents[dst], t.id)
	}
	for src := range g.dependents[t.id] {
		delete(g.deps[src], t.id)
	}
	delete(g.deps, t.id)
	delete(g.dependents, t.id)

	t.mu.Lock()
	t.graph = nil
	t.mu.Unlock()
}

// AddDependency makes src depend on dst. Both must be in g. Cycles are not
// detected and stall execution.
func (g *Graph) AddDependency(src, dst *Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.tasks[src.id] != src || g.tasks[dst.id] != dst {
		return ErrTaskNotInGraph
	}
	g.addDependencyLocked(src.id, dst.id)
	return nil
}

func (g *Graph) addDependencyLocked(src, dst string) {
	if g.deps[src] == nil {
		g.deps[src] = make(map[string]bool)
	}
	g.deps[src][dst] = true
	if g.dependents[dst] == nil {
		g.dependents[dst] = make(map[string]bool)
	}
	g.dependents[dst][src] = true
}

// Dependencies returns the ids of the tasks t depends on, sorted.
func (g *Graph) Dependencies(t *Task) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var ids []string
	for id := range g.deps[t.id] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GetTask returns the task with the given id.
func (g *Graph) GetTask(id string) (*Task, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	t, ok := g.tasks[id]
	return t, ok
}

// Len returns the number of tasks in g, subgraphs and their children
// included.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.tasks)
}

// Tasks returns the tasks of g in creation order.
func (g *Graph) Tasks() []*Task {
	g.mu.Lock()
	defer g.mu.Unlock()

	return sortedTasks(g.tasks)
}

// Dump returns a snapshot of every task in g.
func (g *Graph) Dump() []Dump {
	var dumps []Dump
	for _, t := range g.Tasks() {
		dumps = append(dumps, t.Dump())
	}
	return dumps
}

// Subgraph creates an empty subgraph named name in g.
func (g *Graph) Subgraph(name string, opts ...TaskOption) (*Subgraph, error) {
	s := newSubgraph(name, opts)
	if err := g.AddTask(s.Task); err != nil {
		return nil, err
	}
	return s, nil
}

// Sequence returns a Sequence adding tasks to g.
func (g *Graph) Sequence() *Sequence {
	return &Sequence{graph: g}
}

// Execute runs the graph until it is empty. A failure which is not contained
// by a subgraph aborts execution with a *TaskFailedError. If ctx ends, an
// error wrapping ErrExecutionCancelled is returned; tasks already running are
// not interrupted.
func (g *Graph) Execute(ctx context.Context) error {
	timer := g.stats.Timer("execute").Start()
	defer timer.Stop()

	g.logger.Infof("Executing graph of %d tasks", g.Len())

	for {
		if ctx.Err() != nil {
			g.stats.Counter("cancelled").Inc(1)
			g.logger.Info("Execution cancelled")
			return cancelled(ctx)
		}
		if err := g.handleTerminated(ctx); err != nil {
			return err
		}
		g.dispatchReady(ctx)

		if g.Len() == 0 {
			g.logger.Info("Execution finished")
			return nil
		}
		select {
		case <-g.clk.After(g.config.PollInterval):
		case <-ctx.Done():
		}
	}
}

func (g *Graph) handleTerminated(ctx context.Context) error {
	var terminated []*Task
	for _, t := range g.Tasks() {
		if t.Terminated() {
			terminated = append(terminated, t)
		}
	}
	for _, t := range terminated {
		if _, ok := g.GetTask(t.id); !ok {
			// Removed along with its subgraph.
			continue
		}
		res, err := t.HandleTaskTerminated()
		if err != nil {
			return err
		}
		switch res.Action {
		case ActionFail:
			if ctx.Err() != nil {
				g.stats.Counter("cancelled").Inc(1)
				return cancelled(ctx)
			}
			g.stats.Counter("failures").Inc(1)
			err := failureError(t)
			g.logger.Errorf("Aborting execution: %s", err)
			return err
		case ActionRetry:
			g.stats.Counter("retries").Inc(1)
			g.logger.With("task", t.info).Infof(
				"Retrying as %s (retry %d)", res.Replacement.id, res.Replacement.currentRetries)
			if err := g.replace(t, res.Replacement); err != nil {
				return err
			}
		default:
			g.RemoveTask(t)
		}
	}
	return nil
}

// replace substitutes old by its replacement, moving every edge pointing to
// old onto the replacement. No-op if old is no longer in g.
func (g *Graph) replace(old, replacement *Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.tasks[old.id] != old {
		return nil
	}
	if err := g.addLocked(replacement); err != nil {
		return err
	}
	for src := range g.dependents[old.id] {
		if src != replacement.id {
			g.addDependencyLocked(src, replacement.id)
		}
	}
	g.removeLocked(old)
	return nil
}

func (g *Graph) dispatchReady(ctx context.Context) {
	now := g.clk.Now()

	var ready []*Task
	g.mu.Lock()
	for _, t := range g.tasks {
		if t.State() != Pending || t.executeAfter.After(now) || g.blockedLocked(t) {
			continue
		}
		ready = append(ready, t)
	}
	g.mu.Unlock()

	sort.Slice(ready, func(i, j int) bool { return ready[i].id < ready[j].id })
	for _, t := range ready {
		if ctx.Err() != nil {
			return
		}
		g.stats.Counter("dispatched").Inc(1)
		t.ApplyAsync(ctx)
	}
}

// blockedLocked returns true if t or any subgraph containing it has
// outstanding dependencies, or if a containing subgraph already failed.
func (g *Graph) blockedLocked(t *Task) bool {
	if len(g.deps[t.id]) > 0 {
		return true
	}
	for s := g.containingLocked(t); s != nil; s = g.containingLocked(s.Task) {
		if len(g.deps[s.id]) > 0 || s.State() == Failed {
			return true
		}
	}
	return false
}

func (g *Graph) containingLocked(t *Task) *Subgraph {
	id := t.containingID()
	if id == "" {
		return nil
	}
	s, ok := g.tasks[id]
	if !ok || s.sub == nil {
		return nil
	}
	return &Subgraph{s}
}

func (g *Graph) record(typ EventType, t *Task, action Action) {
	if g == nil || g.recorder == nil {
		return
	}
	g.recorder.Record(Event{
		Type:        typ,
		Time:        g.clk.Now(),
		ExecutionID: g.id,
		Action:      action,
		Task:        t.Dump(),
	})
}

func sortedTasks(m map[string]*Task) []*Task {
	tasks := make([]*Task, 0, len(m))
	for _, t := range m {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].id < tasks[j].id })
	return tasks
}
