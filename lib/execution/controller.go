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
// Package execution runs task graphs in the background and tracks their
// outcome.
package execution

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/uber-go/tally"
	"go.uber.org/atomic"

	"github.com/uber/dagrun/lib/taskgraph"
	"github.com/uber/dagrun/lib/tracing"
	"github.com/uber/dagrun/utils/log"
)

type execution struct {
	id     string
	name   string
	graph  *taskgraph.Graph
	cancel context.CancelFunc
	done   chan struct{}

	// Guarded by Controller.mu.
	status   Status
	err      error
	started  time.Time
	finished time.Time
}

// Controller starts, cancels and tracks executions. Execution ids are the
// ids of their graphs.
type Controller struct {
	config Config
	stats  tally.Scope
	clk    clock.Clock

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	executions map[string]*execution

	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    atomic.Bool
}

// NewController creates a Controller.
func NewController(config Config, stats tally.Scope, clk clock.Clock) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		config: config.applyDefaults(),
		stats: stats.Tagged(map[string]string{
			"module": "execution",
		}),
		clk:        clk,
		ctx:        ctx,
		cancel:     cancel,
		executions: make(map[string]*execution),
	}
	c.wg.Add(1)
	go c.cleanupLoop()
	return c
}

// Start executes g in the background under name and returns its id.
func (c *Controller) Start(name string, g *taskgraph.Graph) (string, error) {
	if c.closed.Load() {
		return "", ErrControllerClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.executions[g.ID()]; ok {
		return "", ErrExecutionExists
	}
	if c.config.MaxRunning > 0 && c.runningLocked() >= c.config.MaxRunning {
		c.stats.Counter("rejected").Inc(1)
		return "", ErrTooManyRunning
	}
	ctx, cancel := context.WithCancel(c.ctx)
	e := &execution{
		id:      g.ID(),
		name:    name,
		graph:   g,
		cancel:  cancel,
		done:    make(chan struct{}),
		status:  Running,
		started: c.clk.Now(),
	}
	c.executions[e.id] = e
	c.stats.Gauge("running").Update(float64(c.runningLocked()))

	c.wg.Add(1)
	go c.run(ctx, e)

	return e.id, nil
}

func (c *Controller) run(ctx context.Context, e *execution) {
	defer c.wg.Done()
	defer close(e.done)
	defer e.cancel()

	logger := log.With("execution", e.id, "name", e.name)
	logger.Infof("Starting execution")

	ctx, endSpan := tracing.StartSpan(ctx, "execution", tracing.AttrExecution.String(e.id))
	err := e.graph.Execute(ctx)
	if err != nil {
		tracing.RecordSpanError(ctx, err)
	} else {
		tracing.SetSpanOK(ctx)
	}
	endSpan()

	c.mu.Lock()
	e.status = statusOf(err)
	e.err = err
	e.finished = c.clk.Now()
	elapsed := e.finished.Sub(e.started)
	c.stats.Gauge("running").Update(float64(c.runningLocked()))
	c.mu.Unlock()

	c.stats.Tagged(map[string]string{"status": string(e.status)}).Counter("executions").Inc(1)
	c.stats.Timer("duration").Record(elapsed)

	if err != nil {
		logger.Infof("Execution %s after %s: %s", e.status, elapsed, err)
	} else {
		logger.Infof("Execution succeeded after %s", elapsed)
	}
}

// Run starts g and waits for it to finish. Cancelling ctx cancels the
// execution. The returned error is the error of the execution.
func (c *Controller) Run(ctx context.Context, name string, g *taskgraph.Graph) (Info, error) {
	id, err := c.Start(name, g)
	if err != nil {
		return Info{}, err
	}
	e, err := c.lookup(id)
	if err != nil {
		return Info{}, err
	}
	select {
	case <-e.done:
	case <-ctx.Done():
		e.cancel()
		<-e.done
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return e.infoLocked(), e.err
}

// Cancel cancels a running execution. Cancelling a finished execution is a
// no-op.
func (c *Controller) Cancel(id string) error {
	e, err := c.lookup(id)
	if err != nil {
		return err
	}
	e.cancel()
	return nil
}

// Get returns the current info of an execution, including a dump of its
// remaining tasks.
func (c *Controller) Get(id string) (Info, error) {
	e, err := c.lookup(id)
	if err != nil {
		return Info{}, err
	}
	c.mu.Lock()
	info := e.infoLocked()
	c.mu.Unlock()

	info.Tasks = e.graph.Dump()
	return info, nil
}

// List returns all known executions ordered by start time. Task dumps are
// omitted.
func (c *Controller) List() []Info {
	c.mu.Lock()
	defer c.mu.Unlock()

	infos := make([]Info, 0, len(c.executions))
	for _, e := range c.executions {
		infos = append(infos, e.infoLocked())
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].StartedAt.Equal(infos[j].StartedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].StartedAt.Before(infos[j].StartedAt)
	})
	return infos
}

// Wait blocks until the execution finishes or ctx is done.
func (c *Controller) Wait(ctx context.Context, id string) (Info, error) {
	e, err := c.lookup(id)
	if err != nil {
		return Info{}, err
	}
	select {
	case <-e.done:
	case <-ctx.Done():
		return Info{}, ctx.Err()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return e.infoLocked(), nil
}

// Close cancels every running execution and waits for them to finish.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.cancel()
		c.wg.Wait()
	})
}

func (c *Controller) lookup(id string) (*execution, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.executions[id]
	if !ok {
		return nil, ErrExecutionNotFound
	}
	return e, nil
}

func (c *Controller) runningLocked() int {
	var n int
	for _, e := range c.executions {
		if e.status == Running {
			n++
		}
	}
	return n
}

func (c *Controller) cleanupLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.clk.After(c.config.CleanupInterval):
			c.cleanup()
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Controller) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clk.Now()
	for id, e := range c.executions {
		if e.status.Finished() && now.Sub(e.finished) > c.config.Retention {
			delete(c.executions, id)
		}
	}
}

func (e *execution) infoLocked() Info {
	info := Info{
		ID:         e.id,
		Name:       e.name,
		Status:     e.status,
		StartedAt:  e.started,
		FinishedAt: e.finished,
	}
	if e.err != nil {
		info.Error = e.err.Error()
	}
	return info
}
