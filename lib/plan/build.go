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
package plan

import (
	"context"
	"errors"
	"fmt"

	"github.com/uber-go/tally"

	"github.com/uber/dagrun/lib/broker"
	"github.com/uber/dagrun/lib/taskgraph"
	"github.com/uber/dagrun/utils/log"
)

// ErrNoBroker is returned when a plan has remote operations but no broker is
// configured.
var ErrNoBroker = errors.New("remote operation requires a broker")

// Backends execute the operations of a plan.
type Backends struct {
	// Executor runs local operations.
	Executor taskgraph.Executor

	// Local resolves local operation names.
	Local *broker.Registry

	// Broker submits remote operations. Optional.
	Broker broker.Broker
}

type builder struct {
	plan     Plan
	backends Backends
	graph    *taskgraph.Graph
}

// Build creates a graph executing p.
func Build(
	p Plan,
	backends Backends,
	config taskgraph.Config,
	stats tally.Scope,
	opts ...taskgraph.Option) (*taskgraph.Graph, error) {

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("validate: %s", err)
	}
	b := &builder{
		plan:     p,
		backends: backends,
		graph:    taskgraph.New(config, stats, opts...),
	}
	subgraphs := make(map[string]*taskgraph.Subgraph, len(p.Nodes))
	for _, n := range p.Nodes {
		s, err := b.node(n, 0)
		if err != nil {
			return nil, fmt.Errorf("node %s: %s", n.ID, err)
		}
		subgraphs[n.ID] = s
	}
	for _, n := range p.Nodes {
		for _, dep := range n.DependsOn {
			if err := b.graph.AddDependency(subgraphs[n.ID].Task, subgraphs[dep].Task); err != nil {
				return nil, fmt.Errorf("depend %s on %s: %s", n.ID, dep, err)
			}
		}
	}
	return b.graph, nil
}

// node adds a subgraph installing n, with retry as its retry counter.
func (b *builder) node(n Node, retry int) (*taskgraph.Subgraph, error) {
	opts := []taskgraph.TaskOption{
		taskgraph.WithCurrentRetries(retry),
		taskgraph.WithTotalRetries(n.ReinstallRetries),
	}
	if n.ReinstallRetries > 0 {
		opts = append(opts, taskgraph.WithOnFailure(b.reinstall(n)))
	}
	s, err := b.graph.Subgraph(n.ID, opts...)
	if err != nil {
		return nil, err
	}
	seq := s.Sequence()
	for _, op := range n.Operations {
		var item taskgraph.Item
		if len(op.Parallel) > 0 {
			var tasks []taskgraph.Item
			for _, p := range op.Parallel {
				t, err := b.task(n, p)
				if err != nil {
					return nil, err
				}
				tasks = append(tasks, t)
			}
			item = taskgraph.ForkJoin(tasks...)
		} else {
			t, err := b.task(n, op)
			if err != nil {
				return nil, err
			}
			item = t
		}
		if err := seq.Add(item); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// reinstall replaces a failed node by a freshly built one until its
// reinstall retries run out.
func (b *builder) reinstall(n Node) taskgraph.FailureHandler {
	return taskgraph.FailureHandlerFunc(func(t *taskgraph.Task) taskgraph.HandlerResult {
		if t.CurrentRetries() >= t.TotalRetries() {
			return taskgraph.Fail()
		}
		logger := log.With("node", n.ID, "subgraph", t.ID())
		s, err := b.node(n, t.CurrentRetries()+1)
		if err != nil {
			logger.Errorf("Error rebuilding node: %s", err)
			return taskgraph.Fail()
		}
		logger.Infof("Reinstalling node (attempt %d of %d)", t.CurrentRetries()+2, t.TotalRetries()+1)
		return taskgraph.Retry(taskgraph.RetryWith(s.Task))
	})
}

func (b *builder) task(n Node, op Operation) (*taskgraph.Task, error) {
	var opts []taskgraph.TaskOption
	retries := b.plan.Retries
	if n.Retries != nil {
		retries = n.Retries
	}
	if retries != nil {
		opts = append(opts, taskgraph.WithTotalRetries(*retries))
	}
	interval := b.plan.RetryInterval
	if n.RetryInterval > 0 {
		interval = n.RetryInterval
	}
	if interval > 0 {
		opts = append(opts, taskgraph.WithRetryInterval(interval))
	}
	info := n.ID + "." + op.Name()
	opts = append(opts, taskgraph.WithInfo(info))

	payload := make(map[string]interface{}, len(op.Args))
	for k, v := range op.Args {
		payload[k] = v
	}

	if op.Remote != nil {
		if b.backends.Broker == nil {
			return nil, ErrNoBroker
		}
		return taskgraph.NewRemoteTask(
			b.backends.Broker, op.Remote.Queue, op.Remote.Target, payload, opts...), nil
	}
	if b.backends.Local == nil {
		return nil, fmt.Errorf("unknown local operation %q", op.Local)
	}
	h, ok := b.backends.Local.Lookup(op.Local)
	if !ok {
		return nil, fmt.Errorf("unknown local operation %q", op.Local)
	}
	fn := func(ctx context.Context, opctx broker.OperationContext) (interface{}, error) {
		return h.Handle(ctx, opctx, payload)
	}
	return taskgraph.NewLocalTask(b.backends.Executor, info, fn, opts...), nil
}
