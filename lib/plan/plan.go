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
// Package plan describes deployments as YAML node plans and builds task
// graphs from them.
//
// Every node becomes a subgraph whose operations run in order. A node runs
// once all nodes it depends on are done. A node with reinstall retries is
// rebuilt from scratch when any of its operations fails for good.
package plan

import (
	"errors"
	"fmt"
	"io/ioutil"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/uber/dagrun/utils/configutil"
)

// Plan is a set of nodes to install.
type Plan struct {
	Name  string `yaml:"name" validate:"nonzero"`
	Nodes []Node `yaml:"nodes" validate:"min=1"`

	// Retries and RetryInterval are the defaults of every operation. Nil
	// Retries keeps the graph default, -1 retries forever.
	Retries       *int          `yaml:"retries"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// Node is a unit of installation.
type Node struct {
	ID         string      `yaml:"id" validate:"nonzero"`
	DependsOn  []string    `yaml:"depends_on"`
	Operations []Operation `yaml:"operations" validate:"min=1"`

	Retries       *int          `yaml:"retries"`
	RetryInterval time.Duration `yaml:"retry_interval"`

	// ReinstallRetries is how many times the node is rebuilt after a failed
	// installation.
	ReinstallRetries int `yaml:"reinstall_retries" validate:"min=0"`
}

// Operation is a single local or remote call, or a group of calls running
// in parallel. Exactly one of Local, Remote and Parallel is set.
type Operation struct {
	Local    string            `yaml:"local"`
	Remote   *Remote           `yaml:"remote"`
	Args     map[string]string `yaml:"args"`
	Parallel []Operation       `yaml:"parallel"`
}

// Remote addresses an operation executed by a worker.
type Remote struct {
	Queue  string `yaml:"queue" validate:"nonzero"`
	Target string `yaml:"target" validate:"nonzero"`
}

// Name returns a readable name of op.
func (op Operation) Name() string {
	switch {
	case op.Local != "":
		return op.Local
	case op.Remote != nil:
		return op.Remote.Queue + "/" + op.Remote.Target
	default:
		return "parallel"
	}
}

// Load reads and validates the plan in filename.
func Load(filename string) (Plan, error) {
	data, err := ioutil.ReadFile(filename)
	if err != nil {
		return Plan{}, err
	}
	return Parse(data)
}

// Parse decodes and validates a YAML plan.
func Parse(data []byte) (Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Plan{}, fmt.Errorf("unmarshal: %s", err)
	}
	if err := p.Validate(); err != nil {
		return Plan{}, err
	}
	return p, nil
}

// Validate checks field constraints, node references and the absence of
// dependency cycles.
func (p Plan) Validate() error {
	if err := configutil.Validate(p); err != nil {
		return err
	}
	nodes := make(map[string]Node, len(p.Nodes))
	for _, n := range p.Nodes {
		if n.ID == "" {
			return errors.New("node without id")
		}
		if len(n.Operations) == 0 {
			return fmt.Errorf("node %q has no operations", n.ID)
		}
		if _, ok := nodes[n.ID]; ok {
			return fmt.Errorf("duplicate node %q", n.ID)
		}
		nodes[n.ID] = n
	}
	for _, n := range p.Nodes {
		for _, dep := range n.DependsOn {
			if dep == n.ID {
				return fmt.Errorf("node %q depends on itself", n.ID)
			}
			if _, ok := nodes[dep]; !ok {
				return fmt.Errorf("node %q depends on unknown node %q", n.ID, dep)
			}
		}
		for i, op := range n.Operations {
			if err := op.validate(true); err != nil {
				return fmt.Errorf("node %q operation %d: %s", n.ID, i, err)
			}
		}
	}
	return checkCycles(p.Nodes, nodes)
}

func (op Operation) validate(allowParallel bool) error {
	var set int
	if op.Local != "" {
		set++
	}
	if op.Remote != nil {
		if op.Remote.Queue == "" || op.Remote.Target == "" {
			return errors.New("remote requires queue and target")
		}
		set++
	}
	if len(op.Parallel) > 0 {
		if !allowParallel {
			return errors.New("nested parallel groups are not supported")
		}
		set++
		for _, p := range op.Parallel {
			if err := p.validate(false); err != nil {
				return err
			}
		}
	}
	if set != 1 {
		return errors.New("exactly one of local, remote and parallel must be set")
	}
	return nil
}

func checkCycles(order []Node, nodes map[string]Node) error {
	const (
		visiting = 1
		visited  = 2
	)
	marks := make(map[string]int, len(nodes))
	var visit func(id string, path []string) error
	visit = func(id string, path []string) error {
		switch marks[id] {
		case visiting:
			return fmt.Errorf("dependency cycle: %v", append(path, id))
		case visited:
			return nil
		}
		marks[id] = visiting
		for _, dep := range nodes[id].DependsOn {
			if err := visit(dep, append(path, id)); err != nil {
				return err
			}
		}
		marks[id] = visited
		return nil
	}
	for _, n := range order {
		if err := visit(n.ID, nil); err != nil {
			return err
		}
	}
	return nil
}
