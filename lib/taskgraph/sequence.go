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

// Item is a group of tasks added to a Sequence in one step: a single task,
// a subgraph, or a ForkJoin.
type Item interface {
	groupTasks() []*Task
}

func (t *Task) groupTasks() []*Task {
	return []*Task{t}
}

type forkJoin []*Task

func (f forkJoin) groupTasks() []*Task {
	return f
}

// ForkJoin groups items which run in parallel within a Sequence.
func ForkJoin(items ...Item) Item {
	var f forkJoin
	for _, item := range items {
		if item != nil {
			f = append(f, item.groupTasks()...)
		}
	}
	return f
}

// Sequence chains groups of tasks: every task of a group depends on every
// task of the group added before it.
type Sequence struct {
	graph *Graph
	sub   *Subgraph
	last  []*Task
}

// Add appends items to the sequence in order.
func (s *Sequence) Add(items ...Item) error {
	for _, item := range items {
		if item == nil {
			continue
		}
		var group []*Task
		for _, t := range item.groupTasks() {
			if t != nil {
				group = append(group, t)
			}
		}
		if len(group) == 0 {
			continue
		}
		for _, t := range group {
			if err := s.add(t); err != nil {
				return err
			}
		}
		g := s.owner()
		for _, t := range group {
			for _, prev := range s.last {
				if err := g.AddDependency(t, prev); err != nil {
					return err
				}
			}
		}
		s.last = group
	}
	return nil
}

func (s *Sequence) add(t *Task) error {
	if s.sub != nil {
		return s.sub.AddTask(t)
	}
	return s.graph.AddTask(t)
}

func (s *Sequence) owner() *Graph {
	if s.sub != nil {
		return s.sub.Graph()
	}
	return s.graph
}
