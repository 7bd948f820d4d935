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

import "time"

// InfiniteRetries disables the retry budget of a task.
const InfiniteRetries = -1

// Default retry policy of tasks created outside a graph.
const (
	DefaultTotalRetries  = 60
	DefaultRetryInterval = 15 * time.Second
)

// Config defines Graph configuration.
type Config struct {
	// PollInterval is the sleep between two iterations of the execution loop.
	PollInterval time.Duration `yaml:"poll_interval"`

	// TotalRetries and RetryInterval apply to tasks added to the graph
	// without an explicit retry policy. Use -1 for infinite retries.
	TotalRetries  int           `yaml:"total_retries"`
	RetryInterval time.Duration `yaml:"retry_interval"`

	// FailOnUnclassifiedErrors fails tasks without a failure handler whose
	// error is neither recoverable nor an operation retry. By default such
	// errors are retried.
	FailOnUnclassifiedErrors bool `yaml:"fail_on_unclassified_errors"`
}

func (c Config) applyDefaults() Config {
	if c.PollInterval == 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.TotalRetries == 0 {
		c.TotalRetries = DefaultTotalRetries
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = DefaultRetryInterval
	}
	return c
}
