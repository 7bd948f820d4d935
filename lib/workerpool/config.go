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
package workerpool

import "time"

// Config defines Pool configuration.
type Config struct {
	NumWorkers int `yaml:"num_workers"`

	// QueueSize is the number of submitted jobs buffered while every worker is
	// busy. Submit blocks once the buffer is full.
	QueueSize int `yaml:"queue_size"`

	// Minimum interval between job starts across all workers. Zero disables
	// throttling.
	MaxTaskThroughput time.Duration `yaml:"max_task_throughput"`

	// Flags that a zero QueueSize should not have a default applied.
	Testing bool
}

func (c Config) applyDefaults() Config {
	if c.NumWorkers == 0 {
		c.NumWorkers = 10
	}
	if !c.Testing && c.QueueSize == 0 {
		c.QueueSize = 1000
	}
	return c
}
