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
package taskevents

import (
	"github.com/uber/dagrun/localdb"
	"github.com/uber/dagrun/utils/log"
)

// Config defines where task events are recorded. Both sinks are optional.
type Config struct {
	Log      log.Config     `yaml:"log"`
	Database localdb.Config `yaml:"database"`

	// BufferSize bounds the events queued for the database writer. Events
	// beyond it are dropped.
	BufferSize int `yaml:"buffer_size"`
}

func (c Config) applyDefaults() Config {
	if c.Log.Name == "" {
		c.Log.Name = "task_events"
	}
	if c.BufferSize == 0 {
		c.BufferSize = 1024
	}
	return c
}
