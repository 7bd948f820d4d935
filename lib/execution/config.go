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
package execution

import "time"

// Config defines Controller configuration.
type Config struct {
	// MaxRunning limits concurrent executions. Zero means unlimited.
	MaxRunning int `yaml:"max_running"`

	// Retention is how long finished executions remain visible.
	Retention time.Duration `yaml:"retention"`

	// CleanupInterval is how often finished executions past retention are
	// removed.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

func (c Config) applyDefaults() Config {
	if c.Retention == 0 {
		c.Retention = 24 * time.Hour
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = 5 * time.Minute
	}
	return c
}
