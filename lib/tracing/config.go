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
package tracing

// Config defines tracing configuration.
type Config struct {
	Enabled bool `yaml:"enabled"`

	// ServiceName identifies spans of this process. Required if enabled.
	ServiceName string `yaml:"service_name"`

	// AgentHost and AgentPort locate the OTLP HTTP collector.
	AgentHost string `yaml:"agent_host"`
	AgentPort int    `yaml:"agent_port"`

	// SamplingRate is the fraction of root traces sampled, from 0 to 1.
	SamplingRate float64 `yaml:"sampling_rate"`
}

func (c Config) applyDefaults() Config {
	if c.AgentHost == "" {
		c.AgentHost = "localhost"
	}
	if c.AgentPort == 0 {
		c.AgentPort = 4318
	}
	if c.SamplingRate == 0 {
		c.SamplingRate = 0.1
	}
	return c
}
