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
package cmd

import (
	"go.uber.org/zap"

	"github.com/uber/dagrun/lib/broker/redisbroker"
	"github.com/uber/dagrun/lib/execution"
	"github.com/uber/dagrun/lib/execution/executionserver"
	"github.com/uber/dagrun/lib/taskevents"
	"github.com/uber/dagrun/lib/taskgraph"
	"github.com/uber/dagrun/lib/tracing"
	"github.com/uber/dagrun/lib/workerpool"
	"github.com/uber/dagrun/metrics"
	"github.com/uber/dagrun/utils/backoff"
)

// Config defines dagrun configuration.
type Config struct {
	ZapLogging zap.Config             `yaml:"zap"`
	Metrics    metrics.Config         `yaml:"metrics"`
	Tracing    tracing.Config         `yaml:"tracing"`
	Graph      taskgraph.Config       `yaml:"graph"`
	WorkerPool workerpool.Config      `yaml:"workerpool"`
	Redis      redisbroker.Config     `yaml:"redis"`
	Events     taskevents.Config      `yaml:"events"`
	Execution  execution.Config       `yaml:"execution"`
	Server     executionserver.Config `yaml:"server"`

	// Client configures retries of the submit, status, cancel and list
	// commands.
	Client backoff.Config `yaml:"client"`
}
