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
package executionserver

import (
	"github.com/c2h5oh/datasize"

	"github.com/uber/dagrun/utils/listener"
)

// Config defines Server configuration.
type Config struct {
	Listener listener.Config `yaml:"listener"`

	// MaxPlanSize limits the body of plan submissions.
	MaxPlanSize datasize.ByteSize `yaml:"max_plan_size"`
}

func (c Config) applyDefaults() Config {
	if c.MaxPlanSize == 0 {
		c.MaxPlanSize = datasize.MB
	}
	return c
}
