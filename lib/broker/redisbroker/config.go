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
package redisbroker

import (
	"time"

	"github.com/c2h5oh/datasize"

	"github.com/uber/dagrun/utils/backoff"
)

// Config defines the redis connection and the queue protocol parameters
// shared by Broker and Worker.
type Config struct {
	Addr            string        `yaml:"addr"`
	DialTimeout     time.Duration `yaml:"dial_timeout"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxActiveConns  int           `yaml:"max_active_conns"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`

	// PollInterval is how often empty queues and pending results are
	// polled.
	PollInterval time.Duration `yaml:"poll_interval"`

	// ResultTTL bounds how long an unclaimed reply stays in redis.
	ResultTTL time.Duration `yaml:"result_ttl"`

	MaxPayloadSize datasize.ByteSize `yaml:"max_payload_size"`

	SubmitBackoff backoff.Config `yaml:"submit_backoff"`

	// NumWorkers is the number of concurrent consumers a Worker runs.
	NumWorkers int `yaml:"num_workers"`
}

func (c *Config) applyDefaults() {
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 10
	}
	if c.MaxActiveConns == 0 {
		c.MaxActiveConns = 100
	}
	if c.IdleConnTimeout == 0 {
		c.IdleConnTimeout = 60 * time.Second
	}
	if c.PollInterval == 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.ResultTTL == 0 {
		c.ResultTTL = 24 * time.Hour
	}
	if c.MaxPayloadSize == 0 {
		c.MaxPayloadSize = datasize.MB
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = 4
	}
}
