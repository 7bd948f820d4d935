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

// Package backoff is a configuration wrapper around cenkalti/backoff.
package backoff

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
)

// Config defines backoff configuration.
type Config struct {
	Min          time.Duration `yaml:"min"`
	Max          time.Duration `yaml:"max"`
	Factor       float64       `yaml:"factor"`
	RetryTimeout time.Duration `yaml:"retry_timeout"`
	NoJitter     bool          `yaml:"no_jitter"`
}

func (c Config) applyDefaults() Config {
	if c.Min == 0 {
		c.Min = 100 * time.Millisecond
	}
	if c.Max == 0 {
		c.Max = 5 * time.Second
	}
	if c.Factor == 0 {
		c.Factor = 2
	}
	if c.RetryTimeout == 0 {
		c.RetryTimeout = 30 * time.Second
	}
	return c
}

// Backoff retries operations with exponential backoff.
type Backoff struct {
	config Config
}

// New creates a new Backoff.
func New(config Config) *Backoff {
	return &Backoff{config.applyDefaults()}
}

func (b *Backoff) exponential() *backoff.ExponentialBackOff {
	e := backoff.NewExponentialBackOff()
	e.InitialInterval = b.config.Min
	e.MaxInterval = b.config.Max
	e.Multiplier = b.config.Factor
	e.MaxElapsedTime = b.config.RetryTimeout
	if b.config.NoJitter {
		e.RandomizationFactor = 0
	}
	e.Reset()
	return e
}

// Retry runs f until it succeeds, returns an error wrapped by Permanent, the
// retry timeout elapses, or ctx is done. The last error of f is returned.
func (b *Backoff) Retry(ctx context.Context, f func() error) error {
	return backoff.Retry(f, backoff.WithContext(b.exponential(), ctx))
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
