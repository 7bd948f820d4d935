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

// Package workerpool runs the bodies of local tasks on a bounded set of
// goroutines consuming a shared job queue.
package workerpool

import (
	"context"
	"errors"
	"sync"

	"github.com/uber-go/tally"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"github.com/uber/dagrun/utils/log"
)

// ErrPoolClosed is returned when Submit is called on a closed pool.
var ErrPoolClosed = errors.New("worker pool closed")

// Pool is a bounded worker pool.
type Pool struct {
	config  Config
	stats   tally.Scope
	jobs    chan func()
	limiter *rate.Limiter

	wg        sync.WaitGroup
	closeOnce sync.Once
	done      chan struct{}
	closed    atomic.Bool
	busy      atomic.Int64
}

// New creates a Pool and starts its workers.
func New(config Config, stats tally.Scope) *Pool {
	config = config.applyDefaults()
	stats = stats.Tagged(map[string]string{
		"module": "workerpool",
	})
	p := &Pool{
		config: config,
		stats:  stats,
		jobs:   make(chan func(), config.QueueSize),
		done:   make(chan struct{}),
	}
	if config.MaxTaskThroughput > 0 {
		p.limiter = rate.NewLimiter(rate.Every(config.MaxTaskThroughput), 1)
	}
	for i := 0; i < config.NumWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit enqueues job. It blocks while the queue is full and returns the
// context error if ctx ends first.
func (p *Pool) Submit(ctx context.Context, job func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	select {
	case p.jobs <- job:
		p.stats.Counter("queued").Inc(1)
		return nil
	case <-p.done:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Busy returns the number of jobs currently running.
func (p *Pool) Busy() int {
	return int(p.busy.Load())
}

// Close stops accepting jobs, runs what is already queued, and waits for the
// workers to exit. Jobs submitted concurrently with Close may be dropped.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.done)
		p.wg.Wait()
	})
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case job := <-p.jobs:
			p.run(job)
		case <-p.done:
			for {
				select {
				case job := <-p.jobs:
					p.run(job)
				default:
					return
				}
			}
		}
	}
}

func (p *Pool) run(job func()) {
	if p.limiter != nil {
		p.limiter.Wait(context.Background())
	}
	p.busy.Inc()
	timer := p.stats.Timer("job").Start()
	defer func() {
		timer.Stop()
		p.busy.Dec()
		// A panicking job must not take the worker down with it.
		if r := recover(); r != nil {
			p.stats.Counter("panics").Inc(1)
			log.Errorf("Recovered panic in worker job: %v", r)
		}
	}()
	job()
}
