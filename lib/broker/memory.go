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
package broker

import (
	"context"
	"errors"
	"sync"

	"github.com/uber-go/tally"
	"go.uber.org/atomic"
)

// ErrBrokerClosed is returned when submitting to a closed broker.
var ErrBrokerClosed = errors.New("broker closed")

// MemoryBroker runs every message in its own goroutine against a Registry,
// passing replies through the same encoding a remote worker would use.
type MemoryBroker struct {
	registry *Registry
	stats    tally.Scope
	wg       sync.WaitGroup
	closed   atomic.Bool
}

// NewMemoryBroker creates a new MemoryBroker.
func NewMemoryBroker(registry *Registry, stats tally.Scope) *MemoryBroker {
	return &MemoryBroker{
		registry: registry,
		stats: stats.Tagged(map[string]string{
			"module": "memorybroker",
		}),
	}
}

// Submit runs msg asynchronously.
func (b *MemoryBroker) Submit(ctx context.Context, msg Message) (AsyncResult, error) {
	if b.closed.Load() {
		b.stats.Counter("submit_failure").Inc(1)
		return nil, ErrBrokerClosed
	}
	if err := ctx.Err(); err != nil {
		b.stats.Counter("submit_failure").Inc(1)
		return nil, err
	}
	msg = msg.WithID()
	r := &memoryResult{done: make(chan struct{})}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer close(r.done)
		b.stats.Counter("consumed").Inc(1)
		r.reply = b.registry.Run(context.Background(), msg)
	}()
	b.stats.Counter("submitted").Inc(1)
	return r, nil
}

// Close rejects further messages and waits for running ones.
func (b *MemoryBroker) Close() {
	b.closed.Store(true)
	b.wg.Wait()
}

type memoryResult struct {
	done  chan struct{}
	reply Reply
}

func (r *memoryResult) Get(ctx context.Context) (interface{}, error) {
	select {
	case <-r.done:
		return r.reply.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
