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
	"context"
	"encoding/json"
	"fmt"

	"github.com/andres-erbsen/clock"
	"github.com/gomodule/redigo/redis"
	"github.com/uber-go/tally"
	"golang.org/x/sync/errgroup"

	"github.com/uber/dagrun/lib/broker"
	"github.com/uber/dagrun/utils/log"
)

// Worker consumes messages from redis queues and runs them against a
// broker.Registry.
type Worker struct {
	config   Config
	pool     *redis.Pool
	registry *broker.Registry
	queues   []string
	stats    tally.Scope
	clk      clock.Clock
}

// NewWorker creates a Worker consuming queues. Queues are polled in order, so
// earlier queues take priority.
func NewWorker(
	config Config,
	registry *broker.Registry,
	queues []string,
	stats tally.Scope,
	clk clock.Clock) (*Worker, error) {

	config.applyDefaults()

	if len(queues) == 0 {
		return nil, fmt.Errorf("no queues to consume")
	}
	pool, err := newPool(config)
	if err != nil {
		return nil, err
	}
	return &Worker{
		config:   config,
		pool:     pool,
		registry: registry,
		queues:   queues,
		stats: stats.Tagged(map[string]string{
			"module": "redisworker",
		}),
		clk: clk,
	}, nil
}

// Run consumes messages until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	log.Infof("Consuming queues %v with %d workers", w.queues, w.config.NumWorkers)
	defer w.pool.Close()

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.config.NumWorkers; i++ {
		g.Go(func() error {
			w.loop(ctx)
			return nil
		})
	}
	return g.Wait()
}

func (w *Worker) loop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		data, err := w.next()
		if err != nil {
			log.Errorf("Error fetching message: %s", err)
		}
		if data == nil {
			select {
			case <-w.clk.After(w.config.PollInterval):
			case <-ctx.Done():
				return
			}
			continue
		}
		w.handle(ctx, data)
	}
}

func (w *Worker) next() ([]byte, error) {
	c := w.pool.Get()
	defer c.Close()

	for _, q := range w.queues {
		data, err := redis.Bytes(c.Do("RPOP", queueKey(q)))
		if err == redis.ErrNil {
			continue
		} else if err != nil {
			return nil, err
		}
		return data, nil
	}
	return nil, nil
}

func (w *Worker) handle(ctx context.Context, data []byte) {
	var msg broker.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		w.stats.Counter("malformed").Inc(1)
		log.Errorf("Dropping malformed message: %s", err)
		return
	}
	w.stats.Counter("consumed").Inc(1)

	timer := w.stats.Timer("handle").Start()
	reply := w.registry.Run(ctx, msg)
	timer.Stop()

	if err := w.reply(reply); err != nil {
		w.stats.Counter("reply_failure").Inc(1)
		log.With("message", msg.ID, "target", msg.Target).Errorf("Error sending reply: %s", err)
	}
}

func (w *Worker) reply(reply broker.Reply) error {
	data, err := json.Marshal(reply)
	if err != nil {
		// The handler returned a value which cannot be encoded.
		data, err = json.Marshal(broker.NewReply(
			reply.ID, nil, fmt.Errorf("marshal reply value: %s", err)))
		if err != nil {
			return err
		}
	}
	c := w.pool.Get()
	defer c.Close()

	k := resultKey(reply.ID)
	if _, err := c.Do("LPUSH", k, data); err != nil {
		return err
	}
	if _, err := c.Do("EXPIRE", k, int64(w.config.ResultTTL.Seconds())); err != nil {
		return err
	}
	return nil
}
