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

// Package redisbroker implements broker.Broker on top of redis lists.
//
// A message is LPUSHed as JSON onto "queue:<queue>". A worker RPOPs it, runs
// the registered handler and LPUSHes the encoded reply onto
// "result:<message id>", which expires after the configured TTL. The
// submitter polls the result list until the reply shows up.
package redisbroker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/andres-erbsen/clock"
	"github.com/gomodule/redigo/redis"
	"github.com/uber-go/tally"

	"github.com/uber/dagrun/lib/broker"
	"github.com/uber/dagrun/utils/backoff"
	"github.com/uber/dagrun/utils/log"
)

// ErrPayloadTooLarge is returned when an encoded message exceeds the
// configured maximum payload size.
var ErrPayloadTooLarge = errors.New("message payload too large")

func queueKey(queue string) string {
	return "queue:" + queue
}

func resultKey(id string) string {
	return "result:" + id
}

func newPool(config Config) (*redis.Pool, error) {
	if config.Addr == "" {
		return nil, errors.New("invalid config: missing addr")
	}
	pool := &redis.Pool{
		Dial: func() (redis.Conn, error) {
			return redis.Dial(
				"tcp",
				config.Addr,
				redis.DialConnectTimeout(config.DialTimeout),
				redis.DialReadTimeout(config.ReadTimeout),
				redis.DialWriteTimeout(config.WriteTimeout))
		},
		MaxIdle:     config.MaxIdleConns,
		MaxActive:   config.MaxActiveConns,
		IdleTimeout: config.IdleConnTimeout,
		Wait:        true,
	}

	// Ensure we can connect to Redis.
	c, err := pool.Dial()
	if err != nil {
		return nil, fmt.Errorf("dial redis: %s", err)
	}
	c.Close()

	return pool, nil
}

// Broker submits messages to redis queues.
type Broker struct {
	config  Config
	pool    *redis.Pool
	backoff *backoff.Backoff
	stats   tally.Scope
	clk     clock.Clock
}

// New creates a new Broker.
func New(config Config, stats tally.Scope, clk clock.Clock) (*Broker, error) {
	config.applyDefaults()

	pool, err := newPool(config)
	if err != nil {
		return nil, err
	}
	return &Broker{
		config:  config,
		pool:    pool,
		backoff: backoff.New(config.SubmitBackoff),
		stats: stats.Tagged(map[string]string{
			"module": "redisbroker",
		}),
		clk: clk,
	}, nil
}

// Close releases the connection pool.
func (b *Broker) Close() error {
	return b.pool.Close()
}

// Submit pushes msg onto its queue. Transient redis errors are retried with
// backoff.
func (b *Broker) Submit(ctx context.Context, msg broker.Message) (broker.AsyncResult, error) {
	if msg.Queue == "" {
		return nil, errors.New("message has no queue")
	}
	msg = msg.WithID()
	data, err := json.Marshal(msg)
	if err != nil {
		b.stats.Counter("submit_failure").Inc(1)
		return nil, fmt.Errorf("marshal message: %s", err)
	}
	if int64(len(data)) > int64(b.config.MaxPayloadSize.Bytes()) {
		b.stats.Counter("submit_failure").Inc(1)
		return nil, fmt.Errorf("%w: %d bytes exceeds %s",
			ErrPayloadTooLarge, len(data), b.config.MaxPayloadSize.HR())
	}
	err = b.backoff.Retry(ctx, func() error {
		c := b.pool.Get()
		defer c.Close()
		_, err := c.Do("LPUSH", queueKey(msg.Queue), data)
		return err
	})
	if err != nil {
		b.stats.Counter("submit_failure").Inc(1)
		return nil, fmt.Errorf("push message: %s", err)
	}
	b.stats.Counter("submitted").Inc(1)
	return &asyncResult{b: b, id: msg.ID}, nil
}

type asyncResult struct {
	b  *Broker
	id string
}

// Get polls the result list of the message until a reply arrives.
func (r *asyncResult) Get(ctx context.Context) (interface{}, error) {
	for {
		reply, ok, err := r.poll()
		if err != nil {
			log.With("message", r.id).Warnf("Error polling result: %s", err)
		} else if ok {
			return reply.Result()
		}
		select {
		case <-r.b.clk.After(r.b.config.PollInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (r *asyncResult) poll() (reply broker.Reply, ok bool, err error) {
	c := r.b.pool.Get()
	defer c.Close()

	data, err := redis.Bytes(c.Do("RPOP", resultKey(r.id)))
	if err == redis.ErrNil {
		return reply, false, nil
	} else if err != nil {
		return reply, false, err
	}
	if err := json.Unmarshal(data, &reply); err != nil {
		return reply, false, fmt.Errorf("unmarshal reply: %s", err)
	}
	return reply, true, nil
}
