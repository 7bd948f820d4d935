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

// Package shutdown ties process signals to a cancellable context and runs
// registered cleanups exactly once.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/uber/dagrun/utils/log"
)

// Handler cancels its context on SIGINT / SIGTERM or an explicit Shutdown.
type Handler struct {
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	cleanups []func() error
	once     sync.Once
	signals  chan os.Signal
}

// New creates a Handler deriving its context from ctx.
func New(ctx context.Context) *Handler {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handler{
		ctx:     ctx,
		cancel:  cancel,
		signals: make(chan os.Signal, 1),
	}
	signal.Notify(h.signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-h.signals:
			log.Infof("Received signal %v, shutting down", sig)
			h.Shutdown()
		case <-ctx.Done():
		}
		signal.Stop(h.signals)
	}()
	return h
}

// Context is cancelled once shutdown starts.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// AddCleanup registers fn to run on shutdown. Cleanups run in reverse order.
func (h *Handler) AddCleanup(fn func() error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cleanups = append(h.cleanups, fn)
}

// Shutdown cancels the context and runs cleanups. Safe to call repeatedly.
func (h *Handler) Shutdown() {
	h.once.Do(func() {
		h.cancel()

		h.mu.Lock()
		defer h.mu.Unlock()
		for i := len(h.cleanups) - 1; i >= 0; i-- {
			if err := h.cleanups[i](); err != nil {
				log.Errorf("Error during cleanup: %s", err)
			}
		}
	})
}
