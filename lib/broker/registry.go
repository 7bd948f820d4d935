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
	"sort"
	"sync"

	"github.com/uber/dagrun/lib/operrors"
	"github.com/uber/dagrun/utils/log"
)

// ErrDuplicateHandler is returned when registering a name twice.
var ErrDuplicateHandler = errors.New("handler already registered")

// Handler executes a named operation on a worker.
type Handler interface {
	Handle(ctx context.Context, opctx OperationContext, payload map[string]interface{}) (interface{}, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, opctx OperationContext, payload map[string]interface{}) (interface{}, error)

// Handle calls f.
func (f HandlerFunc) Handle(
	ctx context.Context, opctx OperationContext, payload map[string]interface{}) (interface{}, error) {

	return f(ctx, opctx, payload)
}

// Registry maps operation names to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds h under name.
func (r *Registry) Register(name string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[name]; ok {
		return ErrDuplicateHandler
	}
	r.handlers[name] = h
	return nil
}

// Lookup returns the handler registered under name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[name]
	return h, ok
}

// Names returns all registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes msg with the handler registered for its target and returns the
// reply to send back. Unknown targets and panics produce non-recoverable
// errors.
func (r *Registry) Run(ctx context.Context, msg Message) (reply Reply) {
	h, ok := r.Lookup(msg.Target)
	if !ok {
		return NewReply(msg.ID, nil, operrors.NonRecoverable("unknown target %q", msg.Target))
	}
	defer func() {
		if p := recover(); p != nil {
			log.With("target", msg.Target, "task", msg.Context.TaskID).Errorf("Handler panic: %v", p)
			reply = NewReply(msg.ID, nil, operrors.NonRecoverable("handler panic: %v", p))
		}
	}()
	v, err := h.Handle(ctx, msg.Context, msg.Payload)
	if err != nil {
		return NewReply(msg.ID, nil, err)
	}
	return NewReply(msg.ID, v, nil)
}

