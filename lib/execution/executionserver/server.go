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
// Package executionserver exposes an execution Controller over HTTP.
package executionserver

import (
	"context"
	"fmt"
	"io/ioutil"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/uber-go/tally"

	"github.com/uber/dagrun/lib/execution"
	"github.com/uber/dagrun/lib/middleware"
	"github.com/uber/dagrun/lib/plan"
	"github.com/uber/dagrun/lib/taskgraph"
	"github.com/uber/dagrun/lib/tracing"
	"github.com/uber/dagrun/utils/handler"
	"github.com/uber/dagrun/utils/listener"
	"github.com/uber/dagrun/utils/log"
)

// BuildFunc builds the graph of a submitted plan.
type BuildFunc func(p plan.Plan) (*taskgraph.Graph, error)

// EventStore lists the recorded events of an execution.
type EventStore interface {
	ListByExecution(executionID string) ([]taskgraph.Event, error)
}

// Server serves the execution API.
type Server struct {
	config     Config
	stats      tally.Scope
	controller *execution.Controller
	build      BuildFunc
	events     EventStore
}

// New creates a new Server. events may be nil, in which case the events
// endpoint responds 404.
func New(
	config Config,
	stats tally.Scope,
	controller *execution.Controller,
	build BuildFunc,
	events EventStore) *Server {

	stats = stats.Tagged(map[string]string{
		"module": "executionserver",
	})
	return &Server{config.applyDefaults(), stats, controller, build, events}
}

// Handler returns the HTTP handler of s.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(tracing.HTTPMiddleware("dagrun"))
	r.Use(middleware.HitCounter(s.stats))
	r.Use(middleware.LatencyTimer(s.stats))

	r.Get("/health", handler.Wrap(s.healthHandler))
	r.Get("/executions", handler.Wrap(s.listHandler))
	r.Post("/executions", handler.Wrap(s.startHandler))
	r.Get("/executions/{id}", handler.Wrap(s.getHandler))
	r.Get("/executions/{id}/events", handler.Wrap(s.eventsHandler))
	r.Post("/executions/{id}/cancel", handler.Wrap(s.cancelHandler))

	return r
}

// ListenAndServe serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	log.Infof("Starting execution server on %s", s.config.Listener)
	return listener.Serve(ctx, s.config.Listener, s.Handler())
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) error {
	fmt.Fprintln(w, "OK")
	return nil
}

func (s *Server) listHandler(w http.ResponseWriter, r *http.Request) error {
	return handler.WriteJSON(w, s.controller.List())
}

func (s *Server) startHandler(w http.ResponseWriter, r *http.Request) error {
	body, err := ioutil.ReadAll(http.MaxBytesReader(w, r.Body, int64(s.config.MaxPlanSize.Bytes())))
	if err != nil {
		return handler.Errorf("read plan: %s", err).Status(http.StatusBadRequest)
	}
	p, err := plan.Parse(body)
	if err != nil {
		return handler.Errorf("plan: %s", err).Status(http.StatusBadRequest)
	}
	g, err := s.build(p)
	if err != nil {
		return handler.Errorf("build: %s", err).Status(http.StatusBadRequest)
	}
	id, err := s.controller.Start(p.Name, g)
	switch err {
	case nil:
	case execution.ErrExecutionExists:
		return handler.Errorf("%s", err).Status(http.StatusConflict)
	case execution.ErrTooManyRunning, execution.ErrControllerClosed:
		return handler.Errorf("%s", err).Status(http.StatusServiceUnavailable)
	default:
		return handler.Errorf("start: %s", err)
	}
	info, err := s.controller.Get(id)
	if err != nil {
		return handler.Errorf("get: %s", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	return handler.WriteJSON(w, info)
}

func (s *Server) getHandler(w http.ResponseWriter, r *http.Request) error {
	info, err := s.controller.Get(chi.URLParam(r, "id"))
	if err == execution.ErrExecutionNotFound {
		return handler.ErrorStatus(http.StatusNotFound)
	} else if err != nil {
		return handler.Errorf("get: %s", err)
	}
	return handler.WriteJSON(w, info)
}

func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) error {
	if s.events == nil {
		return handler.Errorf("event store not configured").Status(http.StatusNotFound)
	}
	events, err := s.events.ListByExecution(chi.URLParam(r, "id"))
	if err != nil {
		return handler.Errorf("list events: %s", err)
	}
	return handler.WriteJSON(w, events)
}

func (s *Server) cancelHandler(w http.ResponseWriter, r *http.Request) error {
	err := s.controller.Cancel(chi.URLParam(r, "id"))
	if err == execution.ErrExecutionNotFound {
		return handler.ErrorStatus(http.StatusNotFound)
	} else if err != nil {
		return handler.Errorf("cancel: %s", err)
	}
	w.WriteHeader(http.StatusAccepted)
	return nil
}
