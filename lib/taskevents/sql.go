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
package taskevents

import (
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/uber-go/tally"

	"github.com/uber/dagrun/lib/taskgraph"
	"github.com/uber/dagrun/utils/log"
)

type eventRow struct {
	ID             int64     `db:"id"`
	ExecutionID    string    `db:"execution_id"`
	TaskID         string    `db:"task_id"`
	Info           string    `db:"info"`
	Kind           string    `db:"kind"`
	EventType      string    `db:"event_type"`
	State          string    `db:"state"`
	Action         string    `db:"action"`
	Error          string    `db:"error"`
	CurrentRetries int       `db:"current_retries"`
	TotalRetries   int       `db:"total_retries"`
	Containing     string    `db:"containing"`
	CreatedAt      time.Time `db:"created_at"`
}

func newEventRow(e taskgraph.Event) eventRow {
	return eventRow{
		ExecutionID:    e.ExecutionID,
		TaskID:         e.Task.ID,
		Info:           e.Task.Info,
		Kind:           e.Task.Kind,
		EventType:      string(e.Type),
		State:          string(e.Task.State),
		Action:         string(e.Action),
		Error:          e.Task.Error,
		CurrentRetries: e.Task.CurrentRetries,
		TotalRetries:   e.Task.TotalRetries,
		Containing:     e.Task.Containing,
		CreatedAt:      e.Time,
	}
}

func (r eventRow) event() taskgraph.Event {
	return taskgraph.Event{
		Type:        taskgraph.EventType(r.EventType),
		Time:        r.CreatedAt,
		ExecutionID: r.ExecutionID,
		Action:      taskgraph.Action(r.Action),
		Task: taskgraph.Dump{
			ID:             r.TaskID,
			Info:           r.Info,
			Kind:           r.Kind,
			State:          taskgraph.State(r.State),
			Error:          r.Error,
			CurrentRetries: r.CurrentRetries,
			TotalRetries:   r.TotalRetries,
			Containing:     r.Containing,
		},
	}
}

// SQLRecorder persists events into the task_event table. Events are queued
// and inserted by a single writer goroutine, so Record never blocks on the
// database.
type SQLRecorder struct {
	db    *sqlx.DB
	stats tally.Scope

	mu     sync.RWMutex
	closed bool
	events chan taskgraph.Event
	done   chan struct{}
}

// NewSQLRecorder creates a SQLRecorder and starts its writer.
func NewSQLRecorder(db *sqlx.DB, bufferSize int, stats tally.Scope) *SQLRecorder {
	r := &SQLRecorder{
		db: db,
		stats: stats.Tagged(map[string]string{
			"module": "taskevents",
		}),
		events: make(chan taskgraph.Event, bufferSize),
		done:   make(chan struct{}),
	}
	go r.loop()
	return r
}

// Record implements taskgraph.EventRecorder.
func (r *SQLRecorder) Record(e taskgraph.Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.stats.Counter("dropped").Inc(1)
		return
	}
	select {
	case r.events <- e:
	default:
		r.stats.Counter("dropped").Inc(1)
	}
}

func (r *SQLRecorder) loop() {
	defer close(r.done)

	for e := range r.events {
		if err := r.insert(e); err != nil {
			log.With("execution", e.ExecutionID, "task", e.Task.ID).Errorf("Error inserting task event: %s", err)
			r.stats.Counter("insert_failure").Inc(1)
			continue
		}
		r.stats.Counter("inserted").Inc(1)
	}
}

func (r *SQLRecorder) insert(e taskgraph.Event) error {
	_, err := r.db.NamedExec(`
		INSERT INTO task_event (
			execution_id,
			task_id,
			info,
			kind,
			event_type,
			state,
			action,
			error,
			current_retries,
			total_retries,
			containing,
			created_at
		) VALUES (
			:execution_id,
			:task_id,
			:info,
			:kind,
			:event_type,
			:state,
			:action,
			:error,
			:current_retries,
			:total_retries,
			:containing,
			:created_at
		)`, newEventRow(e))
	return err
}

// ListByExecution returns the stored events of an execution in recording
// order.
func (r *SQLRecorder) ListByExecution(executionID string) ([]taskgraph.Event, error) {
	var rows []eventRow
	err := r.db.Select(&rows, `
		SELECT * FROM task_event WHERE execution_id=? ORDER BY id`, executionID)
	if err != nil {
		return nil, fmt.Errorf("select: %s", err)
	}
	events := make([]taskgraph.Event, len(rows))
	for i, row := range rows {
		events[i] = row.event()
	}
	return events, nil
}

// Close stops accepting events and waits until queued events are written.
func (r *SQLRecorder) Close() error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.events)
	}
	r.mu.Unlock()

	<-r.done
	return nil
}
