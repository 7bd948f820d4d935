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
// Package taskevents records the history of task state changes and handler
// decisions for diagnostics. It does not persist graphs.
package taskevents

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/uber-go/tally"

	"github.com/uber/dagrun/lib/taskgraph"
	"github.com/uber/dagrun/localdb"
	"github.com/uber/dagrun/utils/log"
)

// Recorder is the set of recorders built from a Config.
type Recorder struct {
	Multi

	// SQL is nil unless a database source is configured.
	SQL *SQLRecorder

	db *sqlx.DB
}

var _ taskgraph.EventRecorder = (*Recorder)(nil)

// New builds the recorders enabled in config.
func New(config Config, stats tally.Scope) (*Recorder, error) {
	config = config.applyDefaults()

	r := &Recorder{}
	if !config.Log.Disable {
		logger, err := log.New(config.Log, nil)
		if err != nil {
			return nil, fmt.Errorf("event logger: %s", err)
		}
		r.Multi = append(r.Multi, NewLogRecorder(logger))
	}
	if config.Database.Source != "" {
		db, err := localdb.New(config.Database)
		if err != nil {
			return nil, fmt.Errorf("event database: %s", err)
		}
		r.db = db
		r.SQL = NewSQLRecorder(db, config.BufferSize, stats)
		r.Multi = append(r.Multi, r.SQL)
	}
	return r, nil
}

// Close flushes all recorders and closes the database.
func (r *Recorder) Close() error {
	err := r.Multi.Close()
	if r.db != nil {
		if cerr := r.db.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
