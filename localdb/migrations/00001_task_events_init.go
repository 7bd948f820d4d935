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
package migrations

import (
	"database/sql"

	"github.com/pressly/goose"
)

func init() {
	goose.AddMigration(up00001, down00001)
}

func up00001(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS task_event (
			id              integer   PRIMARY KEY AUTOINCREMENT,
			execution_id    text      NOT NULL,
			task_id         text      NOT NULL,
			info            text      NOT NULL,
			kind            text      NOT NULL,
			event_type      text      NOT NULL,
			state           text      NOT NULL,
			action          text      NOT NULL DEFAULT '',
			error           text      NOT NULL DEFAULT '',
			current_retries integer   NOT NULL,
			total_retries   integer   NOT NULL,
			containing      text      NOT NULL DEFAULT '',
			created_at      timestamp NOT NULL
		);
	`)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`
		CREATE INDEX IF NOT EXISTS task_event_execution_idx
		ON task_event (execution_id, id);
	`)
	return err
}

func down00001(tx *sql.Tx) error {
	_, err := tx.Exec(`DROP TABLE task_event;`)
	return err
}
