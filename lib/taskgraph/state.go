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
package taskgraph

// State is the lifecycle state of a Task.
type State string

// Task states. Rescheduled, Succeeded and Failed are terminal.
const (
	Pending     State = "pending"
	Sending     State = "sending"
	Sent        State = "sent"
	Started     State = "started"
	Rescheduled State = "rescheduled"
	Succeeded   State = "succeeded"
	Failed      State = "failed"
)

// Valid returns true if s is a known state.
func (s State) Valid() bool {
	switch s {
	case Pending, Sending, Sent, Started, Rescheduled, Succeeded, Failed:
		return true
	}
	return false
}

// Terminal returns true if no further transitions are possible from s.
func (s State) Terminal() bool {
	return s == Rescheduled || s == Succeeded || s == Failed
}
