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
	"io"

	"github.com/uber/dagrun/lib/taskgraph"
	"github.com/uber/dagrun/utils/errutil"
)

// Multi fans events out to several recorders.
type Multi []taskgraph.EventRecorder

// Record implements taskgraph.EventRecorder.
func (m Multi) Record(e taskgraph.Event) {
	for _, r := range m {
		r.Record(e)
	}
}

// Close closes every recorder which is an io.Closer.
func (m Multi) Close() error {
	var errs []error
	for _, r := range m {
		if c, ok := r.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errutil.Join(errs)
}
