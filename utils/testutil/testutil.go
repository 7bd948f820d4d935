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
package testutil

import (
	"fmt"
	"time"
)

// PollUntilTrue calls f until it returns true, or returns an error once
// timeout elapses.
func PollUntilTrue(timeout time.Duration, f func() bool) error {
	deadline := time.Now().Add(timeout)
	for {
		if f() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out after %.2f seconds", timeout.Seconds())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Cleanup collects teardown functions for fixtures which build several
// resources. Use with defer cleanup.Recover() so a panicking fixture releases
// whatever it already acquired.
type Cleanup struct {
	funcs []func()
}

// Add registers f to run on cleanup.
func (c *Cleanup) Add(f ...func()) {
	c.funcs = append(c.funcs, f...)
}

// Recover runs all cleanup functions if the caller is panicking, then
// re-panics.
func (c *Cleanup) Recover() {
	if err := recover(); err != nil {
		c.Run()
		panic(err)
	}
}

// Run runs all cleanup functions in reverse registration order.
func (c *Cleanup) Run() {
	for i := len(c.funcs) - 1; i >= 0; i-- {
		c.funcs[i]()
	}
}
