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

// Package operrors defines the errors an operation body may return to steer
// the retry decision of the task that ran it.
//
//   - NonRecoverableError always fails the task, whatever its handler says.
//   - RecoverableError is retried, optionally after an explicit delay.
//   - OperationRetry is not a failure: the operation asks to be run again,
//     bypassing failure handlers and the retry budget.
//
// Any other error is "unclassified" and handled according to the graph's
// configuration.
package operrors

import (
	"errors"
	"fmt"
	"time"
)

// NonRecoverableError marks an operation failure which must not be retried.
type NonRecoverableError struct {
	Msg string
}

// NonRecoverable creates a NonRecoverableError.
func NonRecoverable(format string, args ...interface{}) error {
	return &NonRecoverableError{fmt.Sprintf(format, args...)}
}

func (e *NonRecoverableError) Error() string {
	return e.Msg
}

// RecoverableError marks an operation failure which may be retried. A
// positive RetryAfter overrides the task's retry interval.
type RecoverableError struct {
	Msg        string
	RetryAfter time.Duration
}

// Recoverable creates a RecoverableError using the task's retry interval.
func Recoverable(format string, args ...interface{}) error {
	return &RecoverableError{Msg: fmt.Sprintf(format, args...)}
}

// RecoverableAfter creates a RecoverableError retried after d.
func RecoverableAfter(d time.Duration, format string, args ...interface{}) error {
	return &RecoverableError{Msg: fmt.Sprintf(format, args...), RetryAfter: d}
}

func (e *RecoverableError) Error() string {
	return e.Msg
}

// OperationRetry is returned by an operation which explicitly requests to be
// executed again.
type OperationRetry struct {
	Msg        string
	RetryAfter time.Duration
}

// Retry creates an OperationRetry. A zero d uses the task's retry interval.
func Retry(d time.Duration, format string, args ...interface{}) error {
	return &OperationRetry{Msg: fmt.Sprintf(format, args...), RetryAfter: d}
}

func (e *OperationRetry) Error() string {
	return "operation retry: " + e.Msg
}

// IsNonRecoverable returns true if err wraps a NonRecoverableError.
func IsNonRecoverable(err error) bool {
	var e *NonRecoverableError
	return errors.As(err, &e)
}

// AsRecoverable returns the RecoverableError wrapped by err, if any.
func AsRecoverable(err error) (*RecoverableError, bool) {
	var e *RecoverableError
	ok := errors.As(err, &e)
	return e, ok
}

// AsOperationRetry returns the OperationRetry wrapped by err, if any.
func AsOperationRetry(err error) (*OperationRetry, bool) {
	var e *OperationRetry
	ok := errors.As(err, &e)
	return e, ok
}
