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
package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/uber/dagrun/utils/log"
)

// Error is an HTTP error carrying its status code.
type Error struct {
	status int
	msg    string
}

// Errorf creates a 500 Error.
func Errorf(format string, args ...interface{}) *Error {
	return &Error{
		status: http.StatusInternalServerError,
		msg:    fmt.Sprintf(format, args...),
	}
}

// ErrorStatus creates an Error with status s and no message.
func ErrorStatus(s int) *Error {
	return Errorf("").Status(s)
}

// Status sets the status code of e.
func (e *Error) Status(s int) *Error {
	e.status = s
	return e
}

// GetStatus returns the status code of e.
func (e *Error) GetStatus() int {
	return e.status
}

func (e *Error) Error() string {
	if e.msg == "" {
		return fmt.Sprintf("server error %d", e.status)
	}
	return fmt.Sprintf("server error %d: %s", e.status, e.msg)
}

// ErrHandler is an http handler which may fail.
type ErrHandler func(http.ResponseWriter, *http.Request) error

// Wrap converts h into an http.HandlerFunc, writing returned errors as the
// response status and body.
func Wrap(h ErrHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}
		status := http.StatusInternalServerError
		msg := err.Error()
		if e, ok := err.(*Error); ok {
			status = e.status
			msg = e.msg
		}
		w.WriteHeader(status)
		w.Write([]byte(msg))
		if status >= 500 {
			log.Errorf("%d %s %s %s", status, r.Method, r.URL.Path, msg)
		}
	}
}

// WriteJSON encodes v as the response body.
func WriteJSON(w http.ResponseWriter, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return Errorf("json encode: %s", err)
	}
	return nil
}
