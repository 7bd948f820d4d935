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
	"errors"
	"time"

	"github.com/uber/dagrun/lib/operrors"
)

// Error kinds carried on the wire.
const (
	KindNonRecoverable = "non_recoverable"
	KindRecoverable    = "recoverable"
	KindOperationRetry = "operation_retry"
	KindError          = "error"
)

// ErrorInfo is the wire form of an operation error.
type ErrorInfo struct {
	Kind       string        `json:"kind"`
	Message    string        `json:"message"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// Reply is sent back by a worker once a message has been handled.
type Reply struct {
	ID    string      `json:"id"`
	Value interface{} `json:"value,omitempty"`
	Error *ErrorInfo  `json:"error,omitempty"`
}

// NewReply creates the reply to message id.
func NewReply(id string, value interface{}, err error) Reply {
	if err != nil {
		return Reply{ID: id, Error: EncodeError(err)}
	}
	return Reply{ID: id, Value: value}
}

// Result converts r back into the value and error of the remote operation.
func (r Reply) Result() (interface{}, error) {
	if r.Error != nil {
		return nil, DecodeError(r.Error)
	}
	return r.Value, nil
}

// EncodeError converts err into its wire form. Returns nil for a nil error.
func EncodeError(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	if e, ok := operrors.AsOperationRetry(err); ok {
		return &ErrorInfo{Kind: KindOperationRetry, Message: e.Msg, RetryAfter: e.RetryAfter}
	}
	if operrors.IsNonRecoverable(err) {
		return &ErrorInfo{Kind: KindNonRecoverable, Message: err.Error()}
	}
	if e, ok := operrors.AsRecoverable(err); ok {
		return &ErrorInfo{Kind: KindRecoverable, Message: err.Error(), RetryAfter: e.RetryAfter}
	}
	return &ErrorInfo{Kind: KindError, Message: err.Error()}
}

// DecodeError converts info back into an error of the matching operrors
// type. Returns nil for nil info.
func DecodeError(info *ErrorInfo) error {
	if info == nil {
		return nil
	}
	switch info.Kind {
	case KindOperationRetry:
		return &operrors.OperationRetry{Msg: info.Message, RetryAfter: info.RetryAfter}
	case KindNonRecoverable:
		return &operrors.NonRecoverableError{Msg: info.Message}
	case KindRecoverable:
		return &operrors.RecoverableError{Msg: info.Message, RetryAfter: info.RetryAfter}
	default:
		return errors.New(info.Message)
	}
}
