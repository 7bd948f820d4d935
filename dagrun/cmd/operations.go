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
package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/uber/dagrun/lib/broker"
	"github.com/uber/dagrun/lib/operrors"
	"github.com/uber/dagrun/utils/log"
)

// registerOperations adds the built-in operations to r. They are available
// both as local operations and to workers.
func registerOperations(r *broker.Registry) error {
	ops := map[string]broker.HandlerFunc{
		"log":   logOperation,
		"sleep": sleepOperation,
		"shell": shellOperation,
		"fail":  failOperation,
	}
	for name, op := range ops {
		if err := r.Register(name, op); err != nil {
			return fmt.Errorf("register %s: %s", name, err)
		}
	}
	return nil
}

func stringArg(payload map[string]interface{}, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// logOperation logs args.message.
func logOperation(
	_ context.Context, opctx broker.OperationContext, payload map[string]interface{}) (interface{}, error) {

	msg := stringArg(payload, "message")
	log.With(
		"execution", opctx.ExecutionID,
		"task", opctx.TaskID,
		"retry", opctx.RetryNumber).Info(msg)
	return msg, nil
}

// sleepOperation sleeps for args.duration.
func sleepOperation(
	ctx context.Context, _ broker.OperationContext, payload map[string]interface{}) (interface{}, error) {

	d, err := time.ParseDuration(stringArg(payload, "duration"))
	if err != nil {
		return nil, operrors.NonRecoverable("duration: %s", err)
	}
	select {
	case <-time.After(d):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// shellOperation runs args.command with sh. A non-zero exit status is
// retried according to the retry policy of the task.
func shellOperation(
	ctx context.Context, opctx broker.OperationContext, payload map[string]interface{}) (interface{}, error) {

	command := stringArg(payload, "command")
	if command == "" {
		return nil, operrors.NonRecoverable("command required")
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Env = append(os.Environ(),
		"DAGRUN_EXECUTION="+opctx.ExecutionID,
		"DAGRUN_TASK="+opctx.TaskID,
		"DAGRUN_RETRY="+strconv.Itoa(opctx.RetryNumber))
	if dir := stringArg(payload, "dir"); dir != "" {
		cmd.Dir = dir
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			return nil, operrors.NonRecoverable("start %q: %s", command, err)
		}
		return nil, fmt.Errorf("%q: %s: %s", command, err, strings.TrimSpace(out.String()))
	}
	return strings.TrimSpace(out.String()), nil
}

// failOperation fails with args.message. args.kind selects how the failure
// is classified: non_recoverable (default), recoverable or retry, the
// latter two waiting args.retry_after.
func failOperation(
	_ context.Context, _ broker.OperationContext, payload map[string]interface{}) (interface{}, error) {

	msg := stringArg(payload, "message")
	if msg == "" {
		msg = "failed on purpose"
	}
	var after time.Duration
	if s := stringArg(payload, "retry_after"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, operrors.NonRecoverable("retry_after: %s", err)
		}
		after = d
	}
	switch kind := stringArg(payload, "kind"); kind {
	case "", "non_recoverable":
		return nil, operrors.NonRecoverable("%s", msg)
	case "recoverable":
		return nil, operrors.RecoverableAfter(after, "%s", msg)
	case "retry":
		return nil, operrors.Retry(after, "%s", msg)
	default:
		return nil, operrors.NonRecoverable("unknown failure kind %q", kind)
	}
}
