package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/uber/dagrun/lib/broker"
	"github.com/uber/dagrun/lib/operrors"
)

var testOpctx = broker.OperationContext{
	ExecutionID: "exec",
	TaskID:      "task",
	Info:        "node.shell",
	RetryNumber: 3,
}

func TestRegisterOperations(t *testing.T) {
	require := require.New(t)

	r := broker.NewRegistry()
	require.NoError(registerOperations(r))
	require.Equal([]string{"fail", "log", "shell", "sleep"}, r.Names())
	require.Error(registerOperations(r))
}

func TestLogOperation(t *testing.T) {
	v, err := logOperation(context.Background(), testOpctx, map[string]interface{}{"message": "hello"})
	require.NoError(t, err)
	require.Equal(t, "hello", v)
}

func TestSleepOperation(t *testing.T) {
	t.Run("sleeps", func(t *testing.T) {
		start := time.Now()
		_, err := sleepOperation(context.Background(), testOpctx, map[string]interface{}{"duration": "20ms"})
		require.NoError(t, err)
		require.True(t, time.Since(start) >= 20*time.Millisecond)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := sleepOperation(ctx, testOpctx, map[string]interface{}{"duration": "1h"})
		require.Equal(t, context.Canceled, err)
	})

	t.Run("invalid duration", func(t *testing.T) {
		_, err := sleepOperation(context.Background(), testOpctx, map[string]interface{}{"duration": "soon"})
		require.True(t, operrors.IsNonRecoverable(err))
	})
}

func TestShellOperation(t *testing.T) {
	t.Run("output and environment", func(t *testing.T) {
		v, err := shellOperation(context.Background(), testOpctx, map[string]interface{}{
			"command": "echo $DAGRUN_EXECUTION $DAGRUN_TASK $DAGRUN_RETRY",
		})
		require.NoError(t, err)
		require.Equal(t, "exec task 3", v)
	})

	t.Run("working directory", func(t *testing.T) {
		dir := t.TempDir()
		v, err := shellOperation(context.Background(), testOpctx, map[string]interface{}{
			"command": "pwd -P",
			"dir":     dir,
		})
		require.NoError(t, err)
		require.Contains(t, v, dir[len(dir)-8:])
	})

	t.Run("non-zero exit is retryable", func(t *testing.T) {
		_, err := shellOperation(context.Background(), testOpctx, map[string]interface{}{
			"command": "echo broken >&2; exit 3",
		})
		require.Error(t, err)
		require.False(t, operrors.IsNonRecoverable(err))
		require.Contains(t, err.Error(), "broken")
	})

	t.Run("missing command", func(t *testing.T) {
		_, err := shellOperation(context.Background(), testOpctx, nil)
		require.True(t, operrors.IsNonRecoverable(err))
	})
}

func TestFailOperation(t *testing.T) {
	tests := []struct {
		desc    string
		payload map[string]interface{}
		check   func(t *testing.T, err error)
	}{
		{
			"default",
			nil,
			func(t *testing.T, err error) {
				require.True(t, operrors.IsNonRecoverable(err))
				require.Equal(t, "failed on purpose", err.Error())
			},
		}, {
			"recoverable",
			map[string]interface{}{"kind": "recoverable", "retry_after": "5s"},
			func(t *testing.T, err error) {
				rerr, ok := operrors.AsRecoverable(err)
				require.True(t, ok)
				require.Equal(t, 5*time.Second, rerr.RetryAfter)
			},
		}, {
			"operation retry",
			map[string]interface{}{"kind": "retry", "message": "again"},
			func(t *testing.T, err error) {
				rerr, ok := operrors.AsOperationRetry(err)
				require.True(t, ok)
				require.Equal(t, "again", rerr.Msg)
			},
		}, {
			"unknown kind",
			map[string]interface{}{"kind": "weird"},
			func(t *testing.T, err error) {
				require.True(t, operrors.IsNonRecoverable(err))
			},
		}, {
			"invalid retry_after",
			map[string]interface{}{"kind": "retry", "retry_after": "later"},
			func(t *testing.T, err error) {
				require.True(t, operrors.IsNonRecoverable(err))
			},
		},
	}
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			_, err := failOperation(context.Background(), testOpctx, test.payload)
			require.Error(t, err)
			test.check(t, err)
		})
	}
}
