package redisbroker

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis"
	"github.com/andres-erbsen/clock"
	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"

	"github.com/uber/dagrun/lib/broker"
	"github.com/uber/dagrun/lib/operrors"
)

func testConfig(addr string) Config {
	return Config{
		Addr:         addr,
		PollInterval: 5 * time.Millisecond,
		ResultTTL:    time.Minute,
		NumWorkers:   2,
	}
}

func testRegistry(t *testing.T) *broker.Registry {
	r := broker.NewRegistry()
	require.NoError(t, r.Register("add", broker.HandlerFunc(
		func(ctx context.Context, opctx broker.OperationContext, p map[string]interface{}) (interface{}, error) {
			return p["a"].(float64) + p["b"].(float64), nil
		})))
	require.NoError(t, r.Register("retry", broker.HandlerFunc(
		func(ctx context.Context, opctx broker.OperationContext, p map[string]interface{}) (interface{}, error) {
			return nil, operrors.Retry(2*time.Second, "retry %d of %s", opctx.RetryNumber, opctx.Info)
		})))
	return r
}

func startWorker(t *testing.T, config Config, queues ...string) func() {
	w, err := NewWorker(config, testRegistry(t), queues, tally.NoopScope, clock.New())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- w.Run(ctx) }()
	return func() {
		cancel()
		require.NoError(t, <-done)
	}
}

func TestSubmitAndGet(t *testing.T) {
	require := require.New(t)

	s, err := miniredis.Run()
	require.NoError(err)
	defer s.Close()

	config := testConfig(s.Addr())
	stop := startWorker(t, config, "default")
	defer stop()

	b, err := New(config, tally.NoopScope, clock.New())
	require.NoError(err)
	defer b.Close()

	res, err := b.Submit(context.Background(), broker.Message{
		Queue:   "default",
		Target:  "add",
		Payload: map[string]interface{}{"a": 1, "b": 2},
	})
	require.NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v, err := res.Get(ctx)
	require.NoError(err)
	require.Equal(float64(3), v)
}

func TestOperationRetryCrossesTheWire(t *testing.T) {
	require := require.New(t)

	s, err := miniredis.Run()
	require.NoError(err)
	defer s.Close()

	config := testConfig(s.Addr())
	stop := startWorker(t, config, "default")
	defer stop()

	b, err := New(config, tally.NoopScope, clock.New())
	require.NoError(err)
	defer b.Close()

	res, err := b.Submit(context.Background(), broker.Message{
		Queue:   "default",
		Target:  "retry",
		Context: broker.OperationContext{Info: "configure", RetryNumber: 4},
	})
	require.NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = res.Get(ctx)
	e, ok := operrors.AsOperationRetry(err)
	require.True(ok)
	require.Equal("retry 4 of configure", e.Msg)
	require.Equal(2*time.Second, e.RetryAfter)
}

func TestUnknownTargetIsNonRecoverable(t *testing.T) {
	require := require.New(t)

	s, err := miniredis.Run()
	require.NoError(err)
	defer s.Close()

	config := testConfig(s.Addr())
	stop := startWorker(t, config, "default")
	defer stop()

	b, err := New(config, tally.NoopScope, clock.New())
	require.NoError(err)
	defer b.Close()

	res, err := b.Submit(context.Background(), broker.Message{Queue: "default", Target: "nope"})
	require.NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = res.Get(ctx)
	require.True(operrors.IsNonRecoverable(err))
}

func TestGetTimesOutWithoutWorker(t *testing.T) {
	require := require.New(t)

	s, err := miniredis.Run()
	require.NoError(err)
	defer s.Close()

	b, err := New(testConfig(s.Addr()), tally.NoopScope, clock.New())
	require.NoError(err)
	defer b.Close()

	res, err := b.Submit(context.Background(), broker.Message{Queue: "idle", Target: "add"})
	require.NoError(err)

	items, err := s.List("queue:idle")
	require.NoError(err)
	require.Len(items, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = res.Get(ctx)
	require.Equal(context.DeadlineExceeded, err)
}

func TestReplyExpires(t *testing.T) {
	require := require.New(t)

	s, err := miniredis.Run()
	require.NoError(err)
	defer s.Close()

	config := testConfig(s.Addr())
	config.applyDefaults()
	w, err := NewWorker(config, testRegistry(t), []string{"default"}, tally.NoopScope, clock.New())
	require.NoError(err)

	require.NoError(w.reply(broker.NewReply("abc", 1, nil)))
	require.Equal(time.Minute, s.TTL("result:abc"))
}

func TestSubmitPayloadTooLarge(t *testing.T) {
	require := require.New(t)

	s, err := miniredis.Run()
	require.NoError(err)
	defer s.Close()

	config := testConfig(s.Addr())
	config.MaxPayloadSize = 64 * datasize.B

	b, err := New(config, tally.NoopScope, clock.New())
	require.NoError(err)
	defer b.Close()

	_, err = b.Submit(context.Background(), broker.Message{
		Queue:   "default",
		Target:  "add",
		Payload: map[string]interface{}{"blob": strings.Repeat("x", 128)},
	})
	require.Error(err)
	require.True(strings.Contains(err.Error(), ErrPayloadTooLarge.Error()))
}

func TestNewRequiresAddr(t *testing.T) {
	_, err := New(Config{}, tally.NoopScope, clock.New())
	require.Error(t, err)
}
