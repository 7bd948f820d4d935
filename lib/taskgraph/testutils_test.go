package taskgraph

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"

	"github.com/uber/dagrun/lib/broker"
	"github.com/uber/dagrun/lib/workerpool"
)

func testConfig() Config {
	return Config{
		PollInterval:  time.Millisecond,
		RetryInterval: time.Millisecond,
	}
}

func newTestPool() *workerpool.Pool {
	return workerpool.New(workerpool.Config{NumWorkers: 8}, tally.NoopScope)
}

func testContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

// timeline records task body events in order.
type timeline struct {
	mu     sync.Mutex
	events []string
}

func (l *timeline) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *timeline) index(e string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, x := range l.events {
		if x == e {
			return i
		}
	}
	return -1
}

func (l *timeline) requireBefore(t *testing.T, a, b string) {
	ia, ib := l.index(a), l.index(b)
	require.True(t, ia >= 0, "missing event %q", a)
	require.True(t, ib >= 0, "missing event %q", b)
	require.True(t, ia < ib, "%q at %d not before %q at %d", a, ia, b, ib)
}

func recordingFunc(l *timeline, name string) LocalFunc {
	return func(ctx context.Context, opctx broker.OperationContext) (interface{}, error) {
		l.add("start " + name)
		time.Sleep(time.Millisecond)
		l.add("end " + name)
		return name, nil
	}
}

func succeed(v interface{}) LocalFunc {
	return func(ctx context.Context, opctx broker.OperationContext) (interface{}, error) {
		return v, nil
	}
}

func failWith(err error) LocalFunc {
	return func(ctx context.Context, opctx broker.OperationContext) (interface{}, error) {
		return nil, err
	}
}

func blockUntil(c chan struct{}) LocalFunc {
	return func(ctx context.Context, opctx broker.OperationContext) (interface{}, error) {
		<-c
		return nil, nil
	}
}

var errBoom = errors.New("boom")

type eventCollector struct {
	mu     sync.Mutex
	events []Event
}

func (c *eventCollector) Record(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *eventCollector) all() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}
