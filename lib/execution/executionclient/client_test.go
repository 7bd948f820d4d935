package executionclient

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"

	"github.com/uber/dagrun/lib/broker"
	"github.com/uber/dagrun/lib/execution"
	"github.com/uber/dagrun/lib/execution/executionserver"
	"github.com/uber/dagrun/lib/plan"
	"github.com/uber/dagrun/lib/taskevents"
	"github.com/uber/dagrun/lib/taskgraph"
	"github.com/uber/dagrun/lib/workerpool"
	"github.com/uber/dagrun/localdb"
	"github.com/uber/dagrun/utils/backoff"
)

const testPlan = `
name: deploy
nodes:
  - id: a
    operations:
      - local: wait
`

type clientMocks struct {
	controller *execution.Controller
	recorder   *taskevents.SQLRecorder
	release    chan struct{}
}

func newTestServer(t *testing.T) (*clientMocks, Client, func()) {
	db, closeDB := localdb.Fixture()
	pool := workerpool.New(workerpool.Config{NumWorkers: 2, Testing: true}, tally.NoopScope)
	m := &clientMocks{
		controller: execution.NewController(execution.Config{}, tally.NoopScope, clock.New()),
		recorder:   taskevents.NewSQLRecorder(db, 1024, tally.NoopScope),
		release:    make(chan struct{}),
	}

	registry := broker.NewRegistry()
	require.NoError(t, registry.Register("wait", broker.HandlerFunc(
		func(ctx context.Context, _ broker.OperationContext, _ map[string]interface{}) (interface{}, error) {
			select {
			case <-m.release:
				return nil, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		})))

	build := func(p plan.Plan) (*taskgraph.Graph, error) {
		return plan.Build(p, plan.Backends{Executor: pool, Local: registry},
			taskgraph.Config{PollInterval: time.Millisecond}, tally.NoopScope,
			taskgraph.WithRecorder(m.recorder))
	}
	s := httptest.NewServer(executionserver.New(
		executionserver.Config{}, tally.NoopScope, m.controller, build, m.recorder).Handler())

	c := New(strings.TrimPrefix(s.URL, "http://"), backoff.Config{
		Min:          time.Millisecond,
		RetryTimeout: time.Second,
	})
	return m, c, func() {
		s.Close()
		m.controller.Close()
		m.recorder.Close()
		pool.Close()
		closeDB()
	}
}

func TestClientLifecycle(t *testing.T) {
	require := require.New(t)

	mocks, c, cleanup := newTestServer(t)
	defer cleanup()

	info, err := c.Start([]byte(testPlan))
	require.NoError(err)
	require.Equal("deploy", info.Name)

	got, err := c.Get(info.ID)
	require.NoError(err)
	require.Equal(info.ID, got.ID)

	infos, err := c.List()
	require.NoError(err)
	require.Len(infos, 1)

	close(mocks.release)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	final, err := mocks.controller.Wait(ctx, info.ID)
	require.NoError(err)
	require.Equal(execution.Succeeded, final.Status)

	// Events are written asynchronously.
	require.NoError(mocks.recorder.Close())
	events, err := c.Events(info.ID)
	require.NoError(err)
	require.NotEmpty(events)
	for _, e := range events {
		require.Equal(info.ID, e.ExecutionID)
	}
}

func TestClientCancel(t *testing.T) {
	require := require.New(t)

	mocks, c, cleanup := newTestServer(t)
	defer cleanup()

	info, err := c.Start([]byte(testPlan))
	require.NoError(err)
	require.NoError(c.Cancel(info.ID))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	final, err := mocks.controller.Wait(ctx, info.ID)
	require.NoError(err)
	require.Equal(execution.Cancelled, final.Status)
}

func TestClientErrors(t *testing.T) {
	require := require.New(t)

	_, c, cleanup := newTestServer(t)
	defer cleanup()

	_, err := c.Get("missing")
	require.Equal(execution.ErrExecutionNotFound, err)

	require.Equal(execution.ErrExecutionNotFound, c.Cancel("missing"))

	_, err = c.Start([]byte("name: [broken"))
	require.Error(err)
}
