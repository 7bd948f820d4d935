package plan

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"

	"github.com/uber/dagrun/lib/broker"
	"github.com/uber/dagrun/lib/operrors"
	"github.com/uber/dagrun/lib/taskgraph"
	"github.com/uber/dagrun/lib/workerpool"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
	args  []map[string]interface{}
}

func (r *recorder) handler(
	_ context.Context, opctx broker.OperationContext, payload map[string]interface{}) (interface{}, error) {

	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, opctx.Info)
	r.args = append(r.args, payload)
	return nil, nil
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func indexOf(calls []string, call string) int {
	for i, c := range calls {
		if c == call {
			return i
		}
	}
	return -1
}

type buildMocks struct {
	rec      *recorder
	registry *broker.Registry
	pool     *workerpool.Pool
	broker   *broker.MemoryBroker
	attempts map[string]int
	mu       sync.Mutex
}

func newBuildMocks(t *testing.T) (*buildMocks, func()) {
	m := &buildMocks{
		rec:      &recorder{},
		registry: broker.NewRegistry(),
		pool:     workerpool.New(workerpool.Config{NumWorkers: 4, Testing: true}, tally.NoopScope),
		attempts: make(map[string]int),
	}
	m.broker = broker.NewMemoryBroker(m.registry, tally.NoopScope)

	require.NoError(t, m.registry.Register("record", broker.HandlerFunc(m.rec.handler)))
	require.NoError(t, m.registry.Register("configure", broker.HandlerFunc(m.rec.handler)))
	require.NoError(t, m.registry.Register("fail", broker.HandlerFunc(
		func(context.Context, broker.OperationContext, map[string]interface{}) (interface{}, error) {
			return nil, operrors.NonRecoverable("broken")
		})))
	require.NoError(t, m.registry.Register("fail_once", broker.HandlerFunc(
		func(_ context.Context, opctx broker.OperationContext, _ map[string]interface{}) (interface{}, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.attempts[opctx.Info]++
			if m.attempts[opctx.Info] == 1 {
				return nil, operrors.NonRecoverable("first attempt")
			}
			return nil, nil
		})))
	require.NoError(t, m.registry.Register("flaky", broker.HandlerFunc(
		func(_ context.Context, opctx broker.OperationContext, _ map[string]interface{}) (interface{}, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.attempts[opctx.Info]++
			return nil, errors.New("still flaky")
		})))

	return m, func() {
		m.broker.Close()
		m.pool.Close()
	}
}

func (m *buildMocks) backends() Backends {
	return Backends{Executor: m.pool, Local: m.registry, Broker: m.broker}
}

func (m *buildMocks) build(t *testing.T, plan string) *taskgraph.Graph {
	p, err := Parse([]byte(plan))
	require.NoError(t, err)
	g, err := Build(p, m.backends(), taskgraph.Config{
		PollInterval:  time.Millisecond,
		RetryInterval: time.Millisecond,
	}, tally.NoopScope, taskgraph.WithExecutionID("exec"))
	require.NoError(t, err)
	return g
}

func testContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

func subgraphsByInfo(g *taskgraph.Graph) map[string]*taskgraph.Subgraph {
	subgraphs := make(map[string]*taskgraph.Subgraph)
	for _, t := range g.Tasks() {
		if s, ok := t.AsSubgraph(); ok {
			subgraphs[t.Info()] = s
		}
	}
	return subgraphs
}

func TestBuildStructure(t *testing.T) {
	require := require.New(t)

	mocks, cleanup := newBuildMocks(t)
	defer cleanup()

	g := mocks.build(t, deployPlan)
	require.Equal("exec", g.ID())

	subgraphs := subgraphsByInfo(g)
	require.Len(subgraphs, 2)
	db, web := subgraphs["db"], subgraphs["web"]

	require.Equal([]string{db.ID()}, g.Dependencies(web.Task))
	require.Empty(g.Dependencies(db.Task))
	require.Len(db.Children(), 3)
	require.Len(web.Children(), 1)
	require.Equal(1, db.TotalRetries())
	require.Equal(0, web.TotalRetries())

	deps := make(map[string][]int)
	for _, c := range db.Children() {
		require.Equal(2, c.TotalRetries())
		require.Equal(10*time.Millisecond, c.RetryInterval())
		deps[c.Info()] = append(deps[c.Info()], len(g.Dependencies(c)))
	}
	sort.Ints(deps["db.record"])
	require.Equal(map[string][]int{
		"db.record":           {0, 1},
		"db.agents/configure": {1},
	}, deps)
	require.Equal(5, web.Children()[0].TotalRetries())
	require.Equal(time.Second, web.Children()[0].RetryInterval())
}

func TestBuildExecutesInOrder(t *testing.T) {
	require := require.New(t)

	mocks, cleanup := newBuildMocks(t)
	defer cleanup()

	g := mocks.build(t, deployPlan)

	ctx, cancel := testContext()
	defer cancel()
	require.NoError(g.Execute(ctx))

	calls := mocks.rec.snapshot()
	require.Len(calls, 4)
	require.Equal("db.record", calls[0])
	require.Equal("web.record", calls[3])
	require.NotEqual(-1, indexOf(calls, "db.agents/configure"))

	mocks.rec.mu.Lock()
	defer mocks.rec.mu.Unlock()
	require.Equal(map[string]interface{}{"step": "create"}, mocks.rec.args[0])
	require.Contains(mocks.rec.args, map[string]interface{}{"port": "5432"})
}

func TestBuildReinstallsFailedNode(t *testing.T) {
	require := require.New(t)

	mocks, cleanup := newBuildMocks(t)
	defer cleanup()

	g := mocks.build(t, `
name: reinstall
nodes:
  - id: db
    reinstall_retries: 2
    operations:
      - local: record
      - local: fail_once
      - local: record
  - id: web
    depends_on: [db]
    operations:
      - local: record
`)

	ctx, cancel := testContext()
	defer cancel()
	require.NoError(g.Execute(ctx))

	// The whole node is installed again from its first operation.
	require.Equal([]string{"db.record", "db.record", "db.record", "web.record"}, mocks.rec.snapshot())
	require.Equal(2, mocks.attempts["db.fail_once"])
}

func TestBuildReinstallExhausted(t *testing.T) {
	require := require.New(t)

	mocks, cleanup := newBuildMocks(t)
	defer cleanup()

	g := mocks.build(t, `
name: reinstall
nodes:
  - id: db
    reinstall_retries: 1
    operations:
      - local: fail
  - id: web
    depends_on: [db]
    operations:
      - local: record
`)

	ctx, cancel := testContext()
	defer cancel()
	err := g.Execute(ctx)

	var terr *taskgraph.TaskFailedError
	require.True(errors.As(err, &terr))
	require.Equal("db.fail", terr.Info)
	require.Empty(mocks.rec.snapshot())
}

func TestBuildOperationRetries(t *testing.T) {
	require := require.New(t)

	mocks, cleanup := newBuildMocks(t)
	defer cleanup()

	g := mocks.build(t, `
name: retries
retries: 2
retry_interval: 1ms
nodes:
  - id: db
    operations:
      - local: flaky
`)

	ctx, cancel := testContext()
	defer cancel()
	err := g.Execute(ctx)
	require.Error(err)
	require.Contains(err.Error(), "still flaky")
	require.Equal(3, mocks.attempts["db.flaky"])
}

func TestBuildErrors(t *testing.T) {
	mocks, cleanup := newBuildMocks(t)
	defer cleanup()

	remote, err := Parse([]byte(`
name: x
nodes:
  - id: a
    operations:
      - remote: {queue: q, target: t}
`))
	require.NoError(t, err)

	unknown, err := Parse([]byte(`
name: x
nodes:
  - id: a
    operations:
      - local: missing
`))
	require.NoError(t, err)

	t.Run("remote without broker", func(t *testing.T) {
		backends := mocks.backends()
		backends.Broker = nil
		_, err := Build(remote, backends, taskgraph.Config{}, tally.NoopScope)
		require.Error(t, err)
		require.Contains(t, err.Error(), ErrNoBroker.Error())
	})

	t.Run("unknown local operation", func(t *testing.T) {
		_, err := Build(unknown, mocks.backends(), taskgraph.Config{}, tally.NoopScope)
		require.Error(t, err)
		require.Contains(t, err.Error(), `unknown local operation "missing"`)
	})

	t.Run("invalid plan", func(t *testing.T) {
		_, err := Build(Plan{}, mocks.backends(), taskgraph.Config{}, tally.NoopScope)
		require.Error(t, err)
	})
}
