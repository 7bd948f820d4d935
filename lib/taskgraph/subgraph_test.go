package taskgraph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"
	"go.uber.org/atomic"

	"github.com/uber/dagrun/lib/broker"
	"github.com/uber/dagrun/lib/operrors"
)

func TestSubgraphSucceedsWhenChildrenDone(t *testing.T) {
	require := require.New(t)

	pool := newTestPool()
	defer pool.Close()

	var l timeline
	g := New(testConfig(), tally.NoopScope)
	s, err := g.Subgraph("node")
	require.NoError(err)
	seq := s.Sequence()
	require.NoError(seq.Add(
		NewLocalTask(pool, "create", recordingFunc(&l, "create")),
		NewLocalTask(pool, "configure", recordingFunc(&l, "configure")),
		NewLocalTask(pool, "start", recordingFunc(&l, "start"))))
	require.Len(s.Children(), 3)

	ctx, cancel := testContext()
	defer cancel()
	require.NoError(g.Execute(ctx))

	require.Equal(Succeeded, s.State())
	l.requireBefore(t, "end create", "start configure")
	l.requireBefore(t, "end configure", "start start")
}

func TestEmptySubgraphSucceedsOnApply(t *testing.T) {
	require := require.New(t)

	g := New(testConfig(), tally.NoopScope)
	s, err := g.Subgraph("empty")
	require.NoError(err)

	s.ApplyAsync(context.Background())
	require.Equal(Succeeded, s.State())

	ctx, cancel := testContext()
	defer cancel()
	require.NoError(g.Execute(ctx))
}

func TestSubgraphAddTaskConflict(t *testing.T) {
	require := require.New(t)

	pool := newTestPool()
	defer pool.Close()

	g := New(testConfig(), tally.NoopScope)
	s1, err := g.Subgraph("s1")
	require.NoError(err)
	s2, err := g.Subgraph("s2")
	require.NoError(err)

	task := NewLocalTask(pool, "a", succeed(nil))
	require.NoError(s1.AddTask(task))
	require.NoError(s1.AddTask(task))
	require.Equal(ErrSubgraphConflict, s2.AddTask(task))
	require.Equal(s1.ID(), task.ContainingSubgraph().ID())
}

func TestSubgraphAddTaskRequiresGraph(t *testing.T) {
	s := newSubgraph("detached", nil)
	require.Equal(t, ErrTaskNotInGraph, s.AddTask(NewLocalTask(nil, "a", succeed(nil))))
}

func TestSubgraphContainment(t *testing.T) {
	require := require.New(t)

	pool := newTestPool()
	defer pool.Close()

	release := make(chan struct{})
	defer close(release)

	g := New(testConfig(), tally.NoopScope)
	s, err := g.Subgraph("node")
	require.NoError(err)

	fail := FailureHandlerFunc(func(*Task) HandlerResult { return Fail() })
	task1 := NewLocalTask(pool, "task1", blockUntil(release))
	task2 := NewLocalTask(pool, "task2", failWith(errBoom), WithOnFailure(fail))
	task3 := NewLocalTask(pool, "task3", blockUntil(release))
	for _, task := range []*Task{task1, task2, task3} {
		require.NoError(s.AddTask(task))
	}

	ctx, cancel := testContext()
	defer cancel()
	err = g.Execute(ctx)

	var ferr *TaskFailedError
	require.True(errors.As(err, &ferr))
	require.Equal("task2", ferr.Info)
	require.Equal(task2.ID(), ferr.TaskID)
	require.Equal(errBoom, ferr.Err)

	require.Equal(Failed, s.State())
	require.Equal(task2, s.FailedTask())
	require.Equal(task2.ID(), s.Dump().FailedTask)
}

func TestContainedFailureLetsSiblingsContinue(t *testing.T) {
	require := require.New(t)

	pool := newTestPool()
	defer pool.Close()

	release := make(chan struct{})
	defer close(release)

	var l timeline
	g := New(testConfig(), tally.NoopScope)
	s, err := g.Subgraph("node", WithOnFailure(FailureHandlerFunc(func(*Task) HandlerResult {
		return Ignore()
	})))
	require.NoError(err)

	blocked := NewLocalTask(pool, "blocked", blockUntil(release))
	require.NoError(s.AddTask(blocked))
	require.NoError(s.AddTask(NewLocalTask(pool, "broken", failWith(operrors.NonRecoverable("broken")))))

	sibling := NewLocalTask(pool, "sibling", recordingFunc(&l, "sibling"))
	require.NoError(g.AddTask(sibling))

	ctx, cancel := testContext()
	defer cancel()
	require.NoError(g.Execute(ctx))

	require.Equal(Failed, s.State())
	require.Equal("broken", s.FailedTask().Info())
	require.True(l.index("end sibling") >= 0)
	require.Equal(0, g.Len())
	require.Nil(blocked.Graph())
}

func TestChildrenWaitForSubgraphDependencies(t *testing.T) {
	require := require.New(t)

	pool := newTestPool()
	defer pool.Close()

	var l timeline
	g := New(testConfig(), tally.NoopScope)
	db, err := g.Subgraph("db")
	require.NoError(err)
	require.NoError(db.AddTask(NewLocalTask(pool, "db.start", recordingFunc(&l, "db.start"))))

	app, err := g.Subgraph("app")
	require.NoError(err)
	nested, err := app.Subgraph("app.install")
	require.NoError(err)
	require.NoError(nested.AddTask(NewLocalTask(pool, "app.create", recordingFunc(&l, "app.create"))))

	require.NoError(g.AddDependency(app.Task, db.Task))

	ctx, cancel := testContext()
	defer cancel()
	require.NoError(g.Execute(ctx))

	l.requireBefore(t, "end db.start", "start app.create")
	require.Equal(Succeeded, app.State())
	require.Equal(Succeeded, nested.State())
}

func TestNestedFailureNamesDeepestTask(t *testing.T) {
	require := require.New(t)

	pool := newTestPool()
	defer pool.Close()

	g := New(testConfig(), tally.NoopScope)
	outer, err := g.Subgraph("outer")
	require.NoError(err)
	inner, err := outer.Subgraph("inner")
	require.NoError(err)
	leaf := NewLocalTask(pool, "leaf", failWith(operrors.NonRecoverable("bad config")))
	require.NoError(inner.AddTask(leaf))

	ctx, cancel := testContext()
	defer cancel()
	err = g.Execute(ctx)

	var ferr *TaskFailedError
	require.True(errors.As(err, &ferr))
	require.Equal("leaf", ferr.Info)
	require.Equal(leaf.ID(), ferr.TaskID)
	require.Equal(inner.Task, outer.FailedTask())
	require.Equal(leaf, inner.FailedTask())
}

func TestSubgraphRetryWithReplacement(t *testing.T) {
	require := require.New(t)

	pool := newTestPool()
	defer pool.Close()

	var l timeline
	var installs atomic.Int64
	g := New(testConfig(), tally.NoopScope)

	var build func(retry int) (*Subgraph, error)
	build = func(retry int) (*Subgraph, error) {
		s, err := g.Subgraph("node",
			WithTotalRetries(1),
			WithCurrentRetries(retry),
			WithOnFailure(FailureHandlerFunc(func(failed *Task) HandlerResult {
				r, err := build(failed.CurrentRetries() + 1)
				if err != nil {
					return Fail()
				}
				return Retry(RetryWith(r.Task))
			})))
		if err != nil {
			return nil, err
		}
		install := NewLocalTask(pool, "install", func(ctx context.Context, opctx broker.OperationContext) (interface{}, error) {
			if installs.Inc() == 1 {
				return nil, operrors.NonRecoverable("first install breaks")
			}
			l.add("end install")
			return nil, nil
		})
		return s, s.AddTask(install)
	}

	node, err := build(0)
	require.NoError(err)
	app := NewLocalTask(pool, "app", recordingFunc(&l, "app"))
	require.NoError(g.AddTask(app))
	require.NoError(g.AddDependency(app, node.Task))

	ctx, cancel := testContext()
	defer cancel()
	require.NoError(g.Execute(ctx))

	require.Equal(int64(2), installs.Load())
	require.Equal(Failed, node.State())
	l.requireBefore(t, "end install", "start app")
}

func TestSubgraphRetryWithoutReplacementFails(t *testing.T) {
	require := require.New(t)

	pool := newTestPool()
	defer pool.Close()

	g := New(testConfig(), tally.NoopScope)
	s, err := g.Subgraph("node", WithOnFailure(FailureHandlerFunc(func(*Task) HandlerResult {
		return Retry()
	})))
	require.NoError(err)
	require.NoError(s.AddTask(NewLocalTask(pool, "install", failWith(operrors.NonRecoverable("x")))))

	ctx, cancel := testContext()
	defer cancel()
	err = g.Execute(ctx)

	var ferr *TaskFailedError
	require.True(errors.As(err, &ferr))
	require.Equal("install", ferr.Info)
}

func TestRetriedChildStaysInSubgraph(t *testing.T) {
	require := require.New(t)

	pool := newTestPool()
	defer pool.Close()

	var attempts atomic.Int64
	g := New(testConfig(), tally.NoopScope)
	s, err := g.Subgraph("node")
	require.NoError(err)
	require.NoError(s.AddTask(NewLocalTask(pool, "flaky", func(ctx context.Context, opctx broker.OperationContext) (interface{}, error) {
		if attempts.Inc() < 3 {
			return nil, operrors.Recoverable("again")
		}
		return nil, nil
	}, WithRetryInterval(0))))

	ctx, cancel := testContext()
	defer cancel()
	require.NoError(g.Execute(ctx))

	require.Equal(int64(3), attempts.Load())
	require.Equal(Succeeded, s.State())
	require.Nil(s.FailedTask())
}
