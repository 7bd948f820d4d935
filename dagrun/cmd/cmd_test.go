package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"
	"go.uber.org/zap"

	"github.com/uber/dagrun/lib/broker"
	"github.com/uber/dagrun/lib/execution"
	"github.com/uber/dagrun/lib/execution/executionserver"
	"github.com/uber/dagrun/lib/plan"
	"github.com/uber/dagrun/lib/taskevents"
	"github.com/uber/dagrun/lib/taskgraph"
	"github.com/uber/dagrun/lib/workerpool"
	"github.com/uber/dagrun/utils/log"
)

func testConfig() Config {
	return Config{
		Graph: taskgraph.Config{
			PollInterval:  time.Millisecond,
			RetryInterval: time.Millisecond,
		},
		Events: taskevents.Config{
			Log: log.Config{Disable: true},
		},
	}
}

func writePlan(t *testing.T, plan string) string {
	f := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, ioutil.WriteFile(f, []byte(plan), 0644))
	return f
}

func runPlan(t *testing.T, ctx context.Context, plan string) int {
	flags := ParseFlags([]string{RunCommand, writePlan(t, plan)})
	return Run(flags,
		WithConfig(testConfig()),
		WithMetrics(tally.NoopScope),
		WithLogger(zap.NewNop()),
		WithContext(ctx))
}

func TestParseFlags(t *testing.T) {
	require := require.New(t)

	plan := writePlan(t, "name: x")
	flags := ParseFlags([]string{"--config", "dagrun.yaml", "--cluster", "dca1", RunCommand, plan})
	require.Equal(RunCommand, flags.Command)
	require.Equal("dagrun.yaml", flags.ConfigFile)
	require.Equal("dca1", flags.Cluster)
	require.Equal(plan, flags.PlanFile)

	flags = ParseFlags([]string{WorkerCommand, "-q", "high", "-q", "low"})
	require.Equal(WorkerCommand, flags.Command)
	require.Equal([]string{"high", "low"}, flags.Queues)

	flags = ParseFlags([]string{ServeCommand})
	require.Equal(ServeCommand, flags.Command)

	flags = ParseFlags([]string{"--server", "dagrun:9000", StatusCommand, "abc"})
	require.Equal(StatusCommand, flags.Command)
	require.Equal("dagrun:9000", flags.Server)
	require.Equal("abc", flags.ExecutionID)

	flags = ParseFlags([]string{ListCommand})
	require.Equal("localhost:8080", flags.Server)
}

func TestRunSucceeded(t *testing.T) {
	code := runPlan(t, context.Background(), `
name: ok
nodes:
  - id: a
    operations:
      - local: log
        args: {message: hello}
      - parallel:
          - local: shell
            args: {command: "true"}
          - remote: {queue: agents, target: log}
  - id: b
    depends_on: [a]
    operations:
      - local: sleep
        args: {duration: 1ms}
`)
	require.Equal(t, ExitSucceeded, code)
}

func TestRunFailed(t *testing.T) {
	code := runPlan(t, context.Background(), `
name: broken
nodes:
  - id: a
    reinstall_retries: 1
    operations:
      - local: fail
`)
	require.Equal(t, ExitFailed, code)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	code := runPlan(t, ctx, `
name: slow
nodes:
  - id: a
    operations:
      - local: sleep
        args: {duration: 1h}
`)
	require.Equal(t, ExitCancelled, code)
}

func TestRunInvalidPlan(t *testing.T) {
	code := runPlan(t, context.Background(), `
name: invalid
nodes:
  - id: a
    operations:
      - local: unknown
`)
	require.Equal(t, ExitFailed, code)
}

func TestExitCode(t *testing.T) {
	require.Equal(t, ExitSucceeded, exitCode(execution.Succeeded))
	require.Equal(t, ExitFailed, exitCode(execution.Failed))
	require.Equal(t, ExitCancelled, exitCode(execution.Cancelled))
}

func runClientCommand(t *testing.T, server string, args ...string) (int, []byte) {
	var out bytes.Buffer
	flags := ParseFlags(append([]string{"--server", server}, args...))
	code := Run(flags,
		WithConfig(testConfig()),
		WithLogger(zap.NewNop()),
		WithOutput(&out))
	return code, out.Bytes()
}

func TestClientCommands(t *testing.T) {
	require := require.New(t)

	registry := broker.NewRegistry()
	require.NoError(registerOperations(registry))
	pool := workerpool.New(workerpool.Config{NumWorkers: 2, Testing: true}, tally.NoopScope)
	defer pool.Close()
	controller := execution.NewController(execution.Config{}, tally.NoopScope, clock.New())
	defer controller.Close()

	build := func(p plan.Plan) (*taskgraph.Graph, error) {
		return plan.Build(p, plan.Backends{Executor: pool, Local: registry},
			testConfig().Graph, tally.NoopScope)
	}
	s := httptest.NewServer(executionserver.New(
		executionserver.Config{}, tally.NoopScope, controller, build, nil).Handler())
	defer s.Close()
	addr := strings.TrimPrefix(s.URL, "http://")

	code, out := runClientCommand(t, addr, SubmitCommand, writePlan(t, `
name: slow
nodes:
  - id: a
    operations:
      - local: sleep
        args: {duration: 1h}
`))
	require.Equal(ExitSucceeded, code)
	var info execution.Info
	require.NoError(json.Unmarshal(out, &info))
	require.Equal("slow", info.Name)

	code, out = runClientCommand(t, addr, StatusCommand, info.ID)
	require.Equal(ExitSucceeded, code)
	var status execution.Info
	require.NoError(json.Unmarshal(out, &status))
	require.Equal(info.ID, status.ID)

	code, out = runClientCommand(t, addr, ListCommand)
	require.Equal(ExitSucceeded, code)
	var infos []execution.Info
	require.NoError(json.Unmarshal(out, &infos))
	require.Len(infos, 1)

	code, _ = runClientCommand(t, addr, CancelCommand, info.ID)
	require.Equal(ExitSucceeded, code)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	final, err := controller.Wait(ctx, info.ID)
	require.NoError(err)
	require.Equal(execution.Cancelled, final.Status)

	code, _ = runClientCommand(t, addr, StatusCommand, "missing")
	require.Equal(ExitFailed, code)
}
