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
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin"
	"github.com/andres-erbsen/clock"
	"github.com/uber-go/tally"
	"go.uber.org/zap"

	"github.com/uber/dagrun/lib/broker"
	"github.com/uber/dagrun/lib/broker/redisbroker"
	"github.com/uber/dagrun/lib/execution"
	"github.com/uber/dagrun/lib/execution/executionserver"
	"github.com/uber/dagrun/lib/plan"
	"github.com/uber/dagrun/lib/taskevents"
	"github.com/uber/dagrun/lib/taskgraph"
	"github.com/uber/dagrun/lib/tracing"
	"github.com/uber/dagrun/lib/workerpool"
	"github.com/uber/dagrun/metrics"
	"github.com/uber/dagrun/utils/configutil"
	"github.com/uber/dagrun/utils/log"
	"github.com/uber/dagrun/utils/shutdown"
)

// Commands.
const (
	RunCommand    = "run"
	WorkerCommand = "worker"
	ServeCommand  = "serve"
	SubmitCommand = "submit"
	StatusCommand = "status"
	CancelCommand = "cancel"
	ListCommand   = "list"
)

// Exit codes of the run command.
const (
	ExitSucceeded = 0
	ExitFailed    = 1
	ExitCancelled = 2
)

// Flags defines dagrun CLI flags.
type Flags struct {
	Command    string
	ConfigFile string
	Cluster    string
	PlanFile   string
	Queues     []string

	// Server is the executionserver address used by client commands.
	Server      string
	ExecutionID string
}

// ParseFlags parses dagrun CLI arguments.
func ParseFlags(args []string) *Flags {
	var flags Flags

	app := kingpin.New("dagrun", "Runs workflow task graphs")
	app.Flag("config", "configuration file path").Short('c').StringVar(&flags.ConfigFile)
	app.Flag("cluster", "cluster name attached to metrics").StringVar(&flags.Cluster)

	run := app.Command(RunCommand, "Run a plan until it finishes")
	run.Arg("plan", "plan file").Required().ExistingFileVar(&flags.PlanFile)

	worker := app.Command(WorkerCommand, "Execute remote operations from redis queues")
	worker.Flag("queue", "queue to consume, highest priority first").
		Short('q').Required().StringsVar(&flags.Queues)

	app.Command(ServeCommand, "Serve the execution API")

	app.Flag("server", "execution server address").Default("localhost:8080").StringVar(&flags.Server)

	submit := app.Command(SubmitCommand, "Submit a plan to an execution server")
	submit.Arg("plan", "plan file").Required().ExistingFileVar(&flags.PlanFile)

	status := app.Command(StatusCommand, "Print the status of an execution")
	status.Arg("id", "execution id").Required().StringVar(&flags.ExecutionID)

	cancel := app.Command(CancelCommand, "Cancel a running execution")
	cancel.Arg("id", "execution id").Required().StringVar(&flags.ExecutionID)

	app.Command(ListCommand, "List executions known to the server")

	flags.Command = kingpin.MustParse(app.Parse(args))
	return &flags
}

type options struct {
	config  *Config
	metrics tally.Scope
	logger  *zap.Logger
	ctx     context.Context
	output  io.Writer
}

// Option defines an optional Run parameter.
type Option func(*options)

// WithConfig ignores the config flag and directly uses the provided config
// struct.
func WithConfig(c Config) Option {
	return func(o *options) { o.config = &c }
}

// WithMetrics ignores metrics config and directly uses the provided tally scope.
func WithMetrics(s tally.Scope) Option {
	return func(o *options) { o.metrics = s }
}

// WithLogger ignores logging config and directly uses the provided logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithContext derives the process context from ctx instead of the
// background context.
func WithContext(ctx context.Context) Option {
	return func(o *options) { o.ctx = ctx }
}

// WithOutput sets where client commands print their results.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.output = w }
}

// Run runs the command selected by flags and returns the process exit code.
func Run(flags *Flags, opts ...Option) int {
	overrides := options{ctx: context.Background(), output: os.Stdout}
	for _, o := range opts {
		o(&overrides)
	}

	var config Config
	if overrides.config != nil {
		config = *overrides.config
	} else if flags.ConfigFile != "" {
		if err := configutil.Load(flags.ConfigFile, &config); err != nil {
			panic(err)
		}
	}

	if overrides.logger != nil {
		log.SetGlobalLogger(overrides.logger.Sugar())
	} else if config.ZapLogging.Encoding != "" {
		zlog := log.ConfigureLogger(config.ZapLogging)
		defer zlog.Sync()
	}

	switch flags.Command {
	case SubmitCommand, StatusCommand, CancelCommand, ListCommand:
		return runClient(flags, config.Client, overrides.output)
	}

	h := shutdown.New(overrides.ctx)
	defer h.Shutdown()

	stats := overrides.metrics
	if stats == nil {
		s, closer, err := metrics.New(config.Metrics, flags.Cluster)
		if err != nil {
			log.Fatalf("Failed to init metrics: %s", err)
		}
		stats = s
		h.AddCleanup(closer.Close)
	}

	stopTracing, err := tracing.InitProvider(h.Context(), config.Tracing)
	if err != nil {
		log.Fatalf("Failed to init tracing: %s", err)
	}
	h.AddCleanup(func() error { return stopTracing(context.Background()) })

	registry := broker.NewRegistry()
	if err := registerOperations(registry); err != nil {
		log.Fatalf("Error registering operations: %s", err)
	}

	switch flags.Command {
	case WorkerCommand:
		return runWorker(h, config, flags.Queues, registry, stats)
	case RunCommand, ServeCommand:
	default:
		log.Fatalf("Unknown command %q", flags.Command)
	}

	d, err := newDeps(h, config, registry, stats)
	if err != nil {
		log.Fatalf("Error initializing: %s", err)
	}
	if flags.Command == ServeCommand {
		return d.serve(h, config.Server, stats)
	}
	return d.run(h, flags.PlanFile)
}

func runWorker(
	h *shutdown.Handler,
	config Config,
	queues []string,
	registry *broker.Registry,
	stats tally.Scope) int {

	if config.Redis.Addr == "" {
		log.Fatal("Worker requires redis.addr")
	}
	w, err := redisbroker.NewWorker(config.Redis, registry, queues, stats, clock.New())
	if err != nil {
		log.Fatalf("Error creating worker: %s", err)
	}
	if err := w.Run(h.Context()); err != nil && h.Context().Err() == nil {
		log.Errorf("Worker stopped: %s", err)
		return ExitFailed
	}
	return ExitSucceeded
}

// deps are shared by the run and serve commands.
type deps struct {
	config     Config
	stats      tally.Scope
	backends   plan.Backends
	recorder   *taskevents.Recorder
	controller *execution.Controller
}

func newDeps(h *shutdown.Handler, config Config, registry *broker.Registry, stats tally.Scope) (*deps, error) {
	pool := workerpool.New(config.WorkerPool, stats)
	h.AddCleanup(func() error {
		pool.Close()
		return nil
	})

	var b broker.Broker
	if config.Redis.Addr != "" {
		rb, err := redisbroker.New(config.Redis, stats, clock.New())
		if err != nil {
			return nil, fmt.Errorf("redis broker: %s", err)
		}
		h.AddCleanup(rb.Close)
		b = rb
	} else {
		log.Info("No redis configured, running remote operations in process")
		mb := broker.NewMemoryBroker(registry, stats)
		h.AddCleanup(func() error {
			mb.Close()
			return nil
		})
		b = mb
	}

	recorder, err := taskevents.New(config.Events, stats)
	if err != nil {
		return nil, fmt.Errorf("task events: %s", err)
	}
	h.AddCleanup(recorder.Close)

	controller := execution.NewController(config.Execution, stats, clock.New())
	h.AddCleanup(func() error {
		controller.Close()
		return nil
	})

	return &deps{
		config: config,
		stats:  stats,
		backends: plan.Backends{
			Executor: pool,
			Local:    registry,
			Broker:   b,
		},
		recorder:   recorder,
		controller: controller,
	}, nil
}

func (d *deps) build(p plan.Plan) (*taskgraph.Graph, error) {
	return plan.Build(p, d.backends, d.config.Graph, d.stats, taskgraph.WithRecorder(d.recorder))
}

func (d *deps) run(h *shutdown.Handler, planFile string) int {
	p, err := plan.Load(planFile)
	if err != nil {
		log.Errorf("Error loading plan: %s", err)
		return ExitFailed
	}
	g, err := d.build(p)
	if err != nil {
		log.Errorf("Error building plan: %s", err)
		return ExitFailed
	}
	info, err := d.controller.Run(h.Context(), p.Name, g)
	if err != nil && info.ID == "" {
		log.Errorf("Error starting execution: %s", err)
		return ExitFailed
	}
	return exitCode(info.Status)
}

func exitCode(s execution.Status) int {
	switch s {
	case execution.Succeeded:
		return ExitSucceeded
	case execution.Cancelled:
		return ExitCancelled
	default:
		return ExitFailed
	}
}

func (d *deps) serve(h *shutdown.Handler, config executionserver.Config, stats tally.Scope) int {
	var events executionserver.EventStore
	if d.recorder.SQL != nil {
		events = d.recorder.SQL
	}
	s := executionserver.New(config, stats, d.controller, d.build, events)
	if err := s.ListenAndServe(h.Context()); err != nil {
		log.Errorf("Server stopped: %s", err)
		return ExitFailed
	}
	return ExitSucceeded
}
