// Package temporal implements engine.Engine on top of Temporal, giving
// AgentProcess genuine cross-restart durability for its two suspension
// points (waiting on an LLM response, waiting on a blocking tool call) and
// for the HITL pause/resume protocol, instead of only an in-memory
// placeholder.
package temporal

import (
	"context"
	"fmt"
	"sync"
	"time"

	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/agentrun/core/engine"
	"github.com/agentrun/core/telemetry"
)

// Options configures the Temporal engine adapter. Either Client or
// ClientOptions must be provided.
type Options struct {
	// Client is a pre-configured Temporal client. If nil, the adapter
	// creates one lazily from ClientOptions.
	Client client.Client
	// ClientOptions builds the Temporal client when Client is nil.
	ClientOptions *client.Options
	// TaskQueue is the default queue used when a workflow or activity
	// definition omits one. Required.
	TaskQueue string
	// WorkerOptions is forwarded to worker.New for every queue this engine
	// creates a worker for.
	WorkerOptions worker.Options
	// DisableTracing skips installing the OTEL tracing interceptor.
	DisableTracing bool

	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	Tracer  telemetry.Tracer
}

// Engine implements engine.Engine using Temporal as the durable backend. One
// worker is created per unique task queue a workflow or activity targets.
type Engine struct {
	client      client.Client
	closeClient bool

	defaultQueue string
	workerOpts   worker.Options

	logger  telemetry.Logger
	metrics telemetry.Metrics
	tracer  telemetry.Tracer

	mu      sync.Mutex
	workers map[string]worker.Worker
	started bool
}

// New constructs a Temporal engine adapter.
func New(opts Options) (*Engine, error) {
	if opts.TaskQueue == "" {
		return nil, fmt.Errorf("temporal engine: a default task queue is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NoopMetrics{}
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.NoopTracer{}
	}

	cli := opts.Client
	closeClient := false
	if cli == nil {
		if opts.ClientOptions == nil {
			return nil, fmt.Errorf("temporal engine: ClientOptions is required when Client is nil")
		}
		clientOpts := *opts.ClientOptions
		if !opts.DisableTracing {
			interceptor, err := temporalotel.NewTracingInterceptor(temporalotel.TracerOptions{})
			if err != nil {
				return nil, fmt.Errorf("temporal engine: tracing interceptor: %w", err)
			}
			clientOpts.Interceptors = append(clientOpts.Interceptors, interceptor)
		}
		var err error
		cli, err = client.NewLazyClient(clientOpts)
		if err != nil {
			return nil, fmt.Errorf("temporal engine: create client: %w", err)
		}
		closeClient = true
	}

	return &Engine{
		client:       cli,
		closeClient:  closeClient,
		defaultQueue: opts.TaskQueue,
		workerOpts:   opts.WorkerOptions,
		logger:       logger,
		metrics:      metrics,
		tracer:       tracer,
		workers:      make(map[string]worker.Worker),
	}, nil
}

// RegisterWorkflow registers def with the worker for its task queue.
func (e *Engine) RegisterWorkflow(_ context.Context, def engine.WorkflowDefinition) error {
	if def.Name == "" || def.Handler == nil {
		return fmt.Errorf("temporal engine: invalid workflow definition")
	}
	w, err := e.workerForQueue(def.TaskQueue)
	if err != nil {
		return err
	}
	w.RegisterWorkflowWithOptions(func(tctx workflow.Context, input any) (any, error) {
		wfCtx := newWorkflowContext(e, tctx)
		return def.Handler(wfCtx, input)
	}, workflow.RegisterOptions{Name: def.Name})
	return nil
}

// RegisterActivity registers def with the worker for its task queue.
func (e *Engine) RegisterActivity(_ context.Context, def engine.ActivityDefinition) error {
	if def.Name == "" || def.Handler == nil {
		return fmt.Errorf("temporal engine: invalid activity definition")
	}
	w, err := e.workerForQueue(def.Options.Queue)
	if err != nil {
		return err
	}
	w.RegisterActivityWithOptions(func(ctx context.Context, input any) (any, error) {
		return def.Handler(ctx, input)
	}, activity.RegisterOptions{Name: def.Name})
	return nil
}

// StartWorkflow starts a Temporal workflow execution, starting workers for
// its task queue if they are not already running.
func (e *Engine) StartWorkflow(ctx context.Context, req engine.WorkflowStartRequest) (engine.WorkflowHandle, error) {
	if req.Workflow == "" {
		return nil, fmt.Errorf("temporal engine: workflow name is required")
	}
	e.ensureWorkersStarted()

	queue := req.TaskQueue
	if queue == "" {
		queue = e.defaultQueue
	}

	startOpts := client.StartWorkflowOptions{
		ID:        req.ID,
		TaskQueue: queue,
		Memo:      req.Memo,
	}
	if req.SearchAttributes != nil {
		startOpts.TypedSearchAttributes = client.NewSearchAttributes()
	}
	if rp := convertRetryPolicy(req.RetryPolicy); rp != nil {
		startOpts.RetryPolicy = rp
	}

	run, err := e.client.ExecuteWorkflow(ctx, startOpts, req.Workflow, req.Input)
	if err != nil {
		return nil, fmt.Errorf("temporal engine: start workflow %q: %w", req.Workflow, err)
	}
	return &workflowHandle{client: e.client, run: run}, nil
}

// Close shuts down the Temporal client if this engine created it.
func (e *Engine) Close() {
	if e.closeClient && e.client != nil {
		e.client.Close()
	}
}

func (e *Engine) workerForQueue(queue string) (worker.Worker, error) {
	if queue == "" {
		queue = e.defaultQueue
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if w, ok := e.workers[queue]; ok {
		return w, nil
	}
	w := worker.New(e.client, queue, e.workerOpts)
	e.workers[queue] = w
	if e.started {
		if err := w.Start(); err != nil {
			e.logger.Error(context.Background(), "temporal engine: failed to start late-registered worker", "queue", queue, "error", err)
		}
	}
	return w, nil
}

func (e *Engine) ensureWorkersStarted() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.started = true
	for queue, w := range e.workers {
		if err := w.Start(); err != nil {
			e.logger.Error(context.Background(), "temporal engine: failed to start worker", "queue", queue, "error", err)
		}
	}
}

func convertRetryPolicy(rp engine.RetryPolicy) *temporal.RetryPolicy {
	if rp.MaxAttempts == 0 && rp.InitialInterval == 0 && rp.BackoffCoefficient == 0 {
		return nil
	}
	coeff := rp.BackoffCoefficient
	if coeff < 1 {
		coeff = 1
	}
	initial := rp.InitialInterval
	if initial <= 0 {
		initial = time.Second
	}
	return &temporal.RetryPolicy{
		InitialInterval:    initial,
		BackoffCoefficient: coeff,
		MaximumAttempts:    int32(rp.MaxAttempts),
	}
}

type workflowHandle struct {
	client client.Client
	run    client.WorkflowRun
}

func (h *workflowHandle) Wait(ctx context.Context, result any) error {
	return h.run.Get(ctx, result)
}

func (h *workflowHandle) Signal(ctx context.Context, name string, payload any) error {
	return h.client.SignalWorkflow(ctx, h.run.GetID(), h.run.GetRunID(), name, payload)
}

func (h *workflowHandle) Cancel(ctx context.Context) error {
	return h.client.CancelWorkflow(ctx, h.run.GetID(), h.run.GetRunID())
}
