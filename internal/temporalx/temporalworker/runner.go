package temporalworker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/nearby-backend/internal/data/repos"
	"github.com/yungbote/nearby-backend/internal/pkg/logger"
	"github.com/yungbote/nearby-backend/internal/temporalx"
	"github.com/yungbote/nearby-backend/internal/temporalx/jobrun"
)

const (
	startBackoff    = 250 * time.Millisecond
	startBackoffMax = 5 * time.Second
)

type Options struct {
	Concurrency  int
	StartMaxWait time.Duration
}

// Runner hosts the analysis workflow and its activity on the task queue.
type Runner struct {
	log  *logger.Logger
	tc   temporalsdkclient.Client
	cfg  temporalx.Config
	exec jobrun.Executor
	jobs repos.AnalysisJobRepo
	opts Options

	w        worker.Worker
	stopOnce sync.Once
}

func NewRunner(log *logger.Logger, tc temporalsdkclient.Client, cfg temporalx.Config, exec jobrun.Executor, jobs repos.AnalysisJobRepo, opts Options) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if exec == nil || jobs == nil {
		return nil, fmt.Errorf("temporal worker missing deps")
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.StartMaxWait <= 0 {
		opts.StartMaxWait = time.Minute
	}
	if cfg.TaskQueue == "" {
		cfg.TaskQueue = "nearby-analysis"
	}
	return &Runner{
		log:  log.With("component", "TemporalWorker"),
		tc:   tc,
		cfg:  cfg,
		exec: exec,
		jobs: jobs,
		opts: opts,
	}, nil
}

// Start polls the task queue until ctx is cancelled or Stop is called.
func (r *Runner) Start(ctx context.Context) error {
	r.log.Info("Starting Temporal worker", "address", r.cfg.Address, "namespace", r.cfg.Namespace, "task_queue", r.cfg.TaskQueue)

	deadline := time.Now().Add(r.opts.StartMaxWait)
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		w := r.newWorker()
		startErr := w.Start()
		if startErr == nil {
			r.w = w
			go func() {
				<-ctx.Done()
				r.Stop()
			}()
			r.log.Info("Temporal worker started", "task_queue", r.cfg.TaskQueue, "attempts", attempt)
			return nil
		}
		w.Stop()

		var nfe *serviceerror.NamespaceNotFound
		if errors.As(startErr, &nfe) && r.cfg.AutoRegisterNamespace {
			if err := temporalx.EnsureNamespace(ctx, r.log, r.cfg); err != nil {
				r.log.Warn("Temporal namespace ensure failed", "namespace", r.cfg.Namespace, "error", err)
			}
		}

		if time.Now().After(deadline) {
			if errors.As(startErr, &nfe) {
				return fmt.Errorf("temporal namespace not found (namespace=%s): %w", r.cfg.Namespace, startErr)
			}
			return startErr
		}
		r.log.Warn("Temporal worker failed to start; retrying", "attempt", attempt, "error", startErr)
		time.Sleep(temporalx.ClampBackoff(startBackoff, startBackoffMax, attempt))
	}
}

func (r *Runner) Stop() {
	if r == nil || r.w == nil {
		return
	}
	r.stopOnce.Do(r.w.Stop)
}

func (r *Runner) newWorker() worker.Worker {
	w := worker.New(r.tc, r.cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     r.opts.Concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: r.opts.Concurrency,
	})
	acts := &jobrun.Activities{Log: r.log, Exec: r.exec, Jobs: r.jobs}
	w.RegisterWorkflowWithOptions(jobrun.Workflow, workflow.RegisterOptions{Name: jobrun.WorkflowName})
	w.RegisterActivityWithOptions(acts.Tick, activity.RegisterOptions{Name: jobrun.ActivityTick})
	return w
}
