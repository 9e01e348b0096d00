package runtime

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/nearby-backend/internal/data/repos"
	types "github.com/yungbote/nearby-backend/internal/domain"
	"github.com/yungbote/nearby-backend/internal/observability"
	"github.com/yungbote/nearby-backend/internal/pkg/dbctx"
	"github.com/yungbote/nearby-backend/internal/pkg/logger"
)

type ExecutorConfig struct {
	RetryDelay     time.Duration
	StaleRunning   time.Duration
	HeartbeatEvery time.Duration
}

func (c ExecutorConfig) withDefaults() ExecutorConfig {
	if c.RetryDelay <= 0 {
		c.RetryDelay = 30 * time.Second
	}
	if c.StaleRunning <= 0 {
		c.StaleRunning = 10 * time.Minute
	}
	if c.HeartbeatEvery <= 0 {
		c.HeartbeatEvery = c.StaleRunning / 4
	}
	return c
}

// Executor claims rows and runs them through the registry. Both the polling
// pool and the temporal activity go through it.
type Executor struct {
	log      *logger.Logger
	repo     repos.AnalysisJobRepo
	registry *Registry
	cfg      ExecutorConfig
}

func NewExecutor(baseLog *logger.Logger, repo repos.AnalysisJobRepo, registry *Registry, cfg ExecutorConfig) *Executor {
	return &Executor{
		log:      baseLog.With("component", "JobExecutor"),
		repo:     repo,
		registry: registry,
		cfg:      cfg.withDefaults(),
	}
}

// RunNext claims the next runnable row and executes it. It reports whether
// a row was claimed.
func (e *Executor) RunNext(ctx context.Context) (bool, error) {
	job, err := e.repo.ClaimNextRunnable(dbctx.Context{Ctx: ctx}, e.cfg.StaleRunning)
	if err != nil {
		return false, fmt.Errorf("claim next: %w", err)
	}
	if job == nil {
		return false, nil
	}
	e.Execute(ctx, job)
	return true, nil
}

// ClaimAndExecute runs one specific row if it is runnable.
func (e *Executor) ClaimAndExecute(ctx context.Context, id string) (*types.AnalysisJob, error) {
	job, err := e.repo.ClaimByID(dbctx.Context{Ctx: ctx}, id, e.cfg.StaleRunning)
	if err != nil {
		return nil, fmt.Errorf("claim %s: %w", id, err)
	}
	if job == nil {
		return nil, nil
	}
	e.Execute(ctx, job)
	return job, nil
}

// Execute runs a claimed job to a terminal write. Cancelling ctx does not
// interrupt the job.
func (e *Executor) Execute(ctx context.Context, job *types.AnalysisJob) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	ctx, span := observability.Tracer().Start(ctx, "job."+job.Kind, trace.WithAttributes(
		attribute.String("job.id", job.ID),
		attribute.String("job.kind", job.Kind),
		attribute.Int("job.attempt", job.Attempts),
	))
	defer span.End()

	jc, decodeErr := NewContext(ctx, job, e.repo, e.log.With("job_id", job.ID, "kind", job.Kind), e.cfg.RetryDelay)

	stopHeartbeat := e.heartbeat(ctx, job.ID)
	defer stopHeartbeat()

	func() {
		defer func() {
			if r := recover(); r != nil {
				e.log.Error("Job handler panic", "job_id", job.ID, "kind", job.Kind, "panic", r)
				jc.Fail("panic", fmt.Errorf("panic: %v", r))
			}
		}()
		if decodeErr != nil {
			jc.Fail("decode", decodeErr)
			return
		}
		if err := e.registry.Dispatch(jc); err != nil {
			// pipelines usually call jc.Fail themselves
			jc.Fail("run", err)
			return
		}
		jc.Succeed("done", nil)
	}()

	outcome := jc.Outcome()
	span.SetAttributes(attribute.String("job.outcome", outcome))
	if outcome == "failed" || outcome == "parked" {
		span.SetStatus(codes.Error, jc.Job.Error)
	}
	observability.Current().ObserveJob(job.Kind, outcome, time.Since(start))
	e.log.Debug("Job finished", "job_id", job.ID, "kind", job.Kind, "outcome", outcome, "duration", time.Since(start))
}

func (e *Executor) heartbeat(ctx context.Context, id string) func() {
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(e.cfg.HeartbeatEvery)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := e.repo.Heartbeat(dbctx.Context{Ctx: ctx}, id); err != nil {
					e.log.Warn("Heartbeat failed", "job_id", id, "error", err)
				}
			}
		}
	}()
	return func() {
		close(done)
		<-stopped
	}
}
