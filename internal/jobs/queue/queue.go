package queue

import (
	"context"
	"fmt"

	"github.com/yungbote/nearby-backend/internal/data/repos"
	"github.com/yungbote/nearby-backend/internal/data/repos/jobs"
	types "github.com/yungbote/nearby-backend/internal/domain"
	"github.com/yungbote/nearby-backend/internal/jobs/payload"
	"github.com/yungbote/nearby-backend/internal/observability"
	"github.com/yungbote/nearby-backend/internal/pkg/ctxutil"
	"github.com/yungbote/nearby-backend/internal/pkg/dbctx"
	"github.com/yungbote/nearby-backend/internal/pkg/logger"
)

// Dispatcher hands a freshly scheduled row to an external runner.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *types.AnalysisJob) error
}

type Enqueuer interface {
	Enqueue(ctx context.Context, p payload.Payload, priority int) (jobs.EnqueueOutcome, error)
}

type Config struct {
	MaxAttempts int
}

type Queue struct {
	log         *logger.Logger
	repo        repos.AnalysisJobRepo
	maxAttempts int
	wake        chan struct{}
	dispatcher  Dispatcher
}

func New(baseLog *logger.Logger, repo repos.AnalysisJobRepo, cfg Config) *Queue {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &Queue{
		log:         baseLog.With("component", "AnalysisQueue"),
		repo:        repo,
		maxAttempts: cfg.MaxAttempts,
		wake:        make(chan struct{}, 1),
	}
}

// SetDispatcher routes scheduled rows to d instead of leaving them for the
// polling pool.
func (q *Queue) SetDispatcher(d Dispatcher) { q.dispatcher = d }

// Wake fires after a row becomes runnable.
func (q *Queue) Wake() <-chan struct{} { return q.wake }

// Enqueue writes the job row keyed by the payload's deterministic id.
// Duplicate work collapses onto the existing row.
func (q *Queue) Enqueue(ctx context.Context, p payload.Payload, priority int) (jobs.EnqueueOutcome, error) {
	raw, err := payload.Encode(p, ctxutil.GetTraceData(ctx))
	if err != nil {
		return "", err
	}
	job := &types.AnalysisJob{
		ID:          p.JobID(),
		Kind:        string(p.Kind()),
		PairKey:     p.PairKey(),
		OwnerUserID: p.Owner(),
		Status:      types.JobStatusQueued,
		Priority:    priority,
		MaxAttempts: q.maxAttempts,
		Payload:     raw,
	}
	outcome, err := q.repo.Enqueue(dbctx.Context{Ctx: ctx}, job)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", job.ID, err)
	}
	observability.Current().IncEnqueue(job.Kind, string(outcome))
	q.log.Debug("Enqueued job", "job_id", job.ID, "kind", job.Kind, "outcome", outcome, "priority", priority)

	if !outcome.Scheduled() {
		return outcome, nil
	}
	if q.dispatcher != nil {
		if err := q.dispatcher.Dispatch(ctx, job); err != nil {
			return outcome, fmt.Errorf("dispatch %s: %w", job.ID, err)
		}
		return outcome, nil
	}
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return outcome, nil
}
