package runtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/yungbote/nearby-backend/internal/data/repos"
	types "github.com/yungbote/nearby-backend/internal/domain"
	"github.com/yungbote/nearby-backend/internal/jobs/payload"
	"github.com/yungbote/nearby-backend/internal/pkg/ctxutil"
	"github.com/yungbote/nearby-backend/internal/pkg/dbctx"
	"github.com/yungbote/nearby-backend/internal/pkg/logger"
)

/*
Context is the execution handle for one claimed job. Pipelines never touch
the analysis_job row directly; they finish through Succeed or Fail.
	- Ctx: detached from whoever enqueued the work
	- Job: the claimed row
	- Payload: decoded, validated job input
*/
type Context struct {
	Ctx        context.Context
	Job        *types.AnalysisJob
	Repo       repos.AnalysisJobRepo
	Payload    payload.Payload
	Log        *logger.Logger
	RetryDelay time.Duration

	outcome  string
	finished bool
}

// NewContext decodes the job payload and carries its trace ids onto ctx.
func NewContext(ctx context.Context, job *types.AnalysisJob, repo repos.AnalysisJobRepo, log *logger.Logger, retryDelay time.Duration) (*Context, error) {
	c := &Context{
		Ctx:        ctxutil.Default(ctx),
		Job:        job,
		Repo:       repo,
		Log:        log,
		RetryDelay: retryDelay,
	}
	if job == nil {
		return c, nil
	}
	p, td, err := payload.Decode(job.Payload)
	if err != nil {
		return c, err
	}
	c.Payload = p
	if td != nil {
		c.Ctx = ctxutil.WithTraceData(c.Ctx, td)
	}
	return c, nil
}

// Outcome is the label the last Succeed/Fail recorded ("" while running).
func (c *Context) Outcome() string { return c.outcome }

func (c *Context) Finished() bool { return c.finished }

// Succeed completes the job and stores result as JSON. outcome is a short
// label for logs and metrics ("analyzed", "cache_hit", "not_ready", ...).
func (c *Context) Succeed(outcome string, result any) {
	if c == nil || c.finished {
		return
	}
	c.finished = true
	c.outcome = outcome
	if c.Job == nil || c.Repo == nil {
		return
	}
	var raw []byte
	if result != nil {
		b, err := json.Marshal(result)
		if err == nil {
			raw = b
		}
	}
	if err := c.Repo.MarkCompleted(dbctx.Context{Ctx: c.Ctx}, c.Job.ID, raw); err != nil {
		c.logger().Warn("MarkCompleted failed", "job_id", c.Job.ID, "error", err)
		return
	}
	now := time.Now().UTC()
	c.Job.Status = types.JobStatusCompleted
	c.Job.CompletedAt = &now
	c.Job.Result = raw
	c.Job.Error = ""
}

// Fail records err against the job. The queue retries with backoff until
// the attempt cap, after which the row is parked.
func (c *Context) Fail(stage string, err error) {
	if c == nil || c.finished {
		return
	}
	c.finished = true
	c.outcome = "failed"
	msg := stage
	if err != nil {
		msg = stage + ": " + err.Error()
	}
	if c.Job == nil || c.Repo == nil {
		return
	}
	parked, mErr := c.Repo.MarkFailed(dbctx.Context{Ctx: c.Ctx}, c.Job.ID, msg, c.RetryDelay)
	if mErr != nil {
		c.logger().Error("MarkFailed failed", "job_id", c.Job.ID, "error", mErr)
		return
	}
	c.Job.Error = msg
	if parked {
		c.outcome = "parked"
		c.Job.Status = types.JobStatusParked
		c.logger().Warn("Job parked", "job_id", c.Job.ID, "attempts", c.Job.Attempts, "error", msg)
		return
	}
	c.Job.Status = types.JobStatusFailed
	c.logger().Warn("Job failed", "job_id", c.Job.ID, "attempts", c.Job.Attempts, "error", msg)
}

func (c *Context) logger() *logger.Logger {
	if c.Log == nil {
		return logger.Nop()
	}
	return c.Log
}
