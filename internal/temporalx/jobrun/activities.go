package jobrun

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/yungbote/nearby-backend/internal/data/repos"
	types "github.com/yungbote/nearby-backend/internal/domain"
	jobrt "github.com/yungbote/nearby-backend/internal/jobs/runtime"
	"github.com/yungbote/nearby-backend/internal/pkg/dbctx"
	"github.com/yungbote/nearby-backend/internal/pkg/logger"
)

// Executor is the slice of runtime.Executor the activity needs.
type Executor interface {
	ClaimAndExecute(ctx context.Context, id string) (*types.AnalysisJob, error)
}

var _ Executor = (*jobrt.Executor)(nil)

type Activities struct {
	Log  *logger.Logger
	Exec Executor
	Jobs repos.AnalysisJobRepo
	// HeartbeatEvery is the temporal heartbeat cadence; the executor keeps
	// the row heartbeat on its own.
	HeartbeatEvery time.Duration
}

// Tick claims and runs the job if it is runnable, then reports the row as
// it stands afterwards.
func (a *Activities) Tick(ctx context.Context, jobID string) (TickResult, error) {
	res := TickResult{JobID: strings.TrimSpace(jobID)}
	if a == nil || a.Exec == nil || a.Jobs == nil {
		return res, fmt.Errorf("jobrun: activity not configured")
	}
	if res.JobID == "" {
		return res, fmt.Errorf("jobrun: missing job_id")
	}

	stop := a.startHeartbeat(ctx)
	_, err := a.Exec.ClaimAndExecute(ctx, res.JobID)
	stop()
	if err != nil {
		return res, err
	}

	job, err := a.Jobs.GetByID(dbctx.Context{Ctx: ctx}, res.JobID)
	if err != nil {
		return res, err
	}
	if job == nil {
		return res, fmt.Errorf("jobrun: job %s not found", res.JobID)
	}
	res.Status = job.Status
	res.Attempts = job.Attempts
	res.RunAfter = job.RunAfter
	res.Error = job.Error
	return res, nil
}

func (a *Activities) startHeartbeat(ctx context.Context) func() {
	every := a.HeartbeatEvery
	if every <= 0 {
		every = 10 * time.Second
	}
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				if activity.IsActivity(ctx) {
					activity.RecordHeartbeat(ctx)
				}
			}
		}
	}()
	return func() {
		close(done)
		<-stopped
	}
}
