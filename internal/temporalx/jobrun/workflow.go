package jobrun

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/workflow"

	types "github.com/yungbote/nearby-backend/internal/domain"
)

const (
	defaultPollInterval  = 2 * time.Second
	maxSleep             = 15 * time.Minute
	continueTickLimit    = 500
	continueHistoryLimit = 10000
)

// Workflow drives one analysis_job row until it completes or parks. The
// workflow id is the job id.
func Workflow(ctx workflow.Context) error {
	jobID := strings.TrimSpace(workflow.GetInfo(ctx).WorkflowExecution.ID)
	if jobID == "" {
		return fmt.Errorf("jobrun: missing job_id")
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		HeartbeatTimeout:    time.Minute,
		// attempts are counted on the row, not here
		RetryPolicy: nil,
	})

	for tick := 1; ; tick++ {
		var out TickResult
		if err := workflow.ExecuteActivity(ctx, ActivityTick, jobID).Get(ctx, &out); err != nil {
			return err
		}

		switch out.Status {
		case types.JobStatusCompleted:
			return nil
		case types.JobStatusParked:
			return fmt.Errorf("job parked after %d attempts: %s", out.Attempts, out.Error)
		}

		if err := workflow.Sleep(ctx, nextWait(ctx, out.RunAfter)); err != nil {
			return err
		}
		if shouldContinueAsNew(ctx, tick) {
			return workflow.NewContinueAsNewError(ctx, Workflow)
		}
	}
}

func nextWait(ctx workflow.Context, runAfter *time.Time) time.Duration {
	if runAfter == nil || runAfter.IsZero() {
		return defaultPollInterval
	}
	d := runAfter.Sub(workflow.Now(ctx))
	if d <= 0 {
		return defaultPollInterval
	}
	if d > maxSleep {
		return maxSleep
	}
	return d
}

func shouldContinueAsNew(ctx workflow.Context, ticks int) bool {
	if ticks >= continueTickLimit {
		return true
	}
	info := workflow.GetInfo(ctx)
	return info != nil && info.GetCurrentHistoryLength() >= continueHistoryLimit
}
