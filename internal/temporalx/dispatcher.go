package temporalx

import (
	"context"
	"fmt"

	enumspb "go.temporal.io/api/enums/v1"
	temporalsdkclient "go.temporal.io/sdk/client"

	types "github.com/yungbote/nearby-backend/internal/domain"
	"github.com/yungbote/nearby-backend/internal/temporalx/jobrun"
)

// Dispatcher starts one workflow per job row. The workflow id is the job
// id, so repeated starts for live work attach to the running execution.
type Dispatcher struct {
	tc        temporalsdkclient.Client
	taskQueue string
}

func NewDispatcher(tc temporalsdkclient.Client, cfg Config) *Dispatcher {
	cfg = cfg.withDefaults()
	return &Dispatcher{tc: tc, taskQueue: cfg.TaskQueue}
}

func (d *Dispatcher) Dispatch(ctx context.Context, job *types.AnalysisJob) error {
	if d == nil || d.tc == nil {
		return fmt.Errorf("temporal dispatcher not configured")
	}
	_, err := d.tc.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:                       job.ID,
		TaskQueue:                d.taskQueue,
		WorkflowIDReusePolicy:    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowIDConflictPolicy: enumspb.WORKFLOW_ID_CONFLICT_POLICY_USE_EXISTING,
	}, jobrun.WorkflowName)
	if err != nil {
		return fmt.Errorf("start workflow %s: %w", job.ID, err)
	}
	return nil
}
