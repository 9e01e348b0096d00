package jobrun

import "time"

const (
	WorkflowName = "analysis_job_run"
	ActivityTick = "analysis_job_tick"
)

type TickResult struct {
	JobID    string     `json:"job_id"`
	Status   string     `json:"status"`
	Attempts int        `json:"attempts"`
	RunAfter *time.Time `json:"run_after,omitempty"`
	Error    string     `json:"error,omitempty"`
}
