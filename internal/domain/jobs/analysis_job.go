package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusParked    = "parked"
)

const (
	PriorityNeighborhood = 0
	PriorityEnrichment   = 5
	PriorityPromoted     = 10
)

// AnalysisJob is one logical unit of queued work. ID is deterministic, so
// concurrent enqueues of the same work collapse onto a single row.
type AnalysisJob struct {
	ID          string         `gorm:"primaryKey;column:id" json:"id"`
	Kind        string         `gorm:"column:kind;not null;index" json:"kind"`
	PairKey     string         `gorm:"column:pair_key;index" json:"pair_key,omitempty"`
	OwnerUserID uuid.UUID      `gorm:"type:uuid;column:owner_user_id;not null;index" json:"owner_user_id"`
	Status      string         `gorm:"column:status;not null;index" json:"status"`
	Priority    int            `gorm:"column:priority;not null;index" json:"priority"`
	Attempts    int            `gorm:"column:attempts;not null" json:"attempts"`
	MaxAttempts int            `gorm:"column:max_attempts;not null" json:"max_attempts"`
	Error       string         `gorm:"column:error" json:"error,omitempty"`
	Payload     datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	Result      datatypes.JSON `gorm:"column:result;type:jsonb" json:"result,omitempty"`
	LockedAt    *time.Time     `gorm:"column:locked_at;index" json:"locked_at,omitempty"`
	HeartbeatAt *time.Time     `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	LastErrorAt *time.Time     `gorm:"column:last_error_at;index" json:"last_error_at,omitempty"`
	RunAfter    *time.Time     `gorm:"column:run_after;index" json:"run_after,omitempty"`
	CompletedAt *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time      `gorm:"column:created_at;not null;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (AnalysisJob) TableName() string { return "analysis_job" }

// Active reports whether the row still represents pending or in-flight work.
func (j *AnalysisJob) Active() bool {
	if j == nil {
		return false
	}
	switch j.Status {
	case StatusQueued, StatusRunning:
		return true
	case StatusFailed:
		return j.Attempts < j.MaxAttempts
	default:
		return false
	}
}
