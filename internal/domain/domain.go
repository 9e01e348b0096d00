package domain

import (
	"github.com/yungbote/nearby-backend/internal/domain/jobs"
	"github.com/yungbote/nearby-backend/internal/domain/social"
)

type Profile = social.Profile
type Block = social.Block
type Tags = social.Tags
type ConnectionAnalysis = social.ConnectionAnalysis

type AnalysisJob = jobs.AnalysisJob

const (
	JobStatusQueued    = jobs.StatusQueued
	JobStatusRunning   = jobs.StatusRunning
	JobStatusCompleted = jobs.StatusCompleted
	JobStatusFailed    = jobs.StatusFailed
	JobStatusParked    = jobs.StatusParked
)

const (
	PriorityNeighborhood = jobs.PriorityNeighborhood
	PriorityEnrichment   = jobs.PriorityEnrichment
	PriorityPromoted     = jobs.PriorityPromoted
)

// AllModels lists every table the service owns, in migration order.
func AllModels() []any {
	return []any{
		&social.Profile{},
		&social.Block{},
		&social.ConnectionAnalysis{},
		&jobs.AnalysisJob{},
	}
}
