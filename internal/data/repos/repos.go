package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/nearby-backend/internal/data/repos/jobs"
	"github.com/yungbote/nearby-backend/internal/data/repos/social"
	"github.com/yungbote/nearby-backend/internal/pkg/logger"
)

type ProfileRepo = social.ProfileRepo
type BlockRepo = social.BlockRepo
type ConnectionAnalysisRepo = social.ConnectionAnalysisRepo

type AnalysisJobRepo = jobs.AnalysisJobRepo

type DescriptorSource = social.DescriptorSource
type Enrichment = social.Enrichment

func NewProfileRepo(db *gorm.DB, baseLog *logger.Logger) ProfileRepo {
	return social.NewProfileRepo(db, baseLog)
}
func NewBlockRepo(db *gorm.DB, baseLog *logger.Logger) BlockRepo {
	return social.NewBlockRepo(db, baseLog)
}
func NewConnectionAnalysisRepo(db *gorm.DB, baseLog *logger.Logger) ConnectionAnalysisRepo {
	return social.NewConnectionAnalysisRepo(db, baseLog)
}

func NewAnalysisJobRepo(db *gorm.DB, baseLog *logger.Logger) AnalysisJobRepo {
	return jobs.NewAnalysisJobRepo(db, baseLog)
}

// Set is every repo the service uses, built over one handle.
type Set struct {
	Profiles ProfileRepo
	Blocks   BlockRepo
	Analyses ConnectionAnalysisRepo
	Jobs     AnalysisJobRepo
}

func NewSet(db *gorm.DB, baseLog *logger.Logger) Set {
	return Set{
		Profiles: NewProfileRepo(db, baseLog),
		Blocks:   NewBlockRepo(db, baseLog),
		Analyses: NewConnectionAnalysisRepo(db, baseLog),
		Jobs:     NewAnalysisJobRepo(db, baseLog),
	}
}
