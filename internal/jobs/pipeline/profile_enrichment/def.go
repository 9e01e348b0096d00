package profile_enrichment

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/nearby-backend/internal/clients/oracle"
	"github.com/yungbote/nearby-backend/internal/data/repos"
	"github.com/yungbote/nearby-backend/internal/geo"
	"github.com/yungbote/nearby-backend/internal/jobs/payload"
	"github.com/yungbote/nearby-backend/internal/pkg/logger"
)

// NeighborhoodScheduler re-enqueues pair analysis around a user once their
// descriptor changes.
type NeighborhoodScheduler interface {
	ScheduleNeighborhood(ctx context.Context, userID uuid.UUID, origin geo.Point, radiusMeters float64) (int, error)
}

type Pipeline struct {
	log       *logger.Logger
	profiles  repos.ProfileRepo
	oracle    oracle.Oracle
	scheduler NeighborhoodScheduler
	radius    float64
}

func New(
	baseLog *logger.Logger,
	profiles repos.ProfileRepo,
	orc oracle.Oracle,
	scheduler NeighborhoodScheduler,
	radiusMeters float64,
) *Pipeline {
	return &Pipeline{
		log:       baseLog.With("job", string(payload.KindProfileEnrichment)),
		profiles:  profiles,
		oracle:    orc,
		scheduler: scheduler,
		radius:    radiusMeters,
	}
}

func (p *Pipeline) Type() string { return string(payload.KindProfileEnrichment) }
