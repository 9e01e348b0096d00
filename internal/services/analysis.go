package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/nearby-backend/internal/data/repos"
	types "github.com/yungbote/nearby-backend/internal/domain"
	jobtypes "github.com/yungbote/nearby-backend/internal/domain/jobs"
	"github.com/yungbote/nearby-backend/internal/jobs/payload"
	"github.com/yungbote/nearby-backend/internal/jobs/queue"
	"github.com/yungbote/nearby-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/nearby-backend/internal/pkg/errors"
	"github.com/yungbote/nearby-backend/internal/pkg/logger"
)

// AnalysisView is the viewer's signal about another user. Ready=false means
// "no signal yet" and always carries a zero score.
type AnalysisView struct {
	AboutUserID uuid.UUID  `json:"aboutUserId"`
	Ready       bool       `json:"ready"`
	Score       int        `json:"score"`
	Snippet     string     `json:"snippet"`
	Description string     `json:"description"`
	ComputedAt  *time.Time `json:"computedAt,omitempty"`
}

type AnalysisService interface {
	Get(ctx context.Context, viewer, about uuid.UUID) (*AnalysisView, error)
}

type analysisService struct {
	log      *logger.Logger
	profiles repos.ProfileRepo
	blocks   repos.BlockRepo
	analyses repos.ConnectionAnalysisRepo
	queue    queue.Enqueuer
}

func NewAnalysisService(baseLog *logger.Logger, profiles repos.ProfileRepo, blocks repos.BlockRepo, analyses repos.ConnectionAnalysisRepo, q queue.Enqueuer) AnalysisService {
	return &analysisService{
		log:      baseLog.With("service", "AnalysisService"),
		profiles: profiles,
		blocks:   blocks,
		analyses: analyses,
		queue:    q,
	}
}

// Get serves a stored analysis only while both descriptor hashes still
// match. Missing, stale or degraded rows read as "no signal". Missing and
// stale rows queue a recompute when both sides are enriched; a fresh
// degraded row waits for a descriptor change.
func (s *analysisService) Get(ctx context.Context, viewer, about uuid.UUID) (*AnalysisView, error) {
	if about == uuid.Nil {
		return nil, apperrors.Invalid("userId", "required")
	}
	if viewer == about {
		return nil, apperrors.Invalid("userId", "cannot analyse yourself")
	}
	dbc := dbctx.Context{Ctx: ctx}
	empty := &AnalysisView{AboutUserID: about}

	blocked, err := s.blocks.IsBlocked(dbc, viewer, about)
	if err != nil {
		return nil, apperrors.Store("block check", err)
	}
	if blocked {
		return empty, nil
	}

	profs, err := s.profiles.GetByIDs(dbc, []uuid.UUID{viewer, about})
	if err != nil {
		return nil, apperrors.Store("load profiles", err)
	}
	var me, them *types.Profile
	for _, p := range profs {
		switch p.UserID {
		case viewer:
			me = p
		case about:
			them = p
		}
	}
	if them == nil {
		return nil, apperrors.ErrNotFound
	}
	if me == nil || !me.IsEnriched() || !them.IsEnriched() {
		return empty, nil
	}

	row, err := s.analyses.Get(dbc, viewer, about)
	if err != nil {
		return nil, apperrors.Store("load analysis", err)
	}
	if row != nil && row.FreshFor(me.DescriptorHash, them.DescriptorHash) {
		if row.Degraded {
			return empty, nil
		}
		at := row.ComputedAt
		return &AnalysisView{
			AboutUserID: about,
			Ready:       true,
			Score:       row.Score,
			Snippet:     row.Snippet,
			Description: row.Description,
			ComputedAt:  &at,
		}, nil
	}

	if _, err := s.queue.Enqueue(ctx, payload.PairAnalysis{Requester: viewer, Other: about}, jobtypes.PriorityNeighborhood); err != nil {
		s.log.Warn("Recompute enqueue failed", "pair_key", types.PairKey(viewer, about), "error", err)
	}
	return empty, nil
}
