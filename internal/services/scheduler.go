package services

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/nearby-backend/internal/data/repos"
	"github.com/yungbote/nearby-backend/internal/data/repos/jobs"
	types "github.com/yungbote/nearby-backend/internal/domain"
	jobtypes "github.com/yungbote/nearby-backend/internal/domain/jobs"
	"github.com/yungbote/nearby-backend/internal/geo"
	"github.com/yungbote/nearby-backend/internal/jobs/payload"
	"github.com/yungbote/nearby-backend/internal/jobs/queue"
	"github.com/yungbote/nearby-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/nearby-backend/internal/pkg/errors"
	"github.com/yungbote/nearby-backend/internal/pkg/logger"
)

// PairScheduler turns "these users are near each other" into queued pair
// analysis. Every enqueue goes through the payload's deterministic id.
type PairScheduler interface {
	// ScheduleNeighborhood enqueues one pair job per nearby user and
	// returns how many were newly scheduled.
	ScheduleNeighborhood(ctx context.Context, userID uuid.UUID, origin geo.Point, radiusMeters float64) (int, error)
	// TriggerNeighborhood validates, then schedules in the background.
	TriggerNeighborhood(ctx context.Context, userID uuid.UUID, origin geo.Point, radiusMeters float64) error
	PromotePair(ctx context.Context, userA, userB uuid.UUID) (jobs.EnqueueOutcome, error)
	// Wait blocks until background scheduling has drained.
	Wait()
}

type pairScheduler struct {
	log    *logger.Logger
	index  ProximityIndex
	blocks repos.BlockRepo
	queue  queue.Enqueuer
	wg     sync.WaitGroup
}

func NewPairScheduler(baseLog *logger.Logger, index ProximityIndex, blocks repos.BlockRepo, q queue.Enqueuer) PairScheduler {
	return &pairScheduler{
		log:    baseLog.With("service", "PairScheduler"),
		index:  index,
		blocks: blocks,
		queue:  q,
	}
}

func (s *pairScheduler) ScheduleNeighborhood(ctx context.Context, userID uuid.UUID, origin geo.Point, radiusMeters float64) (int, error) {
	if userID == uuid.Nil {
		return 0, apperrors.Invalid("userId", "required")
	}
	hits, err := s.index.FindNearby(ctx, origin, radiusMeters, userID, 0)
	if err != nil {
		return 0, err
	}
	scheduled := 0
	for _, h := range hits {
		outcome, err := s.queue.Enqueue(ctx, payload.PairAnalysis{Requester: userID, Other: h.Profile.UserID}, jobtypes.PriorityNeighborhood)
		if err != nil {
			s.log.Warn("Pair enqueue failed", "user_id", userID, "pair_key", types.PairKey(userID, h.Profile.UserID), "error", err)
			continue
		}
		if outcome.Scheduled() {
			scheduled++
		}
	}
	s.log.Debug("Neighborhood scheduled", "user_id", userID, "candidates", len(hits), "scheduled", scheduled)
	return scheduled, nil
}

func (s *pairScheduler) TriggerNeighborhood(ctx context.Context, userID uuid.UUID, origin geo.Point, radiusMeters float64) error {
	if userID == uuid.Nil {
		return apperrors.Invalid("userId", "required")
	}
	if err := geo.ValidatePoint(origin); err != nil {
		return err
	}
	if err := geo.ValidateRadius(radiusMeters); err != nil {
		return err
	}
	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.ScheduleNeighborhood(bg, userID, origin, radiusMeters); err != nil {
			s.log.Warn("Neighborhood scheduling failed", "user_id", userID, "error", err)
		}
	}()
	return nil
}

func (s *pairScheduler) PromotePair(ctx context.Context, userA, userB uuid.UUID) (jobs.EnqueueOutcome, error) {
	if userA == uuid.Nil || userB == uuid.Nil {
		return "", apperrors.Invalid("userId", "required")
	}
	if userA == userB {
		return "", apperrors.Invalid("userId", "cannot pair a user with itself")
	}
	blocked, err := s.blocks.IsBlocked(dbctx.Context{Ctx: ctx}, userA, userB)
	if err != nil {
		return "", apperrors.Store("block check", err)
	}
	if blocked {
		return jobs.EnqueueDeduped, apperrors.ErrBlocked
	}
	return s.queue.Enqueue(ctx, payload.PairAnalysis{Requester: userA, Other: userB}, jobtypes.PriorityPromoted)
}

func (s *pairScheduler) Wait() { s.wg.Wait() }
