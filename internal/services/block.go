package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/nearby-backend/internal/data/db"
	"github.com/yungbote/nearby-backend/internal/data/repos"
	"github.com/yungbote/nearby-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/nearby-backend/internal/pkg/errors"
	"github.com/yungbote/nearby-backend/internal/pkg/logger"
)

type BlockService interface {
	// Block records blocker→blocked and drops any analysis between the two.
	Block(ctx context.Context, blocker, blocked uuid.UUID) error
	Unblock(ctx context.Context, blocker, blocked uuid.UUID) error
}

type blockService struct {
	log      *logger.Logger
	tx       db.TxRunner
	profiles repos.ProfileRepo
	blocks   repos.BlockRepo
	analyses repos.ConnectionAnalysisRepo
}

func NewBlockService(baseLog *logger.Logger, tx db.TxRunner, profiles repos.ProfileRepo, blocks repos.BlockRepo, analyses repos.ConnectionAnalysisRepo) BlockService {
	return &blockService{
		log:      baseLog.With("service", "BlockService"),
		tx:       tx,
		profiles: profiles,
		blocks:   blocks,
		analyses: analyses,
	}
}

func (s *blockService) Block(ctx context.Context, blocker, blocked uuid.UUID) error {
	if err := validatePair(blocker, blocked); err != nil {
		return err
	}
	err := s.tx.InTx(ctx, func(dbc dbctx.Context) error {
		if err := s.profiles.LockPair(dbc, blocker, blocked); err != nil {
			return err
		}
		if _, err := s.blocks.Create(dbc, blocker, blocked); err != nil {
			return err
		}
		return s.analyses.DeletePair(dbc, blocker, blocked)
	})
	if err != nil {
		return apperrors.Store("block", err)
	}
	s.log.Debug("User blocked", "user_id", blocker)
	return nil
}

func (s *blockService) Unblock(ctx context.Context, blocker, blocked uuid.UUID) error {
	if err := validatePair(blocker, blocked); err != nil {
		return err
	}
	if _, err := s.blocks.Delete(dbctx.Context{Ctx: ctx}, blocker, blocked); err != nil {
		return apperrors.Store("unblock", err)
	}
	return nil
}

func validatePair(a, b uuid.UUID) error {
	if a == uuid.Nil || b == uuid.Nil {
		return apperrors.Invalid("userId", "required")
	}
	if a == b {
		return apperrors.Invalid("userId", "cannot block yourself")
	}
	return nil
}
