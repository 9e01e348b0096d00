package social

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/nearby-backend/internal/domain"
	"github.com/yungbote/nearby-backend/internal/pkg/dbctx"
	"github.com/yungbote/nearby-backend/internal/pkg/logger"
)

type BlockRepo interface {
	Create(dbc dbctx.Context, blockerID, blockedID uuid.UUID) (bool, error)
	Delete(dbc dbctx.Context, blockerID, blockedID uuid.UUID) (bool, error)
	// IsBlocked is true if either user blocked the other.
	IsBlocked(dbc dbctx.Context, a, b uuid.UUID) (bool, error)
}

type blockRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBlockRepo(db *gorm.DB, baseLog *logger.Logger) BlockRepo {
	return &blockRepo{
		db:  db,
		log: baseLog.With("repo", "BlockRepo"),
	}
}

func (r *blockRepo) Create(dbc dbctx.Context, blockerID, blockedID uuid.UUID) (bool, error) {
	if blockerID == uuid.Nil || blockedID == uuid.Nil || blockerID == blockedID {
		return false, nil
	}
	row := &types.Block{
		ID:        uuid.New(),
		BlockerID: blockerID,
		BlockedID: blockedID,
		CreatedAt: time.Now().UTC(),
	}
	res := dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "blocker_id"}, {Name: "blocked_id"}},
			DoNothing: true,
		}).
		Create(row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *blockRepo) Delete(dbc dbctx.Context, blockerID, blockedID uuid.UUID) (bool, error) {
	res := dbc.DB(r.db).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&types.Block{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *blockRepo) IsBlocked(dbc dbctx.Context, a, b uuid.UUID) (bool, error) {
	if a == uuid.Nil || b == uuid.Nil {
		return false, nil
	}
	var count int64
	err := dbc.DB(r.db).
		Model(&types.Block{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
