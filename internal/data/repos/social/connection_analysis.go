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

type ConnectionAnalysisRepo interface {
	Upsert(dbc dbctx.Context, row *types.ConnectionAnalysis) error
	Get(dbc dbctx.Context, fromUserID, toUserID uuid.UUID) (*types.ConnectionAnalysis, error)
	ListFrom(dbc dbctx.Context, fromUserID uuid.UUID, limit int) ([]*types.ConnectionAnalysis, error)
	DeletePair(dbc dbctx.Context, a, b uuid.UUID) error
}

type connectionAnalysisRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConnectionAnalysisRepo(db *gorm.DB, baseLog *logger.Logger) ConnectionAnalysisRepo {
	return &connectionAnalysisRepo{
		db:  db,
		log: baseLog.With("repo", "ConnectionAnalysisRepo"),
	}
}

// Upsert writes one direction of a pair, keyed by (from_user_id, to_user_id).
func (r *connectionAnalysisRepo) Upsert(dbc dbctx.Context, row *types.ConnectionAnalysis) error {
	if row == nil || row.FromUserID == uuid.Nil || row.ToUserID == uuid.Nil {
		return nil
	}
	now := time.Now().UTC()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.PairKey == "" {
		row.PairKey = types.PairKey(row.FromUserID, row.ToUserID)
	}
	if row.ComputedAt.IsZero() {
		row.ComputedAt = now
	}
	row.UpdatedAt = now
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "from_user_id"}, {Name: "to_user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"snippet",
				"description",
				"score",
				"from_hash",
				"to_hash",
				"degraded",
				"computed_at",
				"updated_at",
			}),
		}).
		Create(row).Error
}

func (r *connectionAnalysisRepo) Get(dbc dbctx.Context, fromUserID, toUserID uuid.UUID) (*types.ConnectionAnalysis, error) {
	if fromUserID == uuid.Nil || toUserID == uuid.Nil {
		return nil, nil
	}
	var out []*types.ConnectionAnalysis
	if err := dbc.DB(r.db).
		Where("from_user_id = ? AND to_user_id = ?", fromUserID, toUserID).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *connectionAnalysisRepo) ListFrom(dbc dbctx.Context, fromUserID uuid.UUID, limit int) ([]*types.ConnectionAnalysis, error) {
	var out []*types.ConnectionAnalysis
	if fromUserID == uuid.Nil {
		return out, nil
	}
	q := dbc.DB(r.db).
		Where("from_user_id = ?", fromUserID).
		Order("score DESC, computed_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// DeletePair removes both directions of a pair.
func (r *connectionAnalysisRepo) DeletePair(dbc dbctx.Context, a, b uuid.UUID) error {
	return dbc.DB(r.db).
		Where("pair_key = ?", types.PairKey(a, b)).
		Delete(&types.ConnectionAnalysis{}).Error
}
