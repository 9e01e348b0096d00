package social

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/nearby-backend/internal/domain"
	"github.com/yungbote/nearby-backend/internal/geo"
	"github.com/yungbote/nearby-backend/internal/pkg/dbctx"
	"github.com/yungbote/nearby-backend/internal/pkg/logger"
)

type DescriptorSource struct {
	Bio          string
	LookingFor   string
	InterestTags []string
}

type Enrichment struct {
	Descriptor     string
	DescriptorHash string
	Embedding      *pgvector.Vector
	EnrichedAt     time.Time
}

type ProfileRepo interface {
	Ensure(dbc dbctx.Context, userID uuid.UUID, displayName string) error
	GetByID(dbc dbctx.Context, userID uuid.UUID) (*types.Profile, error)
	GetByIDs(dbc dbctx.Context, userIDs []uuid.UUID) ([]*types.Profile, error)
	FindInBox(dbc dbctx.Context, box geo.BoundingBox, excludeUserID uuid.UUID) ([]*types.Profile, error)
	UpdateLocation(dbc dbctx.Context, userID uuid.UUID, lat, lng float64) error
	ClearLocation(dbc dbctx.Context, userID uuid.UUID) error
	UpdateVisibility(dbc dbctx.Context, userID uuid.UUID, visible bool) error
	UpdateDescriptorSource(dbc dbctx.Context, userID uuid.UUID, src DescriptorSource) error
	SetEnrichment(dbc dbctx.Context, userID uuid.UUID, e Enrichment) error
	LockPair(dbc dbctx.Context, a, b uuid.UUID) error
}

type profileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProfileRepo(db *gorm.DB, baseLog *logger.Logger) ProfileRepo {
	return &profileRepo{
		db:  db,
		log: baseLog.With("repo", "ProfileRepo"),
	}
}

// Ensure creates an empty, invisible profile for a user on first write.
func (r *profileRepo) Ensure(dbc dbctx.Context, userID uuid.UUID, displayName string) error {
	if userID == uuid.Nil {
		return nil
	}
	row := &types.Profile{
		UserID:      userID,
		DisplayName: displayName,
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(row).Error
}

func (r *profileRepo) GetByID(dbc dbctx.Context, userID uuid.UUID) (*types.Profile, error) {
	if userID == uuid.Nil {
		return nil, nil
	}
	var out []*types.Profile
	if err := dbc.DB(r.db).
		Where("user_id = ?", userID).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *profileRepo) GetByIDs(dbc dbctx.Context, userIDs []uuid.UUID) ([]*types.Profile, error) {
	var out []*types.Profile
	if len(userIDs) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("user_id IN ?", userIDs).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// FindInBox is the coarse phase of nearby search. It applies visibility,
// self-exclusion and blocks in both directions; exact distance is left to
// the caller.
func (r *profileRepo) FindInBox(dbc dbctx.Context, box geo.BoundingBox, excludeUserID uuid.UUID) ([]*types.Profile, error) {
	var out []*types.Profile
	q := dbc.DB(r.db).
		Where("visible = ?", true).
		Where("lat IS NOT NULL AND lng IS NOT NULL").
		Where("lat BETWEEN ? AND ?", box.MinLat, box.MaxLat).
		Where("lng BETWEEN ? AND ?", box.MinLng, box.MaxLng)
	if excludeUserID != uuid.Nil {
		q = q.Where("user_id <> ?", excludeUserID).
			Where(`NOT EXISTS (
        SELECT 1 FROM block b
        WHERE (b.blocker_id = ? AND b.blocked_id = profile.user_id)
           OR (b.blocker_id = profile.user_id AND b.blocked_id = ?)
      )`, excludeUserID, excludeUserID)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// LockPair row-locks both profiles in user id order for the rest of the
// caller's transaction. Writers that must agree on a pair's block state
// (analysis persistence, blocking) take it first. Only postgres needs it;
// sqlite already serialises writers.
func (r *profileRepo) LockPair(dbc dbctx.Context, a, b uuid.UUID) error {
	q := dbc.DB(r.db)
	if q.Dialector.Name() != "postgres" {
		return nil
	}
	var ids []uuid.UUID
	return q.Model(&types.Profile{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id IN ?", []uuid.UUID{a, b}).
		Order("user_id").
		Pluck("user_id", &ids).Error
}

func (r *profileRepo) UpdateLocation(dbc dbctx.Context, userID uuid.UUID, lat, lng float64) error {
	return r.updateFields(dbc, userID, map[string]interface{}{
		"lat": lat,
		"lng": lng,
	})
}

func (r *profileRepo) ClearLocation(dbc dbctx.Context, userID uuid.UUID) error {
	return r.updateFields(dbc, userID, map[string]interface{}{
		"lat": gorm.Expr("NULL"),
		"lng": gorm.Expr("NULL"),
	})
}

func (r *profileRepo) UpdateVisibility(dbc dbctx.Context, userID uuid.UUID, visible bool) error {
	return r.updateFields(dbc, userID, map[string]interface{}{"visible": visible})
}

// UpdateDescriptorSource stores the user-authored inputs. The descriptor and
// its hash are left alone until enrichment recomputes them.
func (r *profileRepo) UpdateDescriptorSource(dbc dbctx.Context, userID uuid.UUID, src DescriptorSource) error {
	return r.updateFields(dbc, userID, map[string]interface{}{
		"bio":           src.Bio,
		"looking_for":   src.LookingFor,
		"interest_tags": types.Tags(src.InterestTags),
	})
}

func (r *profileRepo) SetEnrichment(dbc dbctx.Context, userID uuid.UUID, e Enrichment) error {
	updates := map[string]interface{}{
		"descriptor":      e.Descriptor,
		"descriptor_hash": e.DescriptorHash,
		"enriched_at":     e.EnrichedAt,
	}
	if e.Embedding != nil {
		updates["embedding"] = e.Embedding
	}
	return r.updateFields(dbc, userID, updates)
}

func (r *profileRepo) updateFields(dbc dbctx.Context, userID uuid.UUID, updates map[string]interface{}) error {
	if userID == uuid.Nil {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return dbc.DB(r.db).
		Model(&types.Profile{}).
		Where("user_id = ?", userID).
		Updates(updates).Error
}
