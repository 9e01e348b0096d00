package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/nearby-backend/internal/data/repos"
	types "github.com/yungbote/nearby-backend/internal/domain"
	"github.com/yungbote/nearby-backend/internal/geo"
	"github.com/yungbote/nearby-backend/internal/pkg/dbctx"
	"github.com/yungbote/nearby-backend/internal/pkg/logger"
)

// Nearby is one hit from the proximity search with its exact distance.
// It never leaves the process as-is; views go through the privacy grid.
type Nearby struct {
	Profile        *types.Profile
	DistanceMeters float64
}

// ProximityIndex finds visible, unblocked users around a point, nearest
// first. Only profiles with visible=true are ever returned.
type ProximityIndex interface {
	FindNearby(ctx context.Context, origin geo.Point, radiusMeters float64, excludeUserID uuid.UUID, limit int) ([]Nearby, error)
}

type proximityIndex struct {
	log      *logger.Logger
	profiles repos.ProfileRepo
}

func NewProximityIndex(baseLog *logger.Logger, profiles repos.ProfileRepo) ProximityIndex {
	return &proximityIndex{
		log:      baseLog.With("service", "ProximityIndex"),
		profiles: profiles,
	}
}

func (p *proximityIndex) FindNearby(ctx context.Context, origin geo.Point, radiusMeters float64, excludeUserID uuid.UUID, limit int) ([]Nearby, error) {
	if err := geo.ValidatePoint(origin); err != nil {
		return nil, err
	}
	if err := geo.ValidateRadius(radiusMeters); err != nil {
		return nil, err
	}
	rows, err := p.profiles.FindInBox(dbctx.Context{Ctx: ctx}, geo.Box(origin, radiusMeters), excludeUserID)
	if err != nil {
		return nil, fmt.Errorf("find in box: %w", err)
	}
	byID := make(map[uuid.UUID]*types.Profile, len(rows))
	cands := make([]geo.Candidate, 0, len(rows))
	for _, r := range rows {
		if !r.HasLocation() {
			continue
		}
		byID[r.UserID] = r
		cands = append(cands, geo.Candidate{UserID: r.UserID, Point: geo.Point{Lat: *r.Lat, Lng: *r.Lng}})
	}
	ranked := geo.Rank(origin, cands, radiusMeters, limit)
	out := make([]Nearby, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, Nearby{Profile: byID[r.UserID], DistanceMeters: r.DistanceMeters})
	}
	return out, nil
}
