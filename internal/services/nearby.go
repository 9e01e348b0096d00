package services

import (
	"context"
	"math"

	"github.com/google/uuid"

	"github.com/yungbote/nearby-backend/internal/geo"
	"github.com/yungbote/nearby-backend/internal/pkg/logger"
)

const (
	DefaultNearbyLimit = 50
	MaxNearbyLimit     = 200
)

// NearbyView is what one user may see about another: a coarse cell and a
// rounded distance, never raw coordinates.
type NearbyView struct {
	UserID         uuid.UUID    `json:"userId"`
	DisplayName    string       `json:"displayName"`
	DistanceMeters int          `json:"distanceMeters"`
	Cell           geo.GridCell `json:"cell"`
	InterestTags   []string     `json:"interestTags"`
}

type NearbyService interface {
	Nearby(ctx context.Context, viewer uuid.UUID, origin geo.Point, radiusMeters float64, limit int) ([]NearbyView, error)
}

type nearbyService struct {
	log   *logger.Logger
	index ProximityIndex
}

func NewNearbyService(baseLog *logger.Logger, index ProximityIndex) NearbyService {
	return &nearbyService{
		log:   baseLog.With("service", "NearbyService"),
		index: index,
	}
}

func (s *nearbyService) Nearby(ctx context.Context, viewer uuid.UUID, origin geo.Point, radiusMeters float64, limit int) ([]NearbyView, error) {
	if limit <= 0 {
		limit = DefaultNearbyLimit
	}
	if limit > MaxNearbyLimit {
		limit = MaxNearbyLimit
	}
	if err := geo.ValidateRadius(radiusMeters); err != nil {
		return nil, err
	}
	// Membership is decided on the rounded distance against a rounded radius,
	// so sweeping the radius reveals nothing finer than the distance shown.
	radius := geo.CoarseRadius(radiusMeters)
	search := math.Min(radius+geo.DistanceRoundingMeters/2, geo.MaxRadiusMeters)
	hits, err := s.index.FindNearby(ctx, origin, search, viewer, limit)
	if err != nil {
		return nil, err
	}
	out := make([]NearbyView, 0, len(hits))
	for _, h := range hits {
		rounded := geo.RoundDistance(h.DistanceMeters)
		if float64(rounded) > radius {
			continue
		}
		p := h.Profile
		tags := []string(p.InterestTags)
		if tags == nil {
			tags = []string{}
		}
		out = append(out, NearbyView{
			UserID:         p.UserID,
			DisplayName:    p.DisplayName,
			DistanceMeters: rounded,
			Cell:           geo.Quantize(*p.Lat, *p.Lng),
			InterestTags:   tags,
		})
	}
	return out, nil
}
