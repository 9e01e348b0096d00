package geo

import (
	"math"
	"sort"

	"github.com/google/uuid"

	apperrors "github.com/yungbote/nearby-backend/internal/pkg/errors"
)

const (
	EarthRadiusMeters = 6371000.0
	// MetersPerDegree is the coarse factor used for the bounding box. It is
	// slightly smaller than the true value, so the box always over-covers
	// the exact circle.
	MetersPerDegree = 111000.0
	MaxRadiusMeters = 100000.0
)

type Point struct {
	Lat float64
	Lng float64
}

type Candidate struct {
	UserID uuid.UUID
	Point  Point
}

type Ranked struct {
	Candidate
	DistanceMeters float64
}

type BoundingBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

func ValidatePoint(p Point) error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return apperrors.Invalid("lat", "must be within [-90, 90]")
	}
	if math.IsNaN(p.Lng) || p.Lng < -180 || p.Lng > 180 {
		return apperrors.Invalid("lng", "must be within [-180, 180]")
	}
	return nil
}

func ValidateRadius(radius float64) error {
	if math.IsNaN(radius) || radius < 0 {
		return apperrors.Invalid("radius", "must be >= 0")
	}
	if radius > MaxRadiusMeters {
		return apperrors.Invalid("radius", "exceeds maximum search radius")
	}
	return nil
}

// Box returns the degree-delta range predicate for a radius around origin.
// Near the poles, or when the box would cross the antimeridian, longitude
// is left unconstrained and the exact phase does the filtering.
func Box(origin Point, radius float64) BoundingBox {
	dLat := radius / MetersPerDegree
	box := BoundingBox{
		MinLat: math.Max(-90, origin.Lat-dLat),
		MaxLat: math.Min(90, origin.Lat+dLat),
		MinLng: -180,
		MaxLng: 180,
	}
	cosLat := math.Cos(toRadians(origin.Lat))
	if cosLat < 1e-9 {
		return box
	}
	dLng := radius / (MetersPerDegree * cosLat)
	minLng, maxLng := origin.Lng-dLng, origin.Lng+dLng
	if minLng < -180 || maxLng > 180 {
		return box
	}
	box.MinLng, box.MaxLng = minLng, maxLng
	return box
}

func (b BoundingBox) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

// Distance is the great-circle distance in meters by the spherical law of
// cosines. The cosine is clamped so rounding can never push acos into NaN.
func Distance(a, b Point) float64 {
	if a == b {
		return 0
	}
	phi1 := toRadians(a.Lat)
	phi2 := toRadians(b.Lat)
	dLambda := toRadians(b.Lng - a.Lng)
	c := math.Sin(phi1)*math.Sin(phi2) + math.Cos(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	if c > 1 {
		c = 1
	} else if c < -1 {
		c = -1
	}
	return EarthRadiusMeters * math.Acos(c)
}

// Rank keeps candidates within radius (inclusive), sorted by distance
// ascending with user id as tie-break, truncated to limit when limit > 0.
func Rank(origin Point, candidates []Candidate, radius float64, limit int) []Ranked {
	out := make([]Ranked, 0, len(candidates))
	for _, c := range candidates {
		d := Distance(origin, c.Point)
		if d > radius {
			continue
		}
		out = append(out, Ranked{Candidate: c, DistanceMeters: d})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DistanceMeters != out[j].DistanceMeters {
			return out[i].DistanceMeters < out[j].DistanceMeters
		}
		return out[i].UserID.String() < out[j].UserID.String()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }
