package services

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/nearby-backend/internal/data/repos/testutil"
	"github.com/yungbote/nearby-backend/internal/geo"
	apperrors "github.com/yungbote/nearby-backend/internal/pkg/errors"
)

func TestFindNearbyRanksAndFilters(t *testing.T) {
	f := newFixture(t)
	origin := geo.Point{Lat: 52.230, Lng: 21.010}
	me := f.seed(testutil.At(origin.Lat, origin.Lng))
	near := f.seed(testutil.At(52.231, 21.011))
	mid := f.seed(testutil.At(52.236, 21.010))
	f.seed(testutil.At(52.2305, 21.0105), testutil.Hidden())
	f.seed(testutil.At(52.40, 21.010))
	f.seed()
	blocked := f.seed(testutil.At(52.2302, 21.0101))
	testutil.SeedBlock(t, f.ctx, f.db, blocked.UserID, me.UserID)

	hits, err := f.index.FindNearby(f.ctx, origin, 2000, me.UserID, 0)
	if err != nil {
		t.Fatalf("FindNearby: %v", err)
	}
	if len(hits) != 2 || hits[0].Profile.UserID != near.UserID || hits[1].Profile.UserID != mid.UserID {
		t.Fatalf("expected [near, mid], got %+v", hits)
	}
	if hits[0].DistanceMeters <= 0 || hits[0].DistanceMeters > hits[1].DistanceMeters {
		t.Fatalf("distances not ascending: %v, %v", hits[0].DistanceMeters, hits[1].DistanceMeters)
	}

	limited, err := f.index.FindNearby(f.ctx, origin, 2000, me.UserID, 1)
	if err != nil || len(limited) != 1 || limited[0].Profile.UserID != near.UserID {
		t.Fatalf("limit 1: hits=%+v err=%v", limited, err)
	}
}

func TestFindNearbyBoundaryIsInclusive(t *testing.T) {
	f := newFixture(t)
	origin := geo.Point{Lat: 10, Lng: 10}
	other := f.seed(testutil.At(10.01, 10))
	d := geo.Distance(origin, geo.Point{Lat: 10.01, Lng: 10})

	hits, err := f.index.FindNearby(f.ctx, origin, d, uuid.Nil, 0)
	if err != nil || len(hits) != 1 || hits[0].Profile.UserID != other.UserID {
		t.Fatalf("user exactly at the radius must be included: hits=%+v err=%v", hits, err)
	}
	hits, err = f.index.FindNearby(f.ctx, origin, d-1, uuid.Nil, 0)
	if err != nil || len(hits) != 0 {
		t.Fatalf("user beyond the radius must be excluded: hits=%+v err=%v", hits, err)
	}
}

func TestFindNearbyZeroRadiusIsEmpty(t *testing.T) {
	f := newFixture(t)
	f.seed(testutil.At(1, 1.001))
	hits, err := f.index.FindNearby(f.ctx, geo.Point{Lat: 1, Lng: 1}, 0, uuid.Nil, 0)
	if err != nil || len(hits) != 0 {
		t.Fatalf("radius 0: hits=%+v err=%v", hits, err)
	}
}

func TestFindNearbyValidates(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name   string
		origin geo.Point
		radius float64
	}{
		{"lat", geo.Point{Lat: 91}, 100},
		{"lng", geo.Point{Lng: -181}, 100},
		{"negative radius", geo.Point{}, -1},
		{"huge radius", geo.Point{}, geo.MaxRadiusMeters + 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.index.FindNearby(f.ctx, tc.origin, tc.radius, uuid.Nil, 0)
			if !errors.Is(err, apperrors.ErrInvalidArgument) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
