package services

import (
	"errors"
	"testing"

	"github.com/yungbote/nearby-backend/internal/data/repos/testutil"
	"github.com/yungbote/nearby-backend/internal/geo"
	"github.com/yungbote/nearby-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/nearby-backend/internal/pkg/errors"
)

func TestBlockDropsAnalysesAndHidesUsers(t *testing.T) {
	f := newFixture(t)
	me := f.seed(testutil.At(1, 1), testutil.Enriched("me"))
	them := f.seed(testutil.At(1.001, 1), testutil.Enriched("them"))
	f.storeAnalysis(me, them, 70, false)
	f.storeAnalysis(them, me, 60, false)

	if err := f.blocks.Block(f.ctx, me.UserID, them.UserID); err != nil {
		t.Fatalf("Block: %v", err)
	}
	if err := f.blocks.Block(f.ctx, me.UserID, them.UserID); err != nil {
		t.Fatalf("Block must be idempotent: %v", err)
	}

	dbc := dbctx.Context{Ctx: f.ctx}
	if row, _ := f.set.Analyses.Get(dbc, me.UserID, them.UserID); row != nil {
		t.Fatalf("forward analysis should be deleted")
	}
	if row, _ := f.set.Analyses.Get(dbc, them.UserID, me.UserID); row != nil {
		t.Fatalf("reverse analysis should be deleted")
	}

	views, err := f.nearby.Nearby(f.ctx, them.UserID, geo.Point{Lat: 1.001, Lng: 1}, 1000, 0)
	if err != nil {
		t.Fatalf("Nearby: %v", err)
	}
	if len(views) != 0 {
		t.Fatalf("blocker must be hidden from the blocked user")
	}

	if err := f.blocks.Unblock(f.ctx, me.UserID, them.UserID); err != nil {
		t.Fatalf("Unblock: %v", err)
	}
	views, _ = f.nearby.Nearby(f.ctx, them.UserID, geo.Point{Lat: 1.001, Lng: 1}, 1000, 0)
	if len(views) != 1 {
		t.Fatalf("unblocked user should reappear, got %d", len(views))
	}
}

func TestBlockValidation(t *testing.T) {
	f := newFixture(t)
	me := f.seed()
	if err := f.blocks.Block(f.ctx, me.UserID, me.UserID); !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Fatalf("self block: %v", err)
	}
}
