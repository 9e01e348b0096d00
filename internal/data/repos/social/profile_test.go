package social

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/nearby-backend/internal/data/repos/testutil"
	"github.com/yungbote/nearby-backend/internal/geo"
	"github.com/yungbote/nearby-backend/internal/pkg/dbctx"
)

func TestProfileRepoFindInBox(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewProfileRepo(db, testutil.Logger(t))

	me := testutil.SeedProfile(t, ctx, db, testutil.At(52.230, 21.010))
	near := testutil.SeedProfile(t, ctx, db, testutil.At(52.231, 21.011))
	hidden := testutil.SeedProfile(t, ctx, db, testutil.At(52.231, 21.012), testutil.Hidden())
	blockedByMe := testutil.SeedProfile(t, ctx, db, testutil.At(52.232, 21.011))
	blockedMe := testutil.SeedProfile(t, ctx, db, testutil.At(52.229, 21.009))
	far := testutil.SeedProfile(t, ctx, db, testutil.At(53.500, 21.010))
	noLocation := testutil.SeedProfile(t, ctx, db)
	testutil.SeedBlock(t, ctx, db, me.UserID, blockedByMe.UserID)
	testutil.SeedBlock(t, ctx, db, blockedMe.UserID, me.UserID)

	box := geo.Box(geo.Point{Lat: 52.230, Lng: 21.010}, 2000)
	rows, err := repo.FindInBox(dbctx.Of(ctx), box, me.UserID)
	if err != nil {
		t.Fatalf("FindInBox: %v", err)
	}
	got := map[uuid.UUID]bool{}
	for _, r := range rows {
		got[r.UserID] = true
	}
	if !got[near.UserID] {
		t.Fatalf("expected nearby visible user in results")
	}
	for name, id := range map[string]uuid.UUID{
		"self":        me.UserID,
		"hidden":      hidden.UserID,
		"blockedByMe": blockedByMe.UserID,
		"blockedMe":   blockedMe.UserID,
		"far":         far.UserID,
		"noLocation":  noLocation.UserID,
	} {
		if got[id] {
			t.Fatalf("%s should have been excluded", name)
		}
	}
}

func TestProfileRepoWrites(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Of(ctx)
	repo := NewProfileRepo(db, testutil.Logger(t))

	id := uuid.New()
	if err := repo.Ensure(dbc, id, "ada"); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if err := repo.Ensure(dbc, id, "other"); err != nil {
		t.Fatalf("Ensure twice: %v", err)
	}
	p, err := repo.GetByID(dbc, id)
	if err != nil || p == nil {
		t.Fatalf("GetByID: p=%v err=%v", p, err)
	}
	if p.DisplayName != "ada" || p.Visible || p.HasLocation() {
		t.Fatalf("unexpected fresh profile: %+v", p)
	}

	if err := repo.UpdateLocation(dbc, id, 52.23, 21.01); err != nil {
		t.Fatalf("UpdateLocation: %v", err)
	}
	if err := repo.UpdateVisibility(dbc, id, true); err != nil {
		t.Fatalf("UpdateVisibility: %v", err)
	}
	if err := repo.UpdateDescriptorSource(dbc, id, DescriptorSource{Bio: "climber", LookingFor: "partners", InterestTags: []string{"climbing", "coffee"}}); err != nil {
		t.Fatalf("UpdateDescriptorSource: %v", err)
	}
	p, _ = repo.GetByID(dbc, id)
	if !p.HasLocation() || *p.Lat != 52.23 || !p.Visible {
		t.Fatalf("location/visibility not persisted: %+v", p)
	}
	if p.Bio != "climber" || len(p.InterestTags) != 2 || p.InterestTags[1] != "coffee" {
		t.Fatalf("descriptor source not persisted: %+v", p)
	}
	if p.IsEnriched() {
		t.Fatalf("source edit must not mark the profile enriched")
	}

	if err := repo.ClearLocation(dbc, id); err != nil {
		t.Fatalf("ClearLocation: %v", err)
	}
	p, _ = repo.GetByID(dbc, id)
	if p.HasLocation() {
		t.Fatalf("location should be cleared")
	}

	missing, err := repo.GetByID(dbc, uuid.New())
	if err != nil || missing != nil {
		t.Fatalf("GetByID(missing): want nil,nil got %v,%v", missing, err)
	}
}
