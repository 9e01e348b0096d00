package social

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/nearby-backend/internal/data/repos/testutil"
	types "github.com/yungbote/nearby-backend/internal/domain"
	"github.com/yungbote/nearby-backend/internal/pkg/dbctx"
)

func TestConnectionAnalysisRepoUpsert(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Of(context.Background())
	repo := NewConnectionAnalysisRepo(db, testutil.Logger(t))

	a, b := uuid.New(), uuid.New()
	first := &types.ConnectionAnalysis{
		FromUserID:  a,
		ToUserID:    b,
		Snippet:     "both climb",
		Description: "long text",
		Score:       70,
		FromHash:    "h1",
		ToHash:      "h2",
	}
	if err := repo.Upsert(dbc, first); err != nil {
		t.Fatalf("Upsert #1: %v", err)
	}
	second := &types.ConnectionAnalysis{
		FromUserID: a,
		ToUserID:   b,
		Snippet:    "updated",
		Score:      82,
		FromHash:   "h1b",
		ToHash:     "h2",
	}
	if err := repo.Upsert(dbc, second); err != nil {
		t.Fatalf("Upsert #2: %v", err)
	}
	reverse := &types.ConnectionAnalysis{FromUserID: b, ToUserID: a, Score: 40, FromHash: "h2", ToHash: "h1b"}
	if err := repo.Upsert(dbc, reverse); err != nil {
		t.Fatalf("Upsert reverse: %v", err)
	}

	var count int64
	if err := db.Model(&types.ConnectionAnalysis{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected one row per direction, got %d", count)
	}

	got, err := repo.Get(dbc, a, b)
	if err != nil || got == nil {
		t.Fatalf("Get: row=%v err=%v", got, err)
	}
	if got.Score != 82 || got.Snippet != "updated" || !got.FreshFor("h1b", "h2") || got.FreshFor("h1", "h2") {
		t.Fatalf("upsert did not overwrite: %+v", got)
	}
	if got.PairKey != types.PairKey(b, a) {
		t.Fatalf("pair key not canonical: %s", got.PairKey)
	}

	list, err := repo.ListFrom(dbc, a, 10)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListFrom: len=%d err=%v", len(list), err)
	}

	if err := repo.DeletePair(dbc, b, a); err != nil {
		t.Fatalf("DeletePair: %v", err)
	}
	if err := db.Model(&types.ConnectionAnalysis{}).Count(&count).Error; err != nil || count != 0 {
		t.Fatalf("DeletePair should drop both directions: count=%d err=%v", count, err)
	}
}
