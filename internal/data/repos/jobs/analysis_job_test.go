package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/nearby-backend/internal/data/repos/testutil"
	types "github.com/yungbote/nearby-backend/internal/domain"
	"github.com/yungbote/nearby-backend/internal/pkg/dbctx"
)

func newJob(id string, priority int) *types.AnalysisJob {
	return &types.AnalysisJob{
		ID:          id,
		Kind:        "pair_analysis",
		OwnerUserID: uuid.New(),
		Priority:    priority,
		MaxAttempts: 2,
		Payload:     datatypes.JSON([]byte(`{"kind":"pair_analysis"}`)),
	}
}

func TestAnalysisJobRepoEnqueueDedup(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Of(context.Background())
	repo := NewAnalysisJobRepo(db, testutil.Logger(t))

	out, err := repo.Enqueue(dbc, newJob("pair:x", types.PriorityNeighborhood))
	if err != nil || out != EnqueueCreated {
		t.Fatalf("Enqueue #1: out=%s err=%v", out, err)
	}
	out, err = repo.Enqueue(dbc, newJob("pair:x", types.PriorityNeighborhood))
	if err != nil || out != EnqueueDeduped {
		t.Fatalf("Enqueue #2: out=%s err=%v", out, err)
	}
	out, err = repo.Enqueue(dbc, newJob("pair:x", types.PriorityPromoted))
	if err != nil || out != EnqueuePromoted {
		t.Fatalf("Enqueue promote: out=%s err=%v", out, err)
	}
	job, err := repo.GetByID(dbc, "pair:x")
	if err != nil || job == nil || job.Priority != types.PriorityPromoted || job.Status != types.JobStatusQueued {
		t.Fatalf("GetByID after promote: job=%+v err=%v", job, err)
	}

	claimed, err := repo.ClaimNextRunnable(dbc, time.Hour)
	if err != nil || claimed == nil || claimed.ID != "pair:x" {
		t.Fatalf("ClaimNextRunnable: job=%+v err=%v", claimed, err)
	}
	out, _ = repo.Enqueue(dbc, newJob("pair:x", types.PriorityNeighborhood))
	if out != EnqueueDeduped {
		t.Fatalf("enqueue while running should dedup, got %s", out)
	}

	if err := repo.MarkCompleted(dbc, "pair:x", []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	out, _ = repo.Enqueue(dbc, newJob("pair:x", types.PriorityNeighborhood))
	if out != EnqueueRearmed {
		t.Fatalf("enqueue after completion should re-arm, got %s", out)
	}
	job, _ = repo.GetByID(dbc, "pair:x")
	if job.Status != types.JobStatusQueued || job.Attempts != 0 {
		t.Fatalf("re-armed job should be fresh: %+v", job)
	}

	var count int64
	if err := db.Model(&types.AnalysisJob{}).Count(&count).Error; err != nil || count != 1 {
		t.Fatalf("expected exactly one row, got %d (err=%v)", count, err)
	}
}

func TestAnalysisJobRepoConcurrentEnqueue(t *testing.T) {
	db := testutil.DB(t)
	repo := NewAnalysisJobRepo(db, testutil.Logger(t))

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := repo.Enqueue(dbctx.Of(context.Background()), newJob("pair:same", 0))
			if err != nil {
				t.Errorf("Enqueue: %v", err)
				return
			}
			if out == EnqueueCreated {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if created != 1 {
		t.Fatalf("expected exactly one creating enqueue, got %d", created)
	}
}

func TestAnalysisJobRepoClaimOrderAndFailure(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Of(context.Background())
	repo := NewAnalysisJobRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	low := newJob("low", 0)
	low.CreatedAt = now.Add(-2 * time.Hour)
	high := newJob("high", 10)
	high.CreatedAt = now.Add(-1 * time.Hour)
	stale := newJob("stale", 0)
	stale.Status = types.JobStatusRunning
	stale.Attempts = 1
	stale.HeartbeatAt = ptrTime(now.Add(-10 * time.Hour))
	stale.CreatedAt = now.Add(-3 * time.Hour)
	for _, j := range []*types.AnalysisJob{low, high, stale} {
		if _, err := repo.Enqueue(dbc, j); err != nil {
			t.Fatalf("seed %s: %v", j.ID, err)
		}
	}

	want := []string{"high", "stale", "low"}
	for i, id := range want {
		got, err := repo.ClaimNextRunnable(dbc, time.Hour)
		if err != nil {
			t.Fatalf("claim #%d: %v", i+1, err)
		}
		if got == nil || got.ID != id {
			t.Fatalf("claim #%d: expected %s got %+v", i+1, id, got)
		}
	}
	if got, _ := repo.ClaimNextRunnable(dbc, time.Hour); got != nil {
		t.Fatalf("nothing should be runnable, got %+v", got)
	}

	// "low" has one attempt of two: it fails and waits for backoff.
	parked, err := repo.MarkFailed(dbc, "low", "store unavailable", time.Hour)
	if err != nil || parked {
		t.Fatalf("MarkFailed #1: parked=%v err=%v", parked, err)
	}
	if got, _ := repo.ClaimNextRunnable(dbc, time.Hour); got != nil {
		t.Fatalf("failed job must respect its backoff, got %+v", got)
	}
	if err := db.Model(&types.AnalysisJob{}).Where("id = ?", "low").Update("run_after", now.Add(-time.Minute)).Error; err != nil {
		t.Fatalf("rewind run_after: %v", err)
	}
	got, err := repo.ClaimNextRunnable(dbc, time.Hour)
	if err != nil || got == nil || got.ID != "low" || got.Attempts != 2 {
		t.Fatalf("retry claim: job=%+v err=%v", got, err)
	}

	// Second attempt of two: parked, never retried.
	parked, err = repo.MarkFailed(dbc, "low", "store unavailable", 0)
	if err != nil || !parked {
		t.Fatalf("MarkFailed #2: parked=%v err=%v", parked, err)
	}
	if got, _ := repo.ClaimNextRunnable(dbc, time.Hour); got != nil {
		t.Fatalf("parked job must not be claimed, got %+v", got)
	}

	counts, err := repo.CountByStatus(dbc)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts[types.JobStatusParked] != 1 || counts[types.JobStatusRunning] != 2 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestAnalysisJobRepoClaimByID(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Of(context.Background())
	repo := NewAnalysisJobRepo(db, testutil.Logger(t))

	for _, id := range []string{"a", "b"} {
		if _, err := repo.Enqueue(dbc, newJob(id, 0)); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	got, err := repo.ClaimByID(dbc, "b", time.Hour)
	if err != nil || got == nil || got.ID != "b" {
		t.Fatalf("ClaimByID: job=%+v err=%v", got, err)
	}
	again, err := repo.ClaimByID(dbc, "b", time.Hour)
	if err != nil || again != nil {
		t.Fatalf("second ClaimByID should find nothing: job=%+v err=%v", again, err)
	}
}

func TestBackoff(t *testing.T) {
	if Backoff(time.Second, 1) != time.Second {
		t.Fatalf("first retry should wait base")
	}
	if Backoff(time.Second, 3) != 4*time.Second {
		t.Fatalf("third retry should wait 4x base")
	}
	if Backoff(time.Second, 50) != 64*time.Second {
		t.Fatalf("backoff should cap at 64x")
	}
}

func TestAnalysisJobRepoPostgresSkipLocked(t *testing.T) {
	db := testutil.PostgresDB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewAnalysisJobRepo(db, testutil.Logger(t))

	id := "pair:" + uuid.NewString()
	if out, err := repo.Enqueue(dbc, newJob(id, 0)); err != nil || out != EnqueueCreated {
		t.Fatalf("Enqueue: out=%s err=%v", out, err)
	}
	got, err := repo.ClaimByID(dbc, id, time.Hour)
	if err != nil || got == nil {
		t.Fatalf("ClaimByID: job=%+v err=%v", got, err)
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
