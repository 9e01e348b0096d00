package profile_enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/nearby-backend/internal/clients/oracle/oracletest"
	"github.com/yungbote/nearby-backend/internal/data/repos"
	"github.com/yungbote/nearby-backend/internal/data/repos/testutil"
	types "github.com/yungbote/nearby-backend/internal/domain"
	"github.com/yungbote/nearby-backend/internal/geo"
	"github.com/yungbote/nearby-backend/internal/jobs/payload"
	jobrt "github.com/yungbote/nearby-backend/internal/jobs/runtime"
	"github.com/yungbote/nearby-backend/internal/pkg/dbctx"
)

type scheduleCall struct {
	userID uuid.UUID
	origin geo.Point
	radius float64
}

type fakeScheduler struct {
	mu    sync.Mutex
	calls []scheduleCall
}

func (f *fakeScheduler) ScheduleNeighborhood(_ context.Context, userID uuid.UUID, origin geo.Point, radius float64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, scheduleCall{userID: userID, origin: origin, radius: radius})
	return 3, nil
}

func (f *fakeScheduler) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type env struct {
	t         *testing.T
	ctx       context.Context
	db        *gorm.DB
	set       repos.Set
	oracle    *oracletest.Fake
	scheduler *fakeScheduler
	pipe      *Pipeline
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	set := repos.NewSet(db, log)
	orc := oracletest.New()
	sched := &fakeScheduler{}
	return &env{
		t:         t,
		ctx:       context.Background(),
		db:        db,
		set:       set,
		oracle:    orc,
		scheduler: sched,
		pipe:      New(log, set.Profiles, orc, sched, 1500),
	}
}

func (e *env) run(userID uuid.UUID) (*types.AnalysisJob, result) {
	e.t.Helper()
	in := payload.ProfileEnrichment{UserID: userID}
	raw, err := payload.Encode(in, nil)
	if err != nil {
		e.t.Fatalf("encode: %v", err)
	}
	dbc := dbctx.Context{Ctx: e.ctx}
	if _, err := e.set.Jobs.Enqueue(dbc, &types.AnalysisJob{
		ID:          in.JobID(),
		Kind:        string(in.Kind()),
		OwnerUserID: userID,
		Priority:    types.PriorityEnrichment,
		MaxAttempts: 3,
		Payload:     datatypes.JSON(raw),
	}); err != nil {
		e.t.Fatalf("enqueue: %v", err)
	}
	job, err := e.set.Jobs.ClaimByID(dbc, in.JobID(), time.Hour)
	if err != nil || job == nil {
		e.t.Fatalf("claim: job=%v err=%v", job, err)
	}
	jc, err := jobrt.NewContext(e.ctx, job, e.set.Jobs, testutil.Logger(e.t), time.Second)
	if err != nil {
		e.t.Fatalf("context: %v", err)
	}
	if err := e.pipe.Run(jc, jc.Payload.(payload.ProfileEnrichment)); err != nil {
		e.t.Fatalf("run: %v", err)
	}
	after, err := e.set.Jobs.GetByID(dbc, in.JobID())
	if err != nil || after == nil {
		e.t.Fatalf("reload job: %v", err)
	}
	var r result
	if err := json.Unmarshal(after.Result, &r); err != nil {
		e.t.Fatalf("decode result %q: %v", string(after.Result), err)
	}
	return after, r
}

func (e *env) profile(id uuid.UUID) *types.Profile {
	e.t.Helper()
	p, err := e.set.Profiles.GetByID(dbctx.Context{Ctx: e.ctx}, id)
	if err != nil || p == nil {
		e.t.Fatalf("load profile: p=%v err=%v", p, err)
	}
	return p
}

func withSource(bio, lookingFor string, tags ...string) testutil.ProfileOpt {
	return func(p *types.Profile) {
		p.Bio = bio
		p.LookingFor = lookingFor
		p.InterestTags = tags
	}
}

func TestEnrichmentBuildsDescriptorAndSchedulesNeighborhood(t *testing.T) {
	e := newEnv(t)
	p := testutil.SeedProfile(t, e.ctx, e.db, testutil.At(52.23, 21.01), withSource("Climber", "a belayer", "Chess", "climbing"))

	job, r := e.run(p.UserID)
	if job.Status != types.JobStatusCompleted || r.Outcome != OutcomeEnriched {
		t.Fatalf("expected enriched completion, got status=%s result=%s", job.Status, job.Result)
	}
	got := e.profile(p.UserID)
	want := BuildDescriptor("Climber", "a belayer", []string{"Chess", "climbing"})
	if got.Descriptor != want || got.DescriptorHash != HashDescriptor(want) {
		t.Fatalf("descriptor mismatch: %q / %q", got.Descriptor, got.DescriptorHash)
	}
	if got.Embedding == nil || len(got.Embedding.Slice()) != 3 {
		t.Fatalf("expected stored embedding, got %v", got.Embedding)
	}
	if e.scheduler.count() != 1 || r.Scheduled != 3 {
		t.Fatalf("expected one neighbourhood schedule, calls=%d scheduled=%d", e.scheduler.count(), r.Scheduled)
	}
	call := e.scheduler.calls[0]
	if call.userID != p.UserID || call.radius != 1500 || call.origin != (geo.Point{Lat: 52.23, Lng: 21.01}) {
		t.Fatalf("unexpected schedule call: %+v", call)
	}
}

func TestEnrichmentUnchangedDescriptorIsNoop(t *testing.T) {
	e := newEnv(t)
	p := testutil.SeedProfile(t, e.ctx, e.db, testutil.At(52.23, 21.01), withSource("bio", ""))

	e.run(p.UserID)
	_, r := e.run(p.UserID)
	if r.Outcome != OutcomeUnchanged {
		t.Fatalf("expected unchanged, got %s", r.Outcome)
	}
	if e.oracle.EmbedCalls() != 1 || e.scheduler.count() != 1 {
		t.Fatalf("second run must not embed or schedule: embeds=%d schedules=%d", e.oracle.EmbedCalls(), e.scheduler.count())
	}
}

func TestEnrichmentEmbedFailureIsNotFatal(t *testing.T) {
	e := newEnv(t)
	e.oracle.EmbedErr = errors.New("embeddings down")
	p := testutil.SeedProfile(t, e.ctx, e.db, testutil.At(1, 1), withSource("bio", "friends"))

	job, r := e.run(p.UserID)
	if job.Status != types.JobStatusCompleted || r.Outcome != OutcomeEnriched || r.Embedded {
		t.Fatalf("expected enrichment without embedding, got status=%s result=%s", job.Status, job.Result)
	}
	got := e.profile(p.UserID)
	if got.DescriptorHash == "" || got.Embedding != nil {
		t.Fatalf("descriptor should be stored without embedding: %+v", got)
	}
	if e.scheduler.count() != 1 {
		t.Fatalf("a new descriptor still schedules its neighbourhood")
	}

	// a later run backfills the embedding without rescheduling
	e.oracle.EmbedErr = nil
	_, r = e.run(p.UserID)
	if r.Outcome != OutcomeUnchanged || !r.Embedded || r.Hash != got.DescriptorHash {
		t.Fatalf("expected embedding backfill, got %+v", r)
	}
	if e.profile(p.UserID).Embedding == nil {
		t.Fatalf("backfill should store the embedding")
	}
	if e.scheduler.count() != 1 {
		t.Fatalf("embedding backfill must not reschedule")
	}
}

func TestEnrichmentWithoutLocationDoesNotSchedule(t *testing.T) {
	e := newEnv(t)
	p := testutil.SeedProfile(t, e.ctx, e.db, withSource("bio", ""))

	_, r := e.run(p.UserID)
	if r.Outcome != OutcomeEnriched || e.scheduler.count() != 0 {
		t.Fatalf("expected enrichment without scheduling, outcome=%s calls=%d", r.Outcome, e.scheduler.count())
	}
}

func TestEnrichmentEmptySourceClearsDescriptor(t *testing.T) {
	e := newEnv(t)
	p := testutil.SeedProfile(t, e.ctx, e.db, testutil.Enriched("about: old"))

	_, r := e.run(p.UserID)
	if r.Outcome != OutcomeCleared {
		t.Fatalf("expected cleared, got %s", r.Outcome)
	}
	if got := e.profile(p.UserID); got.IsEnriched() || got.Descriptor != "" {
		t.Fatalf("descriptor should be cleared: %+v", got)
	}
	if e.oracle.EmbedCalls() != 0 {
		t.Fatalf("clearing must not embed")
	}
}

func TestEnrichmentMissingProfile(t *testing.T) {
	e := newEnv(t)
	_, r := e.run(uuid.New())
	if r.Outcome != OutcomeMissingProfile {
		t.Fatalf("expected missing_profile, got %s", r.Outcome)
	}
}
