package services

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/yungbote/nearby-backend/internal/data/db"
	"github.com/yungbote/nearby-backend/internal/data/repos"
	"github.com/yungbote/nearby-backend/internal/data/repos/testutil"
	types "github.com/yungbote/nearby-backend/internal/domain"
	"github.com/yungbote/nearby-backend/internal/jobs/queue"
	"github.com/yungbote/nearby-backend/internal/pkg/dbctx"
	"github.com/yungbote/nearby-backend/internal/pkg/logger"
)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	db    *gorm.DB
	log   *logger.Logger
	set   repos.Set
	queue *queue.Queue

	index     ProximityIndex
	scheduler PairScheduler
	profiles  ProfileService
	analyses  AnalysisService
	blocks    BlockService
	nearby    NearbyService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := testutil.DB(t)
	log := testutil.Logger(t)
	set := repos.NewSet(gdb, log)
	q := queue.New(log, set.Jobs, queue.Config{})
	index := NewProximityIndex(log, set.Profiles)
	sched := NewPairScheduler(log, index, set.Blocks, q)
	return &fixture{
		t:         t,
		ctx:       context.Background(),
		db:        gdb,
		log:       log,
		set:       set,
		queue:     q,
		index:     index,
		scheduler: sched,
		profiles:  NewProfileService(log, set.Profiles, sched, q, 2000),
		analyses:  NewAnalysisService(log, set.Profiles, set.Blocks, set.Analyses, q),
		blocks:    NewBlockService(log, db.NewTxRunner(gdb), set.Profiles, set.Blocks, set.Analyses),
		nearby:    NewNearbyService(log, index),
	}
}

func (f *fixture) seed(opts ...testutil.ProfileOpt) *types.Profile {
	f.t.Helper()
	return testutil.SeedProfile(f.t, f.ctx, f.db, opts...)
}

func (f *fixture) jobs() []*types.AnalysisJob {
	f.t.Helper()
	var rows []*types.AnalysisJob
	if err := f.db.Order("id").Find(&rows).Error; err != nil {
		f.t.Fatalf("list jobs: %v", err)
	}
	return rows
}

func (f *fixture) job(id string) *types.AnalysisJob {
	f.t.Helper()
	j, err := f.set.Jobs.GetByID(dbctx.Context{Ctx: f.ctx}, id)
	if err != nil {
		f.t.Fatalf("GetByID(%s): %v", id, err)
	}
	return j
}
