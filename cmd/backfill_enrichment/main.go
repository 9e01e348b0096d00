package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/nearby-backend/internal/app"
	types "github.com/yungbote/nearby-backend/internal/domain"
	jobtypes "github.com/yungbote/nearby-backend/internal/domain/jobs"
	"github.com/yungbote/nearby-backend/internal/jobs/payload"
	"github.com/yungbote/nearby-backend/internal/jobs/pipeline/profile_enrichment"
	"github.com/yungbote/nearby-backend/internal/pkg/dbctx"
)

type idList []string

func (l *idList) String() string { return strings.Join(*l, ",") }
func (l *idList) Set(v string) error {
	v = strings.TrimSpace(v)
	if v != "" {
		*l = append(*l, v)
	}
	return nil
}

// Enqueues profile_enrichment for every profile whose stored descriptor no
// longer matches its source fields, or that was enriched without an
// embedding.
func main() {
	var users idList
	var dryRun bool
	var limit int
	flag.Var(&users, "user", "user_id to backfill (repeatable)")
	flag.BoolVar(&dryRun, "dry-run", false, "print planned jobs without enqueueing")
	flag.IntVar(&limit, "limit", 0, "limit number of profiles processed")
	flag.Parse()

	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Printf("load config: %v\n", err)
		os.Exit(1)
	}
	application, err := app.New(cfg)
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = application.Close(context.Background()) }()

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}

	var rows []*types.Profile
	if len(users) > 0 {
		ids := make([]uuid.UUID, 0, len(users))
		for _, s := range users {
			id, err := uuid.Parse(s)
			if err == nil && id != uuid.Nil {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			fmt.Println("no valid user_id values provided")
			return
		}
		rows, err = application.Repos.Profiles.GetByIDs(dbc, ids)
	} else {
		err = application.DB.WithContext(ctx).Order("user_id").Find(&rows).Error
	}
	if err != nil {
		fmt.Printf("load profiles: %v\n", err)
		os.Exit(1)
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	enqueued := 0
	for _, p := range rows {
		if !needsEnrichment(p) {
			continue
		}
		if dryRun {
			fmt.Printf("[dry-run] enqueue profile_enrichment user_id=%s\n", p.UserID)
			continue
		}
		out, err := application.Queue.Enqueue(ctx, payload.ProfileEnrichment{UserID: p.UserID}, jobtypes.PriorityEnrichment)
		if err != nil {
			fmt.Printf("enqueue failed for user %s: %v\n", p.UserID, err)
			continue
		}
		if out.Scheduled() {
			enqueued++
		}
		fmt.Printf("profile_enrichment user_id=%s outcome=%s\n", p.UserID, out)
	}
	fmt.Printf("done; enqueued=%d\n", enqueued)
}

func needsEnrichment(p *types.Profile) bool {
	if p == nil || p.UserID == uuid.Nil {
		return false
	}
	want := profile_enrichment.HashDescriptor(profile_enrichment.BuildDescriptor(p.Bio, p.LookingFor, p.InterestTags))
	if want != p.DescriptorHash {
		return true
	}
	return want != "" && p.Embedding == nil
}
