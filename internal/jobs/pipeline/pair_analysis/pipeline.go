package pair_analysis

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/nearby-backend/internal/clients/oracle"
	types "github.com/yungbote/nearby-backend/internal/domain"
	"github.com/yungbote/nearby-backend/internal/jobs/payload"
	jobrt "github.com/yungbote/nearby-backend/internal/jobs/runtime"
	"github.com/yungbote/nearby-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/nearby-backend/internal/pkg/errors"
	"github.com/yungbote/nearby-backend/internal/realtime"
)

const (
	OutcomeAnalyzed       = "analyzed"
	OutcomeDegraded       = "degraded"
	OutcomeCacheHit       = "cache_hit"
	OutcomeNotReady       = "not_ready"
	OutcomeBlocked        = "blocked"
	OutcomeMissingProfile = "missing_profile"
)

type result struct {
	PairKey        string `json:"pair_key"`
	Outcome        string `json:"outcome"`
	RequesterScore int    `json:"requester_score,omitempty"`
	OtherScore     int    `json:"other_score,omitempty"`
}

func (p *Pipeline) Run(jc *jobrt.Context, in payload.PairAnalysis) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	ctx := jc.Ctx
	dbc := dbctx.Context{Ctx: ctx}
	key := in.PairKey()
	done := func(outcome string) {
		jc.Succeed(outcome, result{PairKey: key, Outcome: outcome})
	}

	var requester, other *types.Profile
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		requester, err = p.profiles.GetByID(dbctx.Context{Ctx: gctx}, in.Requester)
		return err
	})
	g.Go(func() error {
		var err error
		other, err = p.profiles.GetByID(dbctx.Context{Ctx: gctx}, in.Other)
		return err
	})
	if err := g.Wait(); err != nil {
		jc.Fail("load_profiles", apperrors.Store("load profiles", err))
		return nil
	}
	if requester == nil || other == nil {
		done(OutcomeMissingProfile)
		return nil
	}

	blocked, err := p.blocks.IsBlocked(dbc, in.Requester, in.Other)
	if err != nil {
		jc.Fail("block_check", apperrors.Store("block check", err))
		return nil
	}
	if blocked {
		done(OutcomeBlocked)
		return nil
	}
	if !requester.IsEnriched() || !other.IsEnriched() {
		done(OutcomeNotReady)
		return nil
	}

	reqHash, otherHash := requester.DescriptorHash, other.DescriptorHash
	forward, err := p.analyses.Get(dbc, in.Requester, in.Other)
	if err != nil {
		jc.Fail("load_analysis", apperrors.Store("load analysis", err))
		return nil
	}
	reverse, err := p.analyses.Get(dbc, in.Other, in.Requester)
	if err != nil {
		jc.Fail("load_analysis", apperrors.Store("load analysis", err))
		return nil
	}
	// Neutral rows left by an oracle failure count as cached until a hash moves.
	if forward.FreshFor(reqHash, otherHash) && reverse.FreshFor(otherHash, reqHash) {
		done(OutcomeCacheHit)
		return nil
	}

	res, oErr := p.oracle.Compare(ctx, oracle.CompareRequest{
		A: oracle.Side{UserID: requester.UserID, DisplayName: requester.DisplayName, Descriptor: requester.Descriptor},
		B: oracle.Side{UserID: other.UserID, DisplayName: other.DisplayName, Descriptor: other.Descriptor},
	})
	degraded := oErr != nil
	if degraded {
		p.log.Warn("Oracle failed, writing neutral analysis", "pair_key", key, "error", oErr)
		res = &oracle.CompareResult{}
	}

	// A block can land during the oracle call; re-check under the pair lock.
	now := time.Now().UTC()
	forwardRow := row(in.Requester, in.Other, reqHash, otherHash, res.ForA, degraded, now)
	reverseRow := row(in.Other, in.Requester, otherHash, reqHash, res.ForB, degraded, now)
	err = p.tx.InTx(ctx, func(dbc dbctx.Context) error {
		if err := p.profiles.LockPair(dbc, in.Requester, in.Other); err != nil {
			return err
		}
		var checkErr error
		if blocked, checkErr = p.blocks.IsBlocked(dbc, in.Requester, in.Other); checkErr != nil || blocked {
			return checkErr
		}
		if err := p.analyses.Upsert(dbc, forwardRow); err != nil {
			return err
		}
		return p.analyses.Upsert(dbc, reverseRow)
	})
	if err != nil {
		jc.Fail("persist", apperrors.Store("upsert analysis", err))
		return nil
	}
	if blocked {
		done(OutcomeBlocked)
		return nil
	}
	if !degraded {
		p.events.Publish(ctx, realtime.AnalysisReady(in.Requester, in.Other, res.ForA.Snippet))
		p.events.Publish(ctx, realtime.AnalysisReady(in.Other, in.Requester, res.ForB.Snippet))
	}

	outcome := OutcomeAnalyzed
	if degraded {
		outcome = OutcomeDegraded
	}
	jc.Succeed(outcome, result{
		PairKey:        key,
		Outcome:        outcome,
		RequesterScore: res.ForA.Score,
		OtherScore:     res.ForB.Score,
	})
	return nil
}

func row(from, to uuid.UUID, fromHash, toHash string, d oracle.Direction, degraded bool, at time.Time) *types.ConnectionAnalysis {
	return &types.ConnectionAnalysis{
		FromUserID:  from,
		ToUserID:    to,
		PairKey:     types.PairKey(from, to),
		Snippet:     d.Snippet,
		Description: d.Description,
		Score:       d.Score,
		FromHash:    fromHash,
		ToHash:      toHash,
		Degraded:    degraded,
		ComputedAt:  at,
	}
}
