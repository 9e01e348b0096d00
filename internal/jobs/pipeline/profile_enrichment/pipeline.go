package profile_enrichment

import (
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/yungbote/nearby-backend/internal/data/repos"
	"github.com/yungbote/nearby-backend/internal/geo"
	"github.com/yungbote/nearby-backend/internal/jobs/payload"
	jobrt "github.com/yungbote/nearby-backend/internal/jobs/runtime"
	"github.com/yungbote/nearby-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/nearby-backend/internal/pkg/errors"
)

const (
	OutcomeEnriched       = "enriched"
	OutcomeUnchanged      = "unchanged"
	OutcomeCleared        = "cleared"
	OutcomeMissingProfile = "missing_profile"
)

type result struct {
	Outcome   string `json:"outcome"`
	Hash      string `json:"hash,omitempty"`
	Embedded  bool   `json:"embedded"`
	Scheduled int    `json:"scheduled"`
}

func (p *Pipeline) Run(jc *jobrt.Context, in payload.ProfileEnrichment) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	ctx := jc.Ctx
	dbc := dbctx.Context{Ctx: ctx}

	prof, err := p.profiles.GetByID(dbc, in.UserID)
	if err != nil {
		jc.Fail("load_profile", apperrors.Store("load profile", err))
		return nil
	}
	if prof == nil {
		jc.Succeed(OutcomeMissingProfile, result{Outcome: OutcomeMissingProfile})
		return nil
	}

	desc := BuildDescriptor(prof.Bio, prof.LookingFor, prof.InterestTags)
	hash := HashDescriptor(desc)

	if hash == "" {
		if prof.DescriptorHash != "" {
			if err := p.profiles.SetEnrichment(dbc, in.UserID, repos.Enrichment{EnrichedAt: time.Now().UTC()}); err != nil {
				jc.Fail("persist", apperrors.Store("clear enrichment", err))
				return nil
			}
		}
		jc.Succeed(OutcomeCleared, result{Outcome: OutcomeCleared})
		return nil
	}
	if hash == prof.DescriptorHash && prof.Embedding != nil {
		jc.Succeed(OutcomeUnchanged, result{Outcome: OutcomeUnchanged, Hash: hash, Embedded: true})
		return nil
	}

	var embedding *pgvector.Vector
	if vec, err := p.oracle.Embed(ctx, desc); err != nil {
		p.log.Warn("Embedding failed, continuing without it", "user_id", in.UserID, "error", err)
	} else if len(vec) > 0 {
		v := pgvector.NewVector(vec)
		embedding = &v
	}

	if err := p.profiles.SetEnrichment(dbc, in.UserID, repos.Enrichment{
		Descriptor:     desc,
		DescriptorHash: hash,
		Embedding:      embedding,
		EnrichedAt:     time.Now().UTC(),
	}); err != nil {
		jc.Fail("persist", apperrors.Store("set enrichment", err))
		return nil
	}

	res := result{Outcome: OutcomeEnriched, Hash: hash, Embedded: embedding != nil}
	if hash == prof.DescriptorHash {
		// embedding backfill only; neighbours already saw this hash
		res.Outcome = OutcomeUnchanged
		jc.Succeed(OutcomeUnchanged, res)
		return nil
	}
	if prof.HasLocation() && p.scheduler != nil {
		n, err := p.scheduler.ScheduleNeighborhood(ctx, in.UserID, geo.Point{Lat: *prof.Lat, Lng: *prof.Lng}, p.radius)
		if err != nil {
			p.log.Warn("Neighborhood scheduling after enrichment failed", "user_id", in.UserID, "error", err)
		}
		res.Scheduled = n
	}
	jc.Succeed(OutcomeEnriched, res)
	return nil
}
