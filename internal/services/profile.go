package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/nearby-backend/internal/data/repos"
	types "github.com/yungbote/nearby-backend/internal/domain"
	jobtypes "github.com/yungbote/nearby-backend/internal/domain/jobs"
	"github.com/yungbote/nearby-backend/internal/geo"
	"github.com/yungbote/nearby-backend/internal/jobs/payload"
	"github.com/yungbote/nearby-backend/internal/jobs/queue"
	"github.com/yungbote/nearby-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/nearby-backend/internal/pkg/errors"
	"github.com/yungbote/nearby-backend/internal/pkg/logger"
)

const (
	maxBioLen        = 2000
	maxLookingForLen = 500
	maxTags          = 20
	maxTagLen        = 40
)

// OwnProfile is the owner's view of their profile and the only place exact
// coordinates are returned.
type OwnProfile struct {
	UserID       uuid.UUID     `json:"userId"`
	DisplayName  string        `json:"displayName"`
	Lat          *float64      `json:"lat,omitempty"`
	Lng          *float64      `json:"lng,omitempty"`
	Cell         *geo.GridCell `json:"cell,omitempty"`
	Visible      bool          `json:"visible"`
	Bio          string        `json:"bio"`
	LookingFor   string        `json:"lookingFor"`
	InterestTags []string      `json:"interestTags"`
	Enriched     bool          `json:"enriched"`
	EnrichedAt   *time.Time    `json:"enrichedAt,omitempty"`
}

type ProfileService interface {
	Ensure(ctx context.Context, id *Identity) error
	GetMe(ctx context.Context, userID uuid.UUID) (*OwnProfile, error)
	UpdateLocation(ctx context.Context, userID uuid.UUID, at geo.Point) error
	ClearLocation(ctx context.Context, userID uuid.UUID) error
	UpdateVisibility(ctx context.Context, userID uuid.UUID, visible bool) error
	UpdateDescriptor(ctx context.Context, userID uuid.UUID, src repos.DescriptorSource) error
}

type profileService struct {
	log       *logger.Logger
	profiles  repos.ProfileRepo
	scheduler PairScheduler
	queue     queue.Enqueuer
	radius    float64
}

func NewProfileService(baseLog *logger.Logger, profiles repos.ProfileRepo, scheduler PairScheduler, q queue.Enqueuer, radiusMeters float64) ProfileService {
	return &profileService{
		log:       baseLog.With("service", "ProfileService"),
		profiles:  profiles,
		scheduler: scheduler,
		queue:     q,
		radius:    radiusMeters,
	}
}

func (s *profileService) Ensure(ctx context.Context, id *Identity) error {
	if id == nil || id.UserID == uuid.Nil {
		return apperrors.ErrUnauthorized
	}
	if err := s.profiles.Ensure(dbctx.Context{Ctx: ctx}, id.UserID, id.DisplayName); err != nil {
		return apperrors.Store("ensure profile", err)
	}
	return nil
}

func (s *profileService) GetMe(ctx context.Context, userID uuid.UUID) (*OwnProfile, error) {
	p, err := s.profiles.GetByID(dbctx.Context{Ctx: ctx}, userID)
	if err != nil {
		return nil, apperrors.Store("get profile", err)
	}
	if p == nil {
		return nil, apperrors.ErrNotFound
	}
	out := &OwnProfile{
		UserID:       p.UserID,
		DisplayName:  p.DisplayName,
		Visible:      p.Visible,
		Bio:          p.Bio,
		LookingFor:   p.LookingFor,
		InterestTags: []string(p.InterestTags),
		Enriched:     p.IsEnriched(),
		EnrichedAt:   p.EnrichedAt,
	}
	if out.InterestTags == nil {
		out.InterestTags = []string{}
	}
	if p.HasLocation() {
		cell := geo.Quantize(*p.Lat, *p.Lng)
		out.Lat, out.Lng, out.Cell = p.Lat, p.Lng, &cell
	}
	return out, nil
}

// UpdateLocation stores the new position and, for visible users, schedules
// analysis against the new neighbourhood.
func (s *profileService) UpdateLocation(ctx context.Context, userID uuid.UUID, at geo.Point) error {
	if err := geo.ValidatePoint(at); err != nil {
		return err
	}
	p, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.profiles.UpdateLocation(dbctx.Context{Ctx: ctx}, userID, at.Lat, at.Lng); err != nil {
		return apperrors.Store("update location", err)
	}
	if p.Visible {
		s.trigger(ctx, userID, at)
	}
	return nil
}

func (s *profileService) ClearLocation(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.load(ctx, userID); err != nil {
		return err
	}
	if err := s.profiles.ClearLocation(dbctx.Context{Ctx: ctx}, userID); err != nil {
		return apperrors.Store("clear location", err)
	}
	return nil
}

func (s *profileService) UpdateVisibility(ctx context.Context, userID uuid.UUID, visible bool) error {
	p, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.profiles.UpdateVisibility(dbctx.Context{Ctx: ctx}, userID, visible); err != nil {
		return apperrors.Store("update visibility", err)
	}
	if visible && !p.Visible && p.HasLocation() {
		s.trigger(ctx, userID, geo.Point{Lat: *p.Lat, Lng: *p.Lng})
	}
	return nil
}

// UpdateDescriptor saves the free-text fields and queues enrichment, which
// recomputes the descriptor hash and invalidates every analysis built on
// the old one.
func (s *profileService) UpdateDescriptor(ctx context.Context, userID uuid.UUID, src repos.DescriptorSource) error {
	src, err := cleanDescriptorSource(src)
	if err != nil {
		return err
	}
	if _, err := s.load(ctx, userID); err != nil {
		return err
	}
	if err := s.profiles.UpdateDescriptorSource(dbctx.Context{Ctx: ctx}, userID, src); err != nil {
		return apperrors.Store("update descriptor", err)
	}
	if _, err := s.queue.Enqueue(ctx, payload.ProfileEnrichment{UserID: userID}, jobtypes.PriorityEnrichment); err != nil {
		s.log.Warn("Enrichment enqueue failed", "user_id", userID, "error", err)
	}
	return nil
}

func (s *profileService) load(ctx context.Context, userID uuid.UUID) (*types.Profile, error) {
	p, err := s.profiles.GetByID(dbctx.Context{Ctx: ctx}, userID)
	if err != nil {
		return nil, apperrors.Store("get profile", err)
	}
	if p == nil {
		return nil, apperrors.ErrNotFound
	}
	return p, nil
}

func (s *profileService) trigger(ctx context.Context, userID uuid.UUID, at geo.Point) {
	if s.scheduler == nil {
		return
	}
	if err := s.scheduler.TriggerNeighborhood(ctx, userID, at, s.radius); err != nil {
		s.log.Warn("Neighborhood trigger rejected", "user_id", userID, "error", err)
	}
}

func cleanDescriptorSource(src repos.DescriptorSource) (repos.DescriptorSource, error) {
	src.Bio = strings.TrimSpace(src.Bio)
	src.LookingFor = strings.TrimSpace(src.LookingFor)
	if len(src.Bio) > maxBioLen {
		return src, apperrors.Invalid("bio", fmt.Sprintf("must be at most %d bytes", maxBioLen))
	}
	if len(src.LookingFor) > maxLookingForLen {
		return src, apperrors.Invalid("lookingFor", fmt.Sprintf("must be at most %d bytes", maxLookingForLen))
	}
	if len(src.InterestTags) > maxTags {
		return src, apperrors.Invalid("interestTags", fmt.Sprintf("at most %d tags", maxTags))
	}
	tags := make([]string, 0, len(src.InterestTags))
	for _, t := range src.InterestTags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if len(t) > maxTagLen {
			return src, apperrors.Invalid("interestTags", fmt.Sprintf("tag longer than %d bytes", maxTagLen))
		}
		tags = append(tags, t)
	}
	src.InterestTags = tags
	return src, nil
}
