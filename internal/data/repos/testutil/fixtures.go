package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/nearby-backend/internal/domain"
)

type ProfileOpt func(p *types.Profile)

func At(lat, lng float64) ProfileOpt {
	return func(p *types.Profile) {
		p.Lat = &lat
		p.Lng = &lng
	}
}

func Hidden() ProfileOpt {
	return func(p *types.Profile) { p.Visible = false }
}

// Enriched gives the profile a descriptor and its hash, as the enrichment
// job would.
func Enriched(descriptor string) ProfileOpt {
	return func(p *types.Profile) {
		sum := sha256.Sum256([]byte(descriptor))
		now := time.Now().UTC()
		p.Descriptor = descriptor
		p.DescriptorHash = hex.EncodeToString(sum[:])
		p.EnrichedAt = &now
	}
}

func Named(name string) ProfileOpt {
	return func(p *types.Profile) { p.DisplayName = name }
}

// SeedProfile inserts a visible profile; opts adjust it.
func SeedProfile(tb testing.TB, ctx context.Context, tx *gorm.DB, opts ...ProfileOpt) *types.Profile {
	tb.Helper()
	p := &types.Profile{
		UserID:      uuid.New(),
		DisplayName: "user",
		Visible:     true,
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed profile: %v", err)
	}
	return p
}

func SeedBlock(tb testing.TB, ctx context.Context, tx *gorm.DB, blockerID, blockedID uuid.UUID) *types.Block {
	tb.Helper()
	b := &types.Block{
		ID:        uuid.New(),
		BlockerID: blockerID,
		BlockedID: blockedID,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(b).Error; err != nil {
		tb.Fatalf("seed block: %v", err)
	}
	return b
}
