package social

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Profile is the location-bearing half of a user. Descriptor and
// DescriptorHash stay empty until the enrichment job has run.
type Profile struct {
	UserID         uuid.UUID        `gorm:"type:uuid;primaryKey;column:user_id" json:"user_id"`
	DisplayName    string           `gorm:"column:display_name;not null" json:"display_name"`
	Lat            *float64         `gorm:"column:lat;index:idx_profile_location,priority:1" json:"lat,omitempty"`
	Lng            *float64         `gorm:"column:lng;index:idx_profile_location,priority:2" json:"lng,omitempty"`
	Visible        bool             `gorm:"column:visible;not null;index" json:"visible"`
	Bio            string           `gorm:"column:bio;type:text" json:"bio"`
	LookingFor     string           `gorm:"column:looking_for;type:text" json:"looking_for"`
	Descriptor     string           `gorm:"column:descriptor;type:text" json:"-"`
	DescriptorHash string           `gorm:"column:descriptor_hash;index" json:"-"`
	EnrichedAt     *time.Time       `gorm:"column:enriched_at" json:"enriched_at,omitempty"`
	Embedding      *pgvector.Vector `gorm:"column:embedding;type:vector" json:"-"`
	InterestTags   Tags             `gorm:"column:interest_tags" json:"interest_tags"`
	CreatedAt      time.Time        `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (Profile) TableName() string { return "profile" }

func (p *Profile) HasLocation() bool {
	return p != nil && p.Lat != nil && p.Lng != nil
}

func (p *Profile) IsEnriched() bool {
	return p != nil && p.DescriptorHash != ""
}
