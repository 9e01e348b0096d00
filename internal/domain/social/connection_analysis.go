package social

import (
	"time"

	"github.com/google/uuid"
)

// ConnectionAnalysis is what FromUser is told about ToUser. Scores and text
// are asymmetric, so every unordered pair has two rows.
type ConnectionAnalysis struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	FromUserID  uuid.UUID `gorm:"type:uuid;not null;column:from_user_id;uniqueIndex:idx_analysis_direction,priority:1" json:"from_user_id"`
	ToUserID    uuid.UUID `gorm:"type:uuid;not null;column:to_user_id;uniqueIndex:idx_analysis_direction,priority:2" json:"to_user_id"`
	PairKey     string    `gorm:"column:pair_key;not null;index" json:"pair_key"`
	Snippet     string    `gorm:"column:snippet;type:text" json:"snippet"`
	Description string    `gorm:"column:description;type:text" json:"description"`
	Score       int       `gorm:"column:score;not null" json:"score"`
	FromHash    string    `gorm:"column:from_hash;not null" json:"-"`
	ToHash      string    `gorm:"column:to_hash;not null" json:"-"`
	Degraded    bool      `gorm:"column:degraded;not null" json:"-"`
	ComputedAt  time.Time `gorm:"column:computed_at;not null" json:"computed_at"`
	CreatedAt   time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (ConnectionAnalysis) TableName() string { return "connection_analysis" }

// FreshFor reports whether the row was computed against exactly these
// descriptor hashes. Anything else is stale and must be recomputed.
func (a *ConnectionAnalysis) FreshFor(fromHash, toHash string) bool {
	if a == nil || fromHash == "" || toHash == "" {
		return false
	}
	return a.FromHash == fromHash && a.ToHash == toHash
}
