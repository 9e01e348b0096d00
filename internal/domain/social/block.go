package social

import (
	"time"

	"github.com/google/uuid"
)

// Block is a directed edge. Visibility and scheduling treat either
// direction as mutual exclusion.
type Block struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BlockerID uuid.UUID `gorm:"type:uuid;not null;column:blocker_id;uniqueIndex:idx_block_edge,priority:1" json:"blocker_id"`
	BlockedID uuid.UUID `gorm:"type:uuid;not null;column:blocked_id;uniqueIndex:idx_block_edge,priority:2;index" json:"blocked_id"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

func (Block) TableName() string { return "block" }
