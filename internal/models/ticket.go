package models

import (
	"github.com/uptrace/bun"
)

// Ticket is one attendee-level order position reconciled from the provider.
// PositionID is the provider-assigned position id, stable across fetches.
// IsConsumed belongs to the downstream redemption consumer; sync reads it
// but never writes it.
type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	PositionID string `bun:"position_id,pk"`
	ItemInfoID string `bun:"item_info_id,notnull"`
	Email      string `bun:"email,notnull"`
	FullName   string `bun:"full_name"`
	IsDeleted  bool   `bun:"is_deleted,notnull,default:false"`
	IsConsumed bool   `bun:"is_consumed,notnull,default:false"`
}
