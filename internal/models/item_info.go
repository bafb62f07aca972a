package models

import (
	"github.com/uptrace/bun"
)

// ItemInfo is the local copy of one active provider product/item.
// Natural key is (event_info_id, item_id); ID is an internal uuid that
// tickets reference so provider item ids never leak into foreign keys.
type ItemInfo struct {
	bun.BaseModel `bun:"table:item_info"`

	ID          string `bun:"id,pk"`
	EventInfoID string `bun:"event_info_id,notnull"`
	ItemID      string `bun:"item_id,notnull"`
	Name        string `bun:"name,notnull"`
	IsDeleted   bool   `bun:"is_deleted,notnull,default:false"`
}
