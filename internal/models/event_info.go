package models

import (
	"time"

	"github.com/uptrace/bun"
)

// EventInfo is the local copy of one configured provider event.
// The primary key is the EventConfig ID, not the provider slug, so a
// provider-side rename never orphans the row.
type EventInfo struct {
	bun.BaseModel `bun:"table:event_info"`

	ID        string    `bun:"id,pk"`
	Name      string    `bun:"name,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at"`
}
