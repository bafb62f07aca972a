package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"ms-ticketsync/internal/models"
)

// DB is the storage layer the sync engine writes through. Every mutation is
// a single-row statement keyed by natural key; rows are soft-deleted, never
// removed.
type DB struct {
	Bun *bun.DB
}

// GetEventInfo returns the event row, or (nil, nil) when none exists yet.
func (d *DB) GetEventInfo(id string) (*models.EventInfo, error) {
	var info models.EventInfo
	err := d.Bun.NewSelect().
		Model(&info).
		Where("id = ?", id).
		Limit(1).
		Scan(context.Background())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (d *DB) InsertEventInfo(info models.EventInfo) error {
	if info.CreatedAt.IsZero() {
		info.CreatedAt = time.Now()
	}
	info.UpdatedAt = info.CreatedAt
	_, err := d.Bun.NewInsert().Model(&info).Exec(context.Background())
	return err
}

func (d *DB) UpdateEventInfoName(id, name string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.EventInfo)(nil)).
		Set("name = ?", name).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(context.Background())
	return err
}

// GetItemInfosByEvent returns all item rows for an event, soft-deleted
// included; the differ needs the full set to reactivate returning items.
func (d *DB) GetItemInfosByEvent(eventInfoID string) ([]models.ItemInfo, error) {
	var items []models.ItemInfo
	err := d.Bun.NewSelect().
		Model(&items).
		Where("event_info_id = ?", eventInfoID).
		Order("item_id ASC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return items, nil
}

// GetActiveItemInfosByEvent returns only rows not soft-deleted. The ticket
// phase resolves position ownership against this set.
func (d *DB) GetActiveItemInfosByEvent(eventInfoID string) ([]models.ItemInfo, error) {
	var items []models.ItemInfo
	err := d.Bun.NewSelect().
		Model(&items).
		Where("event_info_id = ?", eventInfoID).
		Where("is_deleted = ?", false).
		Order("item_id ASC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (d *DB) InsertItemInfo(item models.ItemInfo) error {
	_, err := d.Bun.NewInsert().Model(&item).Exec(context.Background())
	return err
}

func (d *DB) UpdateItemInfo(item models.ItemInfo) error {
	_, err := d.Bun.NewUpdate().
		Model(&item).
		Column("name", "is_deleted").
		Where("id = ?", item.ID).
		Exec(context.Background())
	return err
}

func (d *DB) SoftDeleteItemInfo(id string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.ItemInfo)(nil)).
		Set("is_deleted = ?", true).
		Where("id = ?", id).
		Exec(context.Background())
	return err
}

// GetTicketsByEvent returns every ticket owned by any of the event's items,
// soft-deleted included.
func (d *DB) GetTicketsByEvent(eventInfoID string) ([]models.Ticket, error) {
	itemIDs := d.Bun.NewSelect().
		Model((*models.ItemInfo)(nil)).
		Column("id").
		Where("event_info_id = ?", eventInfoID)

	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("item_info_id IN (?)", itemIDs).
		Order("position_id ASC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (d *DB) InsertTicket(ticket models.Ticket) error {
	_, err := d.Bun.NewInsert().Model(&ticket).Exec(context.Background())
	return err
}

// UpdateTicket writes the sync-owned columns only. is_consumed belongs to
// the redemption consumer and must survive every pass untouched.
func (d *DB) UpdateTicket(ticket models.Ticket) error {
	_, err := d.Bun.NewUpdate().
		Model(&ticket).
		Column("email", "full_name", "item_info_id", "is_deleted").
		Where("position_id = ?", ticket.PositionID).
		Exec(context.Background())
	return err
}

func (d *DB) SoftDeleteTicket(positionID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("is_deleted = ?", true).
		Where("position_id = ?", positionID).
		Exec(context.Background())
	return err
}

// ConsumeTicket marks a ticket redeemed. Called from the check-in consumer,
// never from the sync engine.
func (d *DB) ConsumeTicket(positionID string) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("is_consumed = ?", true).
		Where("position_id = ?", positionID).
		Where("is_deleted = ?", false).
		Exec(context.Background())
	if err != nil {
		return err
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
