package db_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-ticketsync/internal/models"
	"ms-ticketsync/internal/syncer/db"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.EventInfo)(nil),
		(*models.ItemInfo)(nil),
		(*models.Ticket)(nil),
	} {
		_, err = bunDB.NewCreateTable().Model(model).Exec(ctx)
		if err != nil {
			t.Fatalf("Failed to create table for %T: %v", model, err)
		}
	}

	return &db.DB{Bun: bunDB}, bunDB
}

func TestEventInfoUpsert(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	info, err := store.GetEventInfo("ev1")
	require.NoError(t, err)
	assert.Nil(t, info)

	err = store.InsertEventInfo(models.EventInfo{ID: "ev1", Name: "Test Conf"})
	require.NoError(t, err)

	info, err = store.GetEventInfo("ev1")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "Test Conf", info.Name)

	err = store.UpdateEventInfoName("ev1", "Renamed Conf")
	require.NoError(t, err)

	info, err = store.GetEventInfo("ev1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed Conf", info.Name)
}

func TestItemInfoSoftDelete(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	require.NoError(t, store.InsertEventInfo(models.EventInfo{ID: "ev1", Name: "Test Conf"}))

	itemID := uuid.New().String()
	require.NoError(t, store.InsertItemInfo(models.ItemInfo{
		ID:          itemID,
		EventInfoID: "ev1",
		ItemID:      "7",
		Name:        "General Admission",
	}))

	active, err := store.GetActiveItemInfosByEvent("ev1")
	require.NoError(t, err)
	require.Len(t, active, 1)

	require.NoError(t, store.SoftDeleteItemInfo(itemID))

	// Soft-deleted rows disappear from the active set but not the full set.
	active, err = store.GetActiveItemInfosByEvent("ev1")
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := store.GetItemInfosByEvent("ev1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].IsDeleted)

	// Reactivation goes through UpdateItemInfo, never a second insert.
	row := all[0]
	row.IsDeleted = false
	row.Name = "General Admission v2"
	require.NoError(t, store.UpdateItemInfo(row))

	active, err = store.GetActiveItemInfosByEvent("ev1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "General Admission v2", active[0].Name)
}

func TestTicketLifecycle(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	require.NoError(t, store.InsertEventInfo(models.EventInfo{ID: "ev1", Name: "Test Conf"}))
	itemID := uuid.New().String()
	require.NoError(t, store.InsertItemInfo(models.ItemInfo{
		ID:          itemID,
		EventInfoID: "ev1",
		ItemID:      "7",
		Name:        "GA",
	}))

	require.NoError(t, store.InsertTicket(models.Ticket{
		PositionID: "101",
		ItemInfoID: itemID,
		Email:      "a@x.com",
		FullName:   "Ada",
	}))

	tickets, err := store.GetTicketsByEvent("ev1")
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "101", tickets[0].PositionID)
	assert.False(t, tickets[0].IsDeleted)
	assert.False(t, tickets[0].IsConsumed)

	// Redemption marks the ticket consumed.
	require.NoError(t, store.ConsumeTicket("101"))

	// A sync update must not clear the consumed flag.
	require.NoError(t, store.UpdateTicket(models.Ticket{
		PositionID: "101",
		ItemInfoID: itemID,
		Email:      "new@x.com",
		FullName:   "Ada Lovelace",
	}))

	tickets, err = store.GetTicketsByEvent("ev1")
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "new@x.com", tickets[0].Email)
	assert.True(t, tickets[0].IsConsumed)

	require.NoError(t, store.SoftDeleteTicket("101"))
	tickets, err = store.GetTicketsByEvent("ev1")
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.True(t, tickets[0].IsDeleted)
}

func TestConsumeTicketEdgeCases(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	require.NoError(t, store.InsertEventInfo(models.EventInfo{ID: "ev1", Name: "Test Conf"}))
	itemID := uuid.New().String()
	require.NoError(t, store.InsertItemInfo(models.ItemInfo{ID: itemID, EventInfoID: "ev1", ItemID: "7", Name: "GA"}))

	// Unknown position id.
	assert.ErrorIs(t, store.ConsumeTicket("nope"), sql.ErrNoRows)

	// Soft-deleted tickets cannot be consumed.
	require.NoError(t, store.InsertTicket(models.Ticket{PositionID: "101", ItemInfoID: itemID, Email: "a@x.com"}))
	require.NoError(t, store.SoftDeleteTicket("101"))
	assert.ErrorIs(t, store.ConsumeTicket("101"), sql.ErrNoRows)
}

func TestGetTicketsByEventScopesToEvent(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	require.NoError(t, store.InsertEventInfo(models.EventInfo{ID: "ev1", Name: "One"}))
	require.NoError(t, store.InsertEventInfo(models.EventInfo{ID: "ev2", Name: "Two"}))

	item1 := uuid.New().String()
	item2 := uuid.New().String()
	require.NoError(t, store.InsertItemInfo(models.ItemInfo{ID: item1, EventInfoID: "ev1", ItemID: "7", Name: "GA"}))
	require.NoError(t, store.InsertItemInfo(models.ItemInfo{ID: item2, EventInfoID: "ev2", ItemID: "7", Name: "GA"}))

	require.NoError(t, store.InsertTicket(models.Ticket{PositionID: "101", ItemInfoID: item1, Email: "a@x.com"}))
	require.NoError(t, store.InsertTicket(models.Ticket{PositionID: "102", ItemInfoID: item2, Email: "b@x.com"}))

	tickets, err := store.GetTicketsByEvent("ev1")
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "101", tickets[0].PositionID)
}
