package syncer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-ticketsync/internal/models"
	"ms-ticketsync/internal/provider"
	"ms-ticketsync/internal/syncer"
)

func TestDiffItemsInsertsNewActiveItems(t *testing.T) {
	fetched := []provider.Item{admissionItem(7, "General Admission")}
	active := map[string]bool{"7": true}

	diff, err := syncer.DiffItems("ev1", nil, fetched, active)
	require.NoError(t, err)
	require.Len(t, diff.ToInsert, 1)
	assert.Equal(t, "7", diff.ToInsert[0].ItemID)
	assert.Equal(t, "ev1", diff.ToInsert[0].EventInfoID)
	assert.Equal(t, "General Admission", diff.ToInsert[0].Name)
	assert.NotEmpty(t, diff.ToInsert[0].ID)
	assert.Empty(t, diff.ToUpdate)
	assert.Empty(t, diff.ToDelete)
}

func TestDiffItemsFailsClosedOnDrift(t *testing.T) {
	// Active item 42 configured but absent from the fetch.
	fetched := []provider.Item{admissionItem(7, "General Admission")}
	active := map[string]bool{"7": true, "42": true}

	diff, err := syncer.DiffItems("ev1", nil, fetched, active)
	assert.Nil(t, diff)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "42")
	assert.Contains(t, err.Error(), "drift")
}

func TestDiffItemsUpdatesRenamedAndReactivated(t *testing.T) {
	existing := []models.ItemInfo{
		{ID: "i1", EventInfoID: "ev1", ItemID: "7", Name: "Old Name"},
		{ID: "i2", EventInfoID: "ev1", ItemID: "8", Name: "VIP", IsDeleted: true},
	}
	fetched := []provider.Item{
		admissionItem(7, "New Name"),
		admissionItem(8, "VIP"),
	}
	active := map[string]bool{"7": true, "8": true}

	diff, err := syncer.DiffItems("ev1", existing, fetched, active)
	require.NoError(t, err)
	require.Len(t, diff.ToUpdate, 2)
	assert.Equal(t, "New Name", diff.ToUpdate[0].Name)
	assert.False(t, diff.ToUpdate[0].IsDeleted)
	assert.Equal(t, "i2", diff.ToUpdate[1].ID)
	assert.False(t, diff.ToUpdate[1].IsDeleted)
	assert.Empty(t, diff.ToInsert)
	assert.Empty(t, diff.ToDelete)
}

func TestDiffItemsSoftDeletesItemsLeavingActiveSet(t *testing.T) {
	existing := []models.ItemInfo{
		{ID: "i1", EventInfoID: "ev1", ItemID: "7", Name: "GA"},
		{ID: "i2", EventInfoID: "ev1", ItemID: "8", Name: "VIP"},
		{ID: "i3", EventInfoID: "ev1", ItemID: "9", Name: "Gone", IsDeleted: true},
	}
	fetched := []provider.Item{admissionItem(7, "GA")}
	active := map[string]bool{"7": true}

	diff, err := syncer.DiffItems("ev1", existing, fetched, active)
	require.NoError(t, err)
	// i3 is already soft-deleted and must not be deleted again.
	require.Len(t, diff.ToDelete, 1)
	assert.Equal(t, "i2", diff.ToDelete[0].ID)
}

func TestDiffItemsIdempotent(t *testing.T) {
	existing := []models.ItemInfo{
		{ID: "i1", EventInfoID: "ev1", ItemID: "7", Name: "GA"},
	}
	fetched := []provider.Item{admissionItem(7, "GA")}
	active := map[string]bool{"7": true}

	diff, err := syncer.DiffItems("ev1", existing, fetched, active)
	require.NoError(t, err)
	assert.Empty(t, diff.ToInsert)
	assert.Empty(t, diff.ToUpdate)
	assert.Empty(t, diff.ToDelete)
}

func TestDiffTicketsInsertUpdateDelete(t *testing.T) {
	existing := []models.Ticket{
		{PositionID: "1", ItemInfoID: "i1", Email: "a@x.com", FullName: "A"},
		{PositionID: "2", ItemInfoID: "i1", Email: "b@x.com", FullName: "B"},
	}
	incoming := []models.Ticket{
		{PositionID: "2", ItemInfoID: "i1", Email: "b-new@x.com", FullName: "B"},
		{PositionID: "3", ItemInfoID: "i1", Email: "c@x.com", FullName: "C"},
	}

	diff := syncer.DiffTickets(existing, incoming)
	require.Len(t, diff.ToInsert, 1)
	assert.Equal(t, "3", diff.ToInsert[0].PositionID)
	require.Len(t, diff.ToUpdate, 1)
	assert.Equal(t, "2", diff.ToUpdate[0].PositionID)
	assert.Equal(t, "b-new@x.com", diff.ToUpdate[0].Email)
	require.Len(t, diff.ToDelete, 1)
	assert.Equal(t, "1", diff.ToDelete[0].PositionID)
}

func TestDiffTicketsReactivatesSoftDeleted(t *testing.T) {
	existing := []models.Ticket{
		{PositionID: "1", ItemInfoID: "i1", Email: "a@x.com", FullName: "A", IsDeleted: true},
	}
	incoming := []models.Ticket{
		{PositionID: "1", ItemInfoID: "i1", Email: "a@x.com", FullName: "A"},
	}

	diff := syncer.DiffTickets(existing, incoming)
	assert.Empty(t, diff.ToInsert)
	require.Len(t, diff.ToUpdate, 1)
	assert.False(t, diff.ToUpdate[0].IsDeleted)
	assert.Empty(t, diff.ToDelete)
}

func TestDiffTicketsIgnoresConsumedFlag(t *testing.T) {
	existing := []models.Ticket{
		{PositionID: "1", ItemInfoID: "i1", Email: "a@x.com", FullName: "A", IsConsumed: true},
	}
	incoming := []models.Ticket{
		{PositionID: "1", ItemInfoID: "i1", Email: "a@x.com", FullName: "A"},
	}

	diff := syncer.DiffTickets(existing, incoming)
	assert.Empty(t, diff.ToInsert)
	assert.Empty(t, diff.ToUpdate)
	assert.Empty(t, diff.ToDelete)
}

func TestDiffTicketsDoesNotReDeleteSoftDeleted(t *testing.T) {
	existing := []models.Ticket{
		{PositionID: "1", ItemInfoID: "i1", Email: "a@x.com", IsDeleted: true},
	}

	diff := syncer.DiffTickets(existing, nil)
	assert.Empty(t, diff.ToInsert)
	assert.Empty(t, diff.ToUpdate)
	assert.Empty(t, diff.ToDelete)
}
