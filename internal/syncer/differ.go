package syncer

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"

	"ms-ticketsync/internal/models"
	"ms-ticketsync/internal/provider"
)

// ItemDiff is the set of item-info writes one pass has to apply. The three
// sets are disjoint and derived once from keyed maps, not repeated scans.
type ItemDiff struct {
	ToInsert []models.ItemInfo
	ToUpdate []models.ItemInfo
	ToDelete []models.ItemInfo
}

// DiffItems compares the fetched item list against the stored rows for one
// event. It fails closed when any allow-listed item id is absent from the
// fetch: that means the item was deleted or reconfigured upstream, and
// applying a partial view could orphan tickets.
func DiffItems(eventInfoID string, existing []models.ItemInfo, fetched []provider.Item, active map[string]bool) (*ItemDiff, error) {
	fetchedByID := make(map[string]provider.Item, len(fetched))
	for _, item := range fetched {
		fetchedByID[strconv.FormatInt(item.ID, 10)] = item
	}

	for itemID := range active {
		if _, ok := fetchedByID[itemID]; !ok {
			return nil, fmt.Errorf("active item %s missing from provider fetch for event %s (configuration drift)", itemID, eventInfoID)
		}
	}

	existingByID := make(map[string]models.ItemInfo, len(existing))
	for _, row := range existing {
		existingByID[row.ItemID] = row
	}

	diff := &ItemDiff{}

	activeIDs := make([]string, 0, len(active))
	for itemID := range active {
		activeIDs = append(activeIDs, itemID)
	}
	sort.Strings(activeIDs)

	for _, itemID := range activeIDs {
		item := fetchedByID[itemID]
		row, ok := existingByID[itemID]
		if !ok {
			diff.ToInsert = append(diff.ToInsert, models.ItemInfo{
				ID:          uuid.New().String(),
				EventInfoID: eventInfoID,
				ItemID:      itemID,
				Name:        item.Name.Value(),
			})
			continue
		}
		if row.Name != item.Name.Value() || row.IsDeleted {
			row.Name = item.Name.Value()
			row.IsDeleted = false
			diff.ToUpdate = append(diff.ToUpdate, row)
		}
	}

	for _, row := range existing {
		if !active[row.ItemID] && !row.IsDeleted {
			diff.ToDelete = append(diff.ToDelete, row)
		}
	}
	sort.Slice(diff.ToDelete, func(i, j int) bool {
		return diff.ToDelete[i].ItemID < diff.ToDelete[j].ItemID
	})

	return diff, nil
}

// TicketDiff is the set of ticket writes one pass has to apply, keyed by
// provider position id.
type TicketDiff struct {
	ToInsert []models.Ticket
	ToUpdate []models.Ticket
	ToDelete []models.Ticket
}

// ticketNeedsUpdate compares the sync-owned fields only. is_consumed is
// owned by redemption and never participates in the comparison.
func ticketNeedsUpdate(existing, incoming models.Ticket) bool {
	return existing.Email != incoming.Email ||
		existing.FullName != incoming.FullName ||
		existing.ItemInfoID != incoming.ItemInfoID ||
		existing.IsDeleted
}

// DiffTickets compares the freshly converted tickets against the stored
// rows. A stored row absent from the fetch is soft-deleted; a soft-deleted
// row present again is reactivated via the update set, never duplicated.
func DiffTickets(existing, incoming []models.Ticket) *TicketDiff {
	existingByID := make(map[string]models.Ticket, len(existing))
	for _, row := range existing {
		existingByID[row.PositionID] = row
	}
	incomingByID := make(map[string]models.Ticket, len(incoming))
	for _, row := range incoming {
		incomingByID[row.PositionID] = row
	}

	diff := &TicketDiff{}

	sortedIncoming := make([]models.Ticket, len(incoming))
	copy(sortedIncoming, incoming)
	sort.Slice(sortedIncoming, func(i, j int) bool {
		return sortedIncoming[i].PositionID < sortedIncoming[j].PositionID
	})

	for _, ticket := range sortedIncoming {
		row, ok := existingByID[ticket.PositionID]
		if !ok {
			diff.ToInsert = append(diff.ToInsert, ticket)
			continue
		}
		if ticketNeedsUpdate(row, ticket) {
			ticket.IsDeleted = false
			diff.ToUpdate = append(diff.ToUpdate, ticket)
		}
	}

	for _, row := range existing {
		if _, ok := incomingByID[row.PositionID]; !ok && !row.IsDeleted {
			diff.ToDelete = append(diff.ToDelete, row)
		}
	}
	sort.Slice(diff.ToDelete, func(i, j int) bool {
		return diff.ToDelete[i].PositionID < diff.ToDelete[j].PositionID
	})

	return diff
}
