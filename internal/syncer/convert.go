package syncer

import (
	"fmt"
	"strconv"
	"strings"

	"ms-ticketsync/internal/logger"
	"ms-ticketsync/internal/models"
	"ms-ticketsync/internal/provider"
)

// TicketsFromOrders converts fetched orders into ticket rows. Only paid
// orders contribute; positions whose item is not an active ItemInfo are
// dropped silently. itemsByProviderID maps provider item id → stored row.
func TicketsFromOrders(eventID string, orders []provider.Order, itemsByProviderID map[string]models.ItemInfo, log *logger.Logger) []models.Ticket {
	var tickets []models.Ticket

	for _, order := range orders {
		if order.Status != provider.OrderStatusPaid {
			continue
		}
		for _, pos := range order.Positions {
			item, ok := itemsByProviderID[strconv.FormatInt(pos.Item, 10)]
			if !ok {
				continue
			}

			email := pos.AttendeeEmail
			if email == "" {
				email = order.Email
				if log != nil {
					log.LogSync(eventID, fmt.Sprintf("position %d of order %s has no attendee email, falling back to purchaser email", pos.ID, order.Code))
				}
			}

			tickets = append(tickets, models.Ticket{
				PositionID: strconv.FormatInt(pos.ID, 10),
				ItemInfoID: item.ID,
				Email:      strings.ToLower(email),
				FullName:   pos.AttendeeName,
			})
		}
	}

	return tickets
}
