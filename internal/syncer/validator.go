package syncer

import (
	"fmt"
	"strconv"

	"ms-ticketsync/internal/models"
	"ms-ticketsync/internal/provider"
)

// ValidateEvent checks one event's fetched provider configuration against
// the invariants syncing depends on. It returns every violation found, as
// human-readable strings; an empty result means the event is safe to sync.
// Items outside the active allow-list are never validated.
func ValidateEvent(cfg models.EventConfig, settings *provider.Settings, items []provider.Item) []string {
	var violations []string

	if !settings.AttendeeEmailsAsked {
		violations = append(violations,
			fmt.Sprintf("event %s does not ask for attendee emails (attendee_emails_asked is false)", cfg.EventID))
	}
	if !settings.AttendeeEmailsRequired {
		violations = append(violations,
			fmt.Sprintf("event %s does not require attendee emails (attendee_emails_required is false)", cfg.EventID))
	}

	active := cfg.ActiveItemSet()
	for _, item := range items {
		itemID := strconv.FormatInt(item.ID, 10)
		if !active[itemID] {
			continue
		}
		if !item.Admission {
			violations = append(violations,
				fmt.Sprintf("active item %s (%s) of event %s is not an admission product", itemID, item.Name.Value(), cfg.EventID))
		}
		if !item.Personalized {
			violations = append(violations,
				fmt.Sprintf("active item %s (%s) of event %s is not personalized", itemID, item.Name.Value(), cfg.EventID))
		}
		if item.GenerateTickets != nil && *item.GenerateTickets {
			violations = append(violations,
				fmt.Sprintf("active item %s (%s) of event %s forces automatic ticket generation", itemID, item.Name.Value(), cfg.EventID))
		}
	}

	return violations
}
