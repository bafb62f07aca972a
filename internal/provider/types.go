package provider

// Order statuses as reported by the provider. Only paid orders ever become
// tickets; every other status is ignored entirely.
const (
	OrderStatusPaid      = "paid"
	OrderStatusPending   = "pending"
	OrderStatusCancelled = "cancelled"
)

// LocalizedString is the provider's multi-language name payload,
// e.g. {"en": "General Admission", "de": "Eintritt"}.
type LocalizedString map[string]string

// Value returns the English name when present, otherwise any available
// localization, otherwise "".
func (l LocalizedString) Value() string {
	if v, ok := l["en"]; ok && v != "" {
		return v
	}
	for _, v := range l {
		if v != "" {
			return v
		}
	}
	return ""
}

// Settings are the per-event flags the validator cares about.
type Settings struct {
	AttendeeEmailsAsked    bool `json:"attendee_emails_asked"`
	AttendeeEmailsRequired bool `json:"attendee_emails_required"`
}

// Item is one product as reported by the provider.
// GenerateTickets is tri-state upstream: nil means "unset".
type Item struct {
	ID              int64           `json:"id"`
	Name            LocalizedString `json:"name"`
	Admission       bool            `json:"admission"`
	Personalized    bool            `json:"personalized"`
	GenerateTickets *bool           `json:"generate_tickets"`
}

// EventMeta is the provider-side event record.
type EventMeta struct {
	Slug string          `json:"slug"`
	Name LocalizedString `json:"name"`
}

// Position is one attendee-level line item within an order.
type Position struct {
	ID            int64  `json:"id"`
	PositionID    int64  `json:"positionid"`
	Item          int64  `json:"item"`
	AttendeeName  string `json:"attendee_name"`
	AttendeeEmail string `json:"attendee_email"`
	Secret        string `json:"secret"`
}

// Order is one provider order with its positions.
type Order struct {
	Code      string     `json:"code"`
	Email     string     `json:"email"`
	Status    string     `json:"status"`
	Positions []Position `json:"positions"`
}
