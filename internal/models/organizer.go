package models

// OrganizerConfig describes one provider organizer account this deployment
// syncs from. Loaded fresh from the config source at the start of every
// pass and treated as immutable for the duration of that pass.
type OrganizerConfig struct {
	ID     string        `json:"id"`
	OrgURL string        `json:"orgURL"`
	Token  string        `json:"token"`
	Events []EventConfig `json:"events"`
}

// EventConfig is the local configuration for one provider event.
// ActiveItemIDs is a configuration-side allow-list of provider item ids,
// not provider data.
type EventConfig struct {
	ID            string   `json:"id"`
	EventID       string   `json:"eventID"`
	ActiveItemIDs []string `json:"activeItemIDs"`
}

// ActiveItemSet returns the allow-list as a set for membership checks.
func (e EventConfig) ActiveItemSet() map[string]bool {
	set := make(map[string]bool, len(e.ActiveItemIDs))
	for _, id := range e.ActiveItemIDs {
		set[id] = true
	}
	return set
}
