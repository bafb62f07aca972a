package config

import (
	"encoding/json"
	"fmt"
	"os"

	"ms-ticketsync/internal/models"
)

// Source supplies the current organizer configuration. The engine calls
// Load at the start of every pass so credential or allow-list edits take
// effect without a restart. A Load failure aborts that pass only.
type Source interface {
	Load() ([]models.OrganizerConfig, error)
}

// FileSource reads organizer configuration from a JSON file on every call.
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

type organizersDocument struct {
	Organizers []models.OrganizerConfig `json:"organizers"`
}

func (s *FileSource) Load() ([]models.OrganizerConfig, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read organizers file %s: %w", s.Path, err)
	}

	var doc organizersDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse organizers file %s: %w", s.Path, err)
	}

	for _, org := range doc.Organizers {
		if org.ID == "" || org.OrgURL == "" || org.Token == "" {
			return nil, fmt.Errorf("organizer entry missing id, orgURL or token in %s", s.Path)
		}
		for _, ev := range org.Events {
			if ev.ID == "" || ev.EventID == "" {
				return nil, fmt.Errorf("event entry under organizer %s missing id or eventID", org.ID)
			}
		}
	}

	return doc.Organizers, nil
}
