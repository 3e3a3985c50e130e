package catalog

import (
	"fmt"
	"strings"
)

// Status tracks whether a scene has been located on disk
type Status string

const (
	StatusUnmatched Status = "Unmatched"
	StatusFound     Status = "Found"
	StatusMissing   Status = "Missing"
	StatusUnknown   Status = "Unknown"
)

// ParseStatus validates a status string from config or storage
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusUnmatched, StatusFound, StatusMissing, StatusUnknown:
		return Status(s), nil
	}
	return "", fmt.Errorf("invalid scene status: %q", s)
}

// Scene is one released video known to the catalog
type Scene struct {
	ID         int64    `json:"id"`
	ForeignID  string   `json:"foreign_id"`
	Studio     string   `json:"studio"`
	Title      string   `json:"title"`
	Date       string   `json:"date,omitempty"`     // ISO-ish release date
	Duration   float64  `json:"duration,omitempty"` // minutes, 0 = unknown
	Performers []string `json:"performers,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	LocalPath  string   `json:"local_path,omitempty"`
	Status     Status   `json:"status"`
}

// NewScene builds a validated scene record
func NewScene(foreignID, studio, title string) (Scene, error) {
	if strings.TrimSpace(foreignID) == "" {
		return Scene{}, fmt.Errorf("scene requires a foreign id")
	}
	if strings.TrimSpace(title) == "" {
		return Scene{}, fmt.Errorf("scene %s requires a title", foreignID)
	}
	return Scene{
		ForeignID: foreignID,
		Studio:    studio,
		Title:     title,
		Status:    StatusUnmatched,
	}, nil
}

// Validate checks the invariants on an already-built scene
func (s Scene) Validate() error {
	if strings.TrimSpace(s.ForeignID) == "" {
		return fmt.Errorf("scene %d is missing a foreign id", s.ID)
	}
	if strings.TrimSpace(s.Title) == "" {
		return fmt.Errorf("scene %s is missing a title", s.ForeignID)
	}
	if s.Status != "" {
		if _, err := ParseStatus(string(s.Status)); err != nil {
			return err
		}
	}
	return nil
}

// Site is a studio with a home directory on disk
type Site struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	HomeDirectory string `json:"home_directory,omitempty"`
}
