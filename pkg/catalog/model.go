package catalog

import (
	"fmt"
	"strings"
)

// Status is the sale status of a pet.
type Status string

const (
	StatusAvailable Status = "available"
	StatusPending   Status = "pending"
	StatusSold      Status = "sold"
)

// Statuses lists every known status in display order.
var Statuses = []Status{StatusAvailable, StatusPending, StatusSold}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusPending, StatusSold:
		return true
	default:
		return false
	}
}

// ParseStatus converts a user supplied value into a Status.
func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown pet status %q", v)
	}
	return s, nil
}

// Category groups pets. Both fields are optional upstream.
type Category struct {
	ID   *int64  `json:"id,omitempty"`
	Name *string `json:"name,omitempty"`
}

// Tag labels a pet. Both fields are optional upstream.
type Tag struct {
	ID   *int64  `json:"id,omitempty"`
	Name *string `json:"name,omitempty"`
}

// Pet is a validated catalog record. Only ID is guaranteed; an empty Status
// means the upstream value was missing or unknown.
type Pet struct {
	ID        int64     `json:"id"`
	Name      *string   `json:"name,omitempty"`
	Category  *Category `json:"category,omitempty"`
	PhotoURLs []string  `json:"photoUrls,omitempty"`
	Tags      []Tag     `json:"tags,omitempty"`
	Status    Status    `json:"status,omitempty"`
}

// DisplayName returns the pet name or a placeholder.
func (p Pet) DisplayName() string {
	if p.Name == nil || *p.Name == "" {
		return fmt.Sprintf("Pet #%d", p.ID)
	}
	return *p.Name
}
