package entity

import (
	"strings"
	"time"
)

// CategoryOverride is a household's learned item -> category choice.
type CategoryOverride struct {
	HouseholdID string    `json:"household_id"`
	ItemName    string    `json:"item_name"`
	Category    string    `json:"category"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NormalizeItemName is the key form used for learned categories.
func NormalizeItemName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
