package collection

import "time"

// ChangeType enumerates collection mutations.
type ChangeType string

const (
	ChangeAdded        ChangeType = "added"
	ChangeRemoved      ChangeType = "removed"
	ChangeRated        ChangeType = "rated"
	ChangeUsageUpdated ChangeType = "usage_updated"
)

// IsValid reports whether c is a known change type.
func (c ChangeType) IsValid() bool {
	switch c {
	case ChangeAdded, ChangeRemoved, ChangeRated, ChangeUsageUpdated:
		return true
	}
	return false
}

// ChangeEvent describes one edit to a user's collection. It travels over the
// change topic and drives cache invalidation and change insights.
type ChangeEvent struct {
	EventID        string         `json:"event_id"`
	UserID         string         `json:"user_id" validate:"required"`
	ChangeType     ChangeType     `json:"change_type" validate:"required,oneof=added removed rated usage_updated"`
	FragranceID    string         `json:"fragrance_id" validate:"required"`
	Rating         int            `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	PreviousRating int            `json:"previous_rating,omitempty" validate:"omitempty,min=1,max=5"`
	UsageFrequency UsageFrequency `json:"usage_frequency,omitempty"`
	OccurredAt     time.Time      `json:"occurred_at"`
}
