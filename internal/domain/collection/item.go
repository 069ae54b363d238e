// Package collection models a user's owned or tried fragrances and the
// change events emitted when that set is edited.
package collection

import (
	"sort"
	"time"

	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/fragrance"
)

// UsageFrequency captures how often an item is worn.
type UsageFrequency string

const (
	UsageDaily      UsageFrequency = "daily"
	UsageWeekly     UsageFrequency = "weekly"
	UsageMonthly    UsageFrequency = "monthly"
	UsageOccasional UsageFrequency = "occasional"
	UsageSpecial    UsageFrequency = "special"
	UsageRarely     UsageFrequency = "rarely"
	UsageNever      UsageFrequency = "never"
	UsageUnknown    UsageFrequency = ""
)

// UsageFrequencies lists the known frequencies from most to least worn.
var UsageFrequencies = []UsageFrequency{
	UsageDaily, UsageWeekly, UsageMonthly, UsageOccasional, UsageSpecial, UsageRarely, UsageNever,
}

// IsValid reports whether u is a known frequency or unset.
func (u UsageFrequency) IsValid() bool {
	if u == UsageUnknown {
		return true
	}
	for _, k := range UsageFrequencies {
		if u == k {
			return true
		}
	}
	return false
}

// Seasons and occasions tracked by gap analysis.
var (
	Seasons   = []string{"spring", "summer", "fall", "winter"}
	Occasions = []string{"office", "casual", "evening", "date", "formal", "special"}
)

var seasonAliases = map[string]string{"autumn": "fall"}

// Item is one fragrance in a user's collection. Items are read-only for the
// duration of an analysis.
type Item struct {
	FragranceID       string               `json:"fragrance_id"`
	Rating            int                  `json:"rating,omitempty"`
	UsageFrequency    UsageFrequency       `json:"usage_frequency,omitempty"`
	Occasions         []string             `json:"occasions,omitempty"`
	Seasons           []string             `json:"seasons,omitempty"`
	EmotionalTags     []string             `json:"emotional_tags,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
	LastUsedAt        *time.Time           `json:"last_used_at,omitempty"`
	PerformanceIssues bool                 `json:"performance_issues,omitempty"`
	Fragrance         *fragrance.Fragrance `json:"fragrance,omitempty"`
}

// HasRating reports whether the user rated the item (1-5).
func (i *Item) HasRating() bool {
	return i.Rating >= 1 && i.Rating <= 5
}

// Family returns the normalized family of the attached fragrance.
func (i *Item) Family() string {
	return i.Fragrance.NormalizedFamily()
}

// Brand returns the brand of the attached fragrance, empty when unknown.
func (i *Item) Brand() string {
	if i.Fragrance == nil {
		return ""
	}
	return i.Fragrance.Brand
}

// Embedding returns the attached fragrance vector, nil when absent.
func (i *Item) Embedding() fragrance.Embedding {
	if i.Fragrance == nil {
		return nil
	}
	return i.Fragrance.Embedding
}

// HasSeason reports whether the item is tagged for season (autumn == fall).
func (i *Item) HasSeason(season string) bool {
	return containsTag(i.NormalizedSeasons(), NormalizeSeason(season))
}

// HasOccasion reports whether the item is tagged for occasion.
func (i *Item) HasOccasion(occasion string) bool {
	return containsTag(normalizeTags(i.Occasions), fragrance.NormalizeTag(occasion))
}

// NormalizedSeasons returns lower-cased season tags with aliases resolved.
func (i *Item) NormalizedSeasons() []string {
	out := make([]string, 0, len(i.Seasons))
	for _, s := range i.Seasons {
		if n := NormalizeSeason(s); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// NormalizedOccasions returns lower-cased occasion tags.
func (i *Item) NormalizedOccasions() []string { return normalizeTags(i.Occasions) }

// NormalizedEmotions returns lower-cased emotional tags.
func (i *Item) NormalizedEmotions() []string { return normalizeTags(i.EmotionalTags) }

// NormalizeSeason lower-cases a season tag and resolves aliases.
func NormalizeSeason(s string) string {
	n := fragrance.NormalizeTag(s)
	if alias, ok := seasonAliases[n]; ok {
		return alias
	}
	return n
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if n := fragrance.NormalizeTag(t); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// SortByFragranceID returns a copy of items ordered by fragrance ID.
func SortByFragranceID(items []*Item) []*Item {
	out := append([]*Item(nil), items...)
	sort.SliceStable(out, func(a, b int) bool { return out[a].FragranceID < out[b].FragranceID })
	return out
}

// SortByCreatedAt returns a copy of items in chronological order, ties broken by ID.
func SortByCreatedAt(items []*Item) []*Item {
	out := append([]*Item(nil), items...)
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].FragranceID < out[b].FragranceID
		}
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	return out
}
