package collection

import "github.com/turtacn/ScentIQ-Intelligence/internal/domain/fragrance"

// NeutralRating substitutes for a missing rating.
const NeutralRating = 3.0

// DefaultUsageWeight applies when the usage frequency is unknown.
const DefaultUsageWeight = 0.5

var usageWeights = map[UsageFrequency]float64{
	UsageDaily:      1.0,
	UsageWeekly:     0.8,
	UsageMonthly:    0.6,
	UsageOccasional: 0.5,
	UsageSpecial:    0.4,
	UsageRarely:     0.2,
	UsageNever:      0.1,
}

// RatingWeight maps a rating onto rating/5; an absent rating counts as 3/5.
func RatingWeight(item *Item) float64 {
	if item == nil || !item.HasRating() {
		return NeutralRating / 5
	}
	return float64(item.Rating) / 5
}

// UsageWeight maps the wear frequency onto (0, 1].
func UsageWeight(item *Item) float64 {
	if item == nil {
		return DefaultUsageWeight
	}
	if w, ok := usageWeights[item.UsageFrequency]; ok {
		return w
	}
	return DefaultUsageWeight
}

// WeightFunc scores an item's contribution to an aggregate.
type WeightFunc func(*Item) float64

// DefaultWeight is RatingWeight * UsageWeight.
func DefaultWeight(item *Item) float64 {
	return RatingWeight(item) * UsageWeight(item)
}

// WeightedAverageEmbedding synthesizes a taste vector from the item
// embeddings. A nil weightFn uses DefaultWeight.
func WeightedAverageEmbedding(items []*Item, weightFn WeightFunc) (fragrance.Embedding, error) {
	if weightFn == nil {
		weightFn = DefaultWeight
	}
	samples := make([]fragrance.Weighted, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		samples = append(samples, fragrance.Weighted{Vector: it.Embedding(), Weight: weightFn(it)})
	}
	return fragrance.WeightedAverage(samples)
}
