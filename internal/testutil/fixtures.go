// Package testutil provides collection fixtures shared by tests across
// packages.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/collection"
	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/fragrance"
)

// Now is the reference instant fixtures are dated against.
var Now = time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)

// FixedClock always reports T.
type FixedClock struct{ T time.Time }

func (c FixedClock) Now() time.Time { return c.T }

// ItemOption customises an Item built by NewItem.
type ItemOption func(*collection.Item)

// NewItem builds a rated, weekly-worn spring office item owned for two
// months. Its fragrance costs 90 and comes from brand "House".
func NewItem(id, family string, rating int, opts ...ItemOption) *collection.Item {
	it := &collection.Item{
		FragranceID:    id,
		Rating:         rating,
		UsageFrequency: collection.UsageWeekly,
		Seasons:        []string{"spring"},
		Occasions:      []string{"office"},
		CreatedAt:      Now.AddDate(0, -2, 0),
		Fragrance: &fragrance.Fragrance{
			ID:     id,
			Name:   "Scent " + id,
			Brand:  "House",
			Family: family,
			Price:  90,
		},
	}
	for _, o := range opts {
		o(it)
	}
	return it
}

func WithUsage(u collection.UsageFrequency) ItemOption {
	return func(it *collection.Item) { it.UsageFrequency = u }
}

func WithSeasons(s ...string) ItemOption {
	return func(it *collection.Item) { it.Seasons = s }
}

func WithOccasions(o ...string) ItemOption {
	return func(it *collection.Item) { it.Occasions = o }
}

func WithBrand(brand string) ItemOption {
	return func(it *collection.Item) { it.Fragrance.Brand = brand }
}

func WithPrice(p float64) ItemOption {
	return func(it *collection.Item) { it.Fragrance.Price = p }
}

func WithEmbedding(e ...float32) ItemOption {
	return func(it *collection.Item) { it.Fragrance.Embedding = fragrance.Embedding(e) }
}

// AddedAgo dates the item d before Now.
func AddedAgo(d time.Duration) ItemOption {
	return func(it *collection.Item) { it.CreatedAt = Now.Add(-d) }
}

// LastUsedAgo records the last wear d before Now.
func LastUsedAgo(d time.Duration) ItemOption {
	return func(it *collection.Item) {
		t := Now.Add(-d)
		it.LastUsedAt = &t
	}
}

// StaticRepository serves fixed collections and counts reads per user.
type StaticRepository struct {
	mu    sync.Mutex
	items map[string][]*collection.Item
	reads map[string]int
	err   error
}

var _ collection.Repository = (*StaticRepository)(nil)

func NewStaticRepository() *StaticRepository {
	return &StaticRepository{items: map[string][]*collection.Item{}, reads: map[string]int{}}
}

// Set replaces userID's collection.
func (r *StaticRepository) Set(userID string, items ...*collection.Item) *StaticRepository {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[userID] = items
	return r
}

// FailWith makes every later read return err; nil clears it.
func (r *StaticRepository) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *StaticRepository) GetUserCollection(_ context.Context, userID string) ([]*collection.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads[userID]++
	if r.err != nil {
		return nil, r.err
	}
	return r.items[userID], nil
}

// Reads reports how often userID's collection was fetched.
func (r *StaticRepository) Reads(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads[userID]
}
