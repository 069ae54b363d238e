package intelligence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/collection"
	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/fragrance"
)

const testUser = "user-1"

var testNow = time.Date(2026, time.October, 16, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: testNow} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeRepo serves fixed collections and counts fetches.
type fakeRepo struct {
	mu      sync.Mutex
	items   map[string][]*collection.Item
	err     error
	panicOn string
	calls   int
}

func newFakeRepo(items ...*collection.Item) *fakeRepo {
	return &fakeRepo{items: map[string][]*collection.Item{testUser: items}}
}

func (r *fakeRepo) GetUserCollection(_ context.Context, userID string) ([]*collection.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.panicOn != "" && r.panicOn == userID {
		panic("repository exploded")
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.items[userID], nil
}

func (r *fakeRepo) set(items ...*collection.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[testUser] = items
}

func (r *fakeRepo) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// gatedRepo reads the collection, then holds the first fetch until release
// is closed. A fetch whose context ended while held reports that error.
type gatedRepo struct {
	*fakeRepo
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedRepo(items ...*collection.Item) *gatedRepo {
	return &gatedRepo{
		fakeRepo: newFakeRepo(items...),
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
}

func (r *gatedRepo) GetUserCollection(ctx context.Context, userID string) ([]*collection.Item, error) {
	items, err := r.fakeRepo.GetUserCollection(ctx, userID)
	r.once.Do(func() {
		close(r.entered)
		<-r.release
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return items, err
}

type itemOpt func(*collection.Item)

func withBrand(brand string) itemOpt {
	return func(it *collection.Item) { it.Fragrance.Brand = brand }
}

func withPrice(p float64) itemOpt {
	return func(it *collection.Item) { it.Fragrance.Price = p }
}

func withSeasons(s ...string) itemOpt {
	return func(it *collection.Item) { it.Seasons = s }
}

func withOccasions(o ...string) itemOpt {
	return func(it *collection.Item) { it.Occasions = o }
}

func withMoods(m ...string) itemOpt {
	return func(it *collection.Item) { it.EmotionalTags = m }
}

func withUsage(u collection.UsageFrequency) itemOpt {
	return func(it *collection.Item) { it.UsageFrequency = u }
}

func withIntensity(level int) itemOpt {
	return func(it *collection.Item) { it.Fragrance.IntensityLevel = level }
}

func withComplexity(c float64) itemOpt {
	return func(it *collection.Item) { it.Fragrance.ComplexityScore = c }
}

func withEmbedding(v ...float32) itemOpt {
	return func(it *collection.Item) { it.Fragrance.Embedding = fragrance.Embedding(v) }
}

func withNotes(notes ...string) itemOpt {
	return func(it *collection.Item) { it.Fragrance.TopNotes = notes }
}

func withCreated(t time.Time) itemOpt {
	return func(it *collection.Item) { it.CreatedAt = t }
}

func withLastUsed(t time.Time) itemOpt {
	return func(it *collection.Item) { it.LastUsedAt = &t }
}

func withPerformanceIssues() itemOpt {
	return func(it *collection.Item) { it.PerformanceIssues = true }
}

func withName(name string) itemOpt {
	return func(it *collection.Item) { it.Fragrance.Name = name }
}

func newItem(id, family string, rating int, opts ...itemOpt) *collection.Item {
	it := &collection.Item{
		FragranceID: id,
		Rating:      rating,
		CreatedAt:   testNow.Add(-24 * time.Hour),
		Fragrance:   &fragrance.Fragrance{ID: id, Name: "Fragrance " + id, Family: family},
	}
	for _, opt := range opts {
		opt(it)
	}
	return it
}

func analyzerConfig(repo collection.Repository, clock Clock) AnalyzerConfig {
	return AnalyzerConfig{Repository: repo, Clock: clock, Thresholds: DefaultThresholds()}
}

func newTestEngine(t *testing.T, repo collection.Repository, clock Clock, mutate ...func(*EngineConfig)) Engine {
	t.Helper()
	cfg := EngineConfig{Repository: repo, Clock: clock, Thresholds: DefaultThresholds()}
	for _, m := range mutate {
		m(&cfg)
	}
	e, err := NewEngine(cfg)
	require.NoError(t, err)
	return e
}

// scenarioA is six well-rated woody items and four poorly rated florals.
func scenarioA() []*collection.Item {
	var items []*collection.Item
	for i, r := range []int{5, 5, 4, 5, 4, 5} {
		items = append(items, newItem("w"+string(rune('0'+i)), "Woody", r))
	}
	for i, r := range []int{2, 3, 2, 3} {
		items = append(items, newItem("f"+string(rune('0'+i)), "floral", r))
	}
	return items
}
