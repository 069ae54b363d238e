package intelligence

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/collection"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

// Clock abstracts time so cache freshness and recency rules are testable.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// AnalyzerConfig carries the shared dependencies of every analyzer.
type AnalyzerConfig struct {
	Repository collection.Repository
	Logger     logging.Logger
	Thresholds Thresholds
	Clock      Clock
}

type analyzerBase struct {
	repo   collection.Repository
	logger logging.Logger
	clock  Clock
	tuning *thresholdStore
}

func newAnalyzerBase(cfg AnalyzerConfig, name string) (*analyzerBase, error) {
	if cfg.Repository == nil {
		return nil, errors.NewValidation("%s requires a collection Repository", name)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	return &analyzerBase{
		repo:   cfg.Repository,
		logger: logger.Named(name),
		clock:  clock,
		tuning: newThresholdStore(cfg.Thresholds),
	}, nil
}

// shareTuning makes sibling analyzers read the same threshold store.
func (b *analyzerBase) shareTuning(store *thresholdStore) {
	b.tuning = store
}

func (b *analyzerBase) th() Thresholds { return b.tuning.get().th }

// load fetches the collection and maps the fetch onto an Outcome. An empty
// collection is a successful, empty outcome.
func (b *analyzerBase) load(ctx context.Context, op, userID string) ([]*collection.Item, Outcome) {
	if userID == "" {
		return nil, failedWith(errors.NewValidation("user id is required"))
	}
	items, err := b.repo.GetUserCollection(ctx, userID)
	if err != nil {
		b.logger.Warn("collection fetch failed",
			logging.String("operation", op), logging.UserID(userID), logging.Err(err))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, failedWith(ctxErr)
		}
		return nil, failedWith(errors.Wrap(err, errors.ErrCodeDataAccessFailure, "failed to fetch collection"))
	}
	items = compact(items)
	if len(items) == 0 {
		return nil, emptyOutcome()
	}
	return items, succeeded()
}

// guard recovers a panic inside an analyzer method and records it on out.
func (b *analyzerBase) guard(op, userID string, out *Outcome) {
	if r := recover(); r != nil {
		b.logger.Error("analysis panicked",
			logging.String("operation", op), logging.UserID(userID), logging.Any("panic", r))
		*out = recovered(r)
	}
}

func compact(items []*collection.Item) []*collection.Item {
	out := items[:0:0]
	for _, it := range items {
		if it != nil {
			out = append(out, it)
		}
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// aggregation helpers
// ─────────────────────────────────────────────────────────────────────────────

// categoryStat is the ephemeral {count, ratings, total} aggregate built per analysis.
type categoryStat struct {
	name        string
	count       int
	ratings     []float64
	totalRating float64
}

func (s *categoryStat) add(item *collection.Item) {
	s.count++
	if item.HasRating() {
		r := float64(item.Rating)
		s.ratings = append(s.ratings, r)
		s.totalRating += r
	}
}

// avgRating is the mean of rated members, NeutralRating when none are rated.
func (s *categoryStat) avgRating() float64 {
	if len(s.ratings) == 0 {
		return collection.NeutralRating
	}
	return s.totalRating / float64(len(s.ratings))
}

// groupBy aggregates items under the keys returned by keys, preserving first-seen order.
func groupBy(items []*collection.Item, keys func(*collection.Item) []string) []*categoryStat {
	index := make(map[string]*categoryStat)
	var order []*categoryStat
	for _, it := range items {
		for _, k := range keys(it) {
			if k == "" {
				continue
			}
			st, ok := index[k]
			if !ok {
				st = &categoryStat{name: k}
				index[k] = st
				order = append(order, st)
			}
			st.add(it)
		}
	}
	return order
}

func familyKey(it *collection.Item) []string { return []string{it.Family()} }

func brandKey(it *collection.Item) []string {
	if it.Brand() == "" {
		return nil
	}
	return []string{it.Brand()}
}

func ratings(items []*collection.Item) []float64 {
	out := make([]float64, 0, len(items))
	for _, it := range items {
		if it.HasRating() {
			out = append(out, float64(it.Rating))
		}
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// variance is the population variance.
func variance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	var sum float64
	for _, x := range xs {
		sum += (x - m) * (x - m)
	}
	return sum / float64(len(xs))
}

func minMax(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	lo, hi := xs[0], xs[0]
	for _, x := range xs[1:] {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return lo, hi
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func uniqueCount(items []*collection.Item, key func(*collection.Item) []string) int {
	return len(groupBy(items, key))
}

// shareOf returns the fraction of items for which pred holds.
func shareOf(items []*collection.Item, pred func(*collection.Item) bool) float64 {
	if len(items) == 0 {
		return 0
	}
	n := 0
	for _, it := range items {
		if pred(it) {
			n++
		}
	}
	return float64(n) / float64(len(items))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
