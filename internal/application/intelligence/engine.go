package intelligence

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/collection"
	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/fragrance"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

const opAnalyzeCollection = "analyze_collection"

// MetricsRecorder receives engine measurements. The Prometheus adapter lives
// in the monitoring package.
type MetricsRecorder interface {
	ObserveAnalysis(operation, status string, d time.Duration)
	RecordCacheLookup(hit bool)
}

type nopMetrics struct{}

func (nopMetrics) ObserveAnalysis(string, string, time.Duration) {}
func (nopMetrics) RecordCacheLookup(bool)                        {}

// CatalogSearcher finds catalog fragrances in the given families, skipping
// the excluded IDs.
type CatalogSearcher interface {
	SearchByFamilies(ctx context.Context, families []string, exclude []string, limit int) ([]*fragrance.Fragrance, error)
}

// Insights groups the descriptive views of the collection.
type Insights struct {
	Patterns   PatternAnalysis    `json:"patterns"`
	Brands     BrandAnalysis      `json:"brands"`
	Notes      NoteAnalysis       `json:"notes"`
	Clusters   ClusterAnalysis    `json:"clusters"`
	Usage      UsagePatterns      `json:"usage"`
	Health     CollectionHealth   `json:"health"`
	Predictive PredictiveInsights `json:"predictive"`
	Moods      MoodMapping        `json:"moods"`
}

type PerformanceMetrics struct {
	DurationMillis  float64   `json:"duration_ms"`
	CollectionSize  int       `json:"collection_size"`
	ComplexityScore float64   `json:"complexity_score"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// CollectionAnalysis is the unified engine output for one user.
type CollectionAnalysis struct {
	Outcome
	UserID             string             `json:"user_id"`
	Insights           Insights           `json:"insights"`
	PersonalityProfile PersonalityProfile `json:"personality_profile"`
	GapAnalysis        GapAnalysis        `json:"gap_analysis"`
	OptimizationPlan   OptimizationPlan   `json:"optimization_plan"`
	CacheUsed          bool               `json:"cache_used"`
	CacheAgeSeconds    float64            `json:"cache_age_seconds"`
	PerformanceMetrics PerformanceMetrics `json:"performance_metrics"`
}

// Engine orchestrates the analyzers, caches results per user and serves
// incremental recommendations.
type Engine interface {
	AnalyzeCollection(ctx context.Context, userID string) *CollectionAnalysis
	InvalidateCacheOnCollectionChange(ctx context.Context, userID string, change *collection.ChangeEvent) error
	RecommendAdditions(ctx context.Context, userID string, limit int) *RecommendationReport

	Patterns() PatternAnalyzer
	Gaps() GapAnalysisEngine
	Optimizer() CollectionOptimizer
	Personality() PersonalityProfiler
	Insights() InsightGenerator

	// SetThresholds swaps scoring constants for every analyzer at once.
	SetThresholds(t Thresholds)
}

// EngineConfig wires the engine. Only Repository is required.
type EngineConfig struct {
	Repository collection.Repository
	Cache      AnalysisCache
	Clock      Clock
	Logger     logging.Logger
	Thresholds Thresholds
	Metrics    MetricsRecorder
	Catalog    CatalogSearcher
	Embeddings collection.EmbeddingSource
}

type engine struct {
	base *analyzerBase

	patterns *patternAnalyzer
	gaps     *gapAnalyzer
	opt      *optimizer
	prof     *profiler
	ins      *insightGenerator

	cache      AnalysisCache
	metrics    MetricsRecorder
	catalog    CatalogSearcher
	embeddings collection.EmbeddingSource
	flight     singleflight.Group
}

// NewEngine builds the engine and its analyzers over one shared threshold store.
func NewEngine(cfg EngineConfig) (Engine, error) {
	acfg := AnalyzerConfig{Repository: cfg.Repository, Logger: cfg.Logger, Thresholds: cfg.Thresholds, Clock: cfg.Clock}
	base, err := newAnalyzerBase(acfg, "engine")
	if err != nil {
		return nil, err
	}
	sibling := func(name string) *analyzerBase {
		b, _ := newAnalyzerBase(acfg, name)
		b.shareTuning(base.tuning)
		return b
	}

	e := &engine{
		base:       base,
		patterns:   &patternAnalyzer{analyzerBase: sibling("patterns")},
		gaps:       &gapAnalyzer{analyzerBase: sibling("gaps")},
		opt:        &optimizer{analyzerBase: sibling("optimizer")},
		prof:       &profiler{analyzerBase: sibling("personality")},
		ins:        newInsightGenerator(sibling("insights")),
		cache:      cfg.Cache,
		metrics:    cfg.Metrics,
		catalog:    cfg.Catalog,
		embeddings: cfg.Embeddings,
	}
	if e.cache == nil {
		e.cache = NewMemoryCache()
	}
	if e.metrics == nil {
		e.metrics = nopMetrics{}
	}
	return e, nil
}

func (e *engine) Patterns() PatternAnalyzer        { return e.patterns }
func (e *engine) Gaps() GapAnalysisEngine          { return e.gaps }
func (e *engine) Optimizer() CollectionOptimizer   { return e.opt }
func (e *engine) Personality() PersonalityProfiler { return e.prof }
func (e *engine) Insights() InsightGenerator       { return e.ins }
func (e *engine) SetThresholds(t Thresholds)       { e.base.tuning.set(t) }

func emptyAnalysis(userID string) *CollectionAnalysis {
	return &CollectionAnalysis{
		UserID: userID,
		Insights: Insights{
			Patterns:   PatternAnalysis{FamilyDistribution: []FamilyShare{}},
			Brands:     BrandAnalysis{Brands: []BrandAffinity{}},
			Clusters:   ClusterAnalysis{Clusters: []Cluster{}},
			Health:     CollectionHealth{HealthScore: 1, Issues: []HealthIssue{}},
			Predictive: PredictiveInsights{StrengtheningPreferences: []PreferenceTrend{}},
			Moods:      moodMapping(nil),
		},
		PersonalityProfile: emptyProfile(),
		GapAnalysis: GapAnalysis{
			Seasonal:  emptySeasonalGaps(),
			Occasion:  OccasionGaps{Gaps: []OccasionGap{}, LifestyleImpact: SeverityLow},
			Intensity: IntensityGaps{Distribution: map[string]float64{}, Gaps: []IntensityGap{}},
			Diversity: DiversityAnalysis{DiversityLevel: DiversityLow, ExpansionSuggestions: []string{}},
		},
		OptimizationPlan: OptimizationPlan{
			Balance: BalanceOptimization{CurrentDistribution: []FamilyShare{}, Overrepresented: []FamilyShare{}, Underrepresented: []string{}},
			Usage:   UsageOptimization{Underutilized: []UnderutilizedItem{}},
		},
	}
}

func outcomeStatus(o Outcome) string {
	switch {
	case o.Failure != nil:
		return string(o.Failure.Kind)
	case o.Empty:
		return "empty"
	default:
		return "success"
	}
}

// AnalyzeCollection returns the cached analysis while fresh, else recomputes.
// Concurrent misses for one user share a single computation, which runs
// detached from any one caller's cancellation. Every caller receives its own
// copy of the analysis.
func (e *engine) AnalyzeCollection(ctx context.Context, userID string) (result *CollectionAnalysis) {
	start := time.Now()
	result = emptyAnalysis(userID)
	defer func() {
		if r := recover(); r != nil {
			e.base.logger.Error("analysis panicked", logging.UserID(userID), logging.Any("panic", r))
			result = emptyAnalysis(userID)
			result.Outcome = recovered(r)
		}
		e.metrics.ObserveAnalysis(opAnalyzeCollection, outcomeStatus(result.Outcome), time.Since(start))
	}()

	if userID == "" {
		result.Outcome = failedWith(errors.NewValidation("user id is required"))
		return result
	}
	if err := ctx.Err(); err != nil {
		result.Outcome = failedWith(err)
		return result
	}

	if hit := e.lookup(ctx, userID); hit != nil {
		return hit
	}

	shared := context.WithoutCancel(ctx)
	ch := e.flight.DoChan(userID, func() (interface{}, error) {
		return e.computeAndStore(shared, userID, start), nil
	})
	select {
	case <-ctx.Done():
		result.Outcome = failedWith(ctx.Err())
		return result
	case res := <-ch:
		if res.Shared {
			e.base.logger.Debug("analysis shared with concurrent caller", logging.UserID(userID))
		}
		return e.copyOf(res.Val.(*CollectionAnalysis))
	}
}

// computeAndStore runs one computation and caches a successful result under
// the generation observed before the collection was read.
func (e *engine) computeAndStore(ctx context.Context, userID string, start time.Time) (analysis *CollectionAnalysis) {
	defer func() {
		if r := recover(); r != nil {
			e.base.logger.Error("analysis panicked", logging.UserID(userID), logging.Any("panic", r))
			analysis = emptyAnalysis(userID)
			analysis.Outcome = recovered(r)
		}
	}()

	gen, genErr := e.cache.Generation(ctx, userID)
	if genErr != nil {
		e.base.logger.Warn("cache generation unavailable, result will not be cached",
			logging.UserID(userID), logging.Err(genErr))
	}
	analysis = e.compute(ctx, userID, start)
	if analysis.Success && genErr == nil {
		entry := &CacheEntry{Analysis: analysis, CreatedAt: e.base.clock.Now(), Generation: gen}
		if err := e.cache.Put(ctx, userID, entry); err != nil {
			e.base.logger.Warn("failed to store analysis", logging.UserID(userID), logging.Err(err))
		}
	}
	return analysis
}

// lookup returns a copy of the cached analysis annotated with its age, or
// nil when absent, stale or unreadable.
func (e *engine) lookup(ctx context.Context, userID string) *CollectionAnalysis {
	entry, err := e.cache.Get(ctx, userID)
	if err != nil {
		e.base.logger.Warn("cache lookup failed", logging.UserID(userID), logging.Err(err))
		e.metrics.RecordCacheLookup(false)
		return nil
	}
	if entry == nil || entry.Analysis == nil {
		e.metrics.RecordCacheLookup(false)
		return nil
	}
	age := e.base.clock.Now().Sub(entry.CreatedAt)
	if age < 0 {
		age = 0
	}
	if age >= e.base.th().CacheTTL {
		e.metrics.RecordCacheLookup(false)
		return nil
	}
	e.metrics.RecordCacheLookup(true)
	out := e.copyOf(entry.Analysis)
	out.CacheUsed = true
	out.CacheAgeSeconds = age.Seconds()
	return out
}

// copyOf deep-copies an analysis so callers never share slices or maps with
// the cache or with each other.
func (e *engine) copyOf(a *CollectionAnalysis) *CollectionAnalysis {
	raw, err := json.Marshal(a)
	if err == nil {
		var out CollectionAnalysis
		if err = json.Unmarshal(raw, &out); err == nil {
			return &out
		}
	}
	e.base.logger.Warn("analysis copy failed, returning shallow copy", logging.UserID(a.UserID), logging.Err(err))
	out := *a
	return &out
}

// compute fetches the collection once and fans the analyzers out over it.
func (e *engine) compute(ctx context.Context, userID string, start time.Time) *CollectionAnalysis {
	result := emptyAnalysis(userID)
	items, outcome := e.base.load(ctx, opAnalyzeCollection, userID)
	result.Outcome = outcome
	if items == nil {
		result.PerformanceMetrics = e.performance(0, start)
		return result
	}

	var g errgroup.Group
	g.Go(safely(func() error {
		clusters, err := e.patterns.clusters(items)
		if err != nil {
			return err
		}
		result.Insights.Patterns = e.patterns.patterns(items)
		result.Insights.Brands = e.patterns.brands(items)
		result.Insights.Notes = e.patterns.notes(items)
		result.Insights.Clusters = clusters
		result.Insights.Usage = e.patterns.usage(items)
		return nil
	}))
	g.Go(safely(func() error {
		result.GapAnalysis = e.gaps.all(items)
		return nil
	}))
	g.Go(safely(func() error {
		result.PersonalityProfile = e.prof.profile(items)
		return nil
	}))
	g.Go(safely(func() error {
		result.OptimizationPlan = OptimizationPlan{
			Balance: e.opt.balance(items),
			Usage:   usageOptimization(items),
		}
		return nil
	}))
	g.Go(safely(func() error {
		result.Insights.Health = e.ins.health(items)
		result.Insights.Predictive = e.ins.predictive(items)
		result.Insights.Moods = moodMapping(items)
		return nil
	}))

	if err := g.Wait(); err != nil {
		e.base.logger.Warn("collection analysis failed", logging.UserID(userID), logging.Err(err))
		failed := emptyAnalysis(userID)
		failed.Outcome = failedWith(err)
		failed.PerformanceMetrics = e.performance(len(items), start)
		return failed
	}

	result.PerformanceMetrics = e.performance(len(items), start)
	e.base.logger.Info("collection analyzed",
		logging.UserID(userID),
		logging.Int("items", len(items)),
		logging.Duration("took", time.Since(start)))
	return result
}

func (e *engine) performance(size int, start time.Time) PerformanceMetrics {
	complexity := 0.5
	if size > e.base.th().LargeCollectionSize {
		complexity = 0.8
	}
	return PerformanceMetrics{
		DurationMillis:  float64(time.Since(start).Microseconds()) / 1000,
		CollectionSize:  size,
		ComplexityScore: complexity,
		GeneratedAt:     e.base.clock.Now().UTC(),
	}
}

// safely turns a panic inside an errgroup task into an error.
func safely(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.Internal(fmt.Sprintf("analysis panicked: %v", r))
			}
		}()
		return fn()
	}
}

// InvalidateCacheOnCollectionChange drops the user's entry unconditionally.
func (e *engine) InvalidateCacheOnCollectionChange(ctx context.Context, userID string, change *collection.ChangeEvent) error {
	if userID == "" {
		return errors.NewValidation("user id is required")
	}
	e.flight.Forget(userID)
	if err := e.cache.Invalidate(ctx, userID); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to invalidate analysis cache")
	}

	fields := []logging.Field{logging.UserID(userID)}
	if change != nil {
		fields = append(fields,
			logging.String("change_type", string(change.ChangeType)),
			logging.String("fragrance_id", change.FragranceID))
	}
	e.base.logger.Debug("analysis cache invalidated", fields...)
	return nil
}
