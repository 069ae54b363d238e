// Package bootstrap assembles the engine and the stores behind it from
// configuration. The binaries under cmd/ share it.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/turtacn/ScentIQ-Intelligence/internal/application/intelligence"
	"github.com/turtacn/ScentIQ-Intelligence/internal/config"
	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/collection"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/database/neo4j"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/resilience"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/search/milvus"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/search/opensearch"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/storage/minio"
	"github.com/turtacn/ScentIQ-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

// NewLogger builds the process logger from the log section and installs it
// as the package default.
func NewLogger(cfg config.LogConfig) (logging.Logger, error) {
	l, err := logging.NewLogger(logging.LogConfig{
		Level:       cfg.Level,
		Format:      cfg.Format,
		OutputPaths: cfg.OutputPaths,
	})
	if err != nil {
		return nil, err
	}
	logging.SetDefault(l)
	return l, nil
}

// NewMetrics registers the application metric families on a private
// registry and returns them with the registry's exposition handler.
func NewMetrics(cfg config.MetricsConfig, logger logging.Logger) (*prometheus.AppMetrics, http.Handler, error) {
	ns := cfg.Namespace
	if ns == "" {
		ns = config.DefaultMetricsNamespace
	}
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            ns,
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return prometheus.NewAppMetrics(collector), collector.Handler(), nil
}

// ThresholdsFrom overlays the analysis section on the reference thresholds.
func ThresholdsFrom(a config.AnalysisConfig) intelligence.Thresholds {
	t := intelligence.DefaultThresholds()
	if a.CacheTTL > 0 {
		t.CacheTTL = a.CacheTTL
	}
	setPositive(&t.ClusterSimilarity, a.ClusterSimilarity)
	setPositive(&t.GapDetectionThreshold, a.GapDetectionThreshold)
	setPositive(&t.OverrepresentedShare, a.OverrepresentedShare)
	setPositive(&t.BalanceTarget, a.BalanceTarget)
	setPositive(&t.PriceCap, a.PriceCap)
	setPositive(&t.PremiumBudget, a.PremiumBudget)
	setPositive(&t.ValueBudget, a.ValueBudget)
	setPositive(&t.LuxuryPrice, a.LuxuryPrice)
	setPositive(&t.QualityPrice, a.QualityPrice)
	if a.PredictiveWindow > 0 {
		t.PredictiveWindow = a.PredictiveWindow
	}
	if a.UnusedAfter > 0 {
		t.UnusedAfter = a.UnusedAfter
	}
	if len(a.LuxuryBrands) > 0 {
		t.LuxuryBrands = append([]string(nil), a.LuxuryBrands...)
	}
	if len(a.NicheBrands) > 0 {
		t.NicheBrands = append([]string(nil), a.NicheBrands...)
	}
	return t
}

func setPositive(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Infrastructure
// ─────────────────────────────────────────────────────────────────────────────

// Infrastructure holds the connected stores. PostgreSQL is mandatory; every
// other store is connected only when its section names an address.
type Infrastructure struct {
	Config  *config.Config
	Logger  logging.Logger
	Metrics *prometheus.AppMetrics

	Postgres   *postgres.Connection
	Redis      *redis.Client
	Neo4j      *neo4j.Driver
	OpenSearch *opensearch.Client
	Milvus     *milvus.Client
	MinIO      *minio.Client
}

// Connect opens every configured store. On failure the stores opened so far
// are closed again.
func Connect(ctx context.Context, cfg *config.Config, logger logging.Logger, metrics *prometheus.AppMetrics) (*Infrastructure, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	infra := &Infrastructure{Config: cfg, Logger: logger, Metrics: metrics}

	pg, err := postgres.NewConnection(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	infra.Postgres = pg

	if cfg.Redis.Addr != "" {
		if infra.Redis, err = redis.NewClient(cfg.Redis, logger); err != nil {
			infra.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
	}
	if cfg.Neo4j.URI != "" {
		if infra.Neo4j, err = neo4j.NewDriver(ctx, cfg.Neo4j, logger); err != nil {
			infra.Close()
			return nil, fmt.Errorf("neo4j: %w", err)
		}
	}
	if len(cfg.OpenSearch.Addresses) > 0 {
		if infra.OpenSearch, err = opensearch.NewClient(opensearch.ClientConfigFrom(cfg.OpenSearch), logger); err != nil {
			infra.Close()
			return nil, fmt.Errorf("opensearch: %w", err)
		}
	}
	if cfg.Milvus.Addr != "" {
		if infra.Milvus, err = milvus.NewClient(milvus.ClientConfigFrom(cfg.Milvus), logger); err != nil {
			infra.Close()
			return nil, fmt.Errorf("milvus: %w", err)
		}
	}
	if cfg.MinIO.Endpoint != "" {
		if infra.MinIO, err = minio.NewClient(ctx, cfg.MinIO, logger); err != nil {
			infra.Close()
			return nil, fmt.Errorf("minio: %w", err)
		}
	}

	logger.Info("infrastructure connected",
		logging.Bool("redis", infra.Redis != nil),
		logging.Bool("neo4j", infra.Neo4j != nil),
		logging.Bool("opensearch", infra.OpenSearch != nil),
		logging.Bool("milvus", infra.Milvus != nil),
		logging.Bool("minio", infra.MinIO != nil))
	return infra, nil
}

// Close releases every open store in reverse order of Connect.
func (i *Infrastructure) Close() {
	closeQuietly := func(name string, fn func() error) {
		if err := fn(); err != nil {
			i.Logger.Warn("close failed", logging.String("component", name), logging.Err(err))
		}
	}
	if i.MinIO != nil {
		closeQuietly("minio", i.MinIO.Close)
	}
	if i.Milvus != nil {
		closeQuietly("milvus", i.Milvus.Close)
	}
	if i.OpenSearch != nil {
		closeQuietly("opensearch", i.OpenSearch.Close)
	}
	if i.Neo4j != nil {
		closeQuietly("neo4j", i.Neo4j.Close)
	}
	if i.Redis != nil {
		closeQuietly("redis", i.Redis.Close)
	}
	if i.Postgres != nil {
		closeQuietly("postgres", i.Postgres.Close)
	}
}

// Repository returns the collection source the engine reads: the PostgreSQL
// repository behind a circuit breaker, with embeddings hydrated from Milvus
// when it is connected.
func (i *Infrastructure) Repository() collection.Repository {
	var repo collection.Repository = repositories.NewCollectionRepository(i.Postgres, i.Logger)
	if i.Config.Breaker.Enabled {
		var rec resilience.TransitionRecorder
		if i.Metrics != nil {
			rec = i.Metrics
		}
		repo = resilience.NewBreakingRepository("collection-repository", repo, i.Config.Breaker, rec, i.Logger)
	}
	if src := i.EmbeddingSource(); src != nil {
		repo = collection.NewEmbeddingHydrator(repo, src, collection.WithBestEffort(func(err error) {
			i.Logger.Warn("embedding hydration skipped", logging.Err(err))
			if i.Metrics != nil {
				i.Metrics.RecordError("embeddings", "hydrate")
			}
		}))
	}
	return repo
}

// EmbeddingSource is the Milvus store, nil when Milvus is not configured.
func (i *Infrastructure) EmbeddingSource() *milvus.EmbeddingStore {
	if i.Milvus == nil {
		return nil
	}
	return milvus.NewEmbeddingStore(i.Milvus, i.Config.Milvus, i.Logger)
}

// Catalog returns the recommendation candidate source named by
// catalog.backend, or nil for "none".
func (i *Infrastructure) Catalog() (intelligence.CatalogSearcher, error) {
	switch i.Config.Catalog.Backend {
	case "", "none":
		return nil, nil
	case "postgres":
		return repositories.NewFragranceCatalog(i.Postgres, i.Logger), nil
	case "opensearch":
		if i.OpenSearch == nil {
			return nil, errors.New(errors.ErrCodeCatalogUnavailable, "catalog backend opensearch is not connected")
		}
		return opensearch.NewCatalog(i.OpenSearch, i.Config.OpenSearch.Index, i.Logger), nil
	case "neo4j":
		if i.Neo4j == nil {
			return nil, errors.New(errors.ErrCodeCatalogUnavailable, "catalog backend neo4j is not connected")
		}
		return neo4j.NewScentGraph(i.Neo4j, i.Logger), nil
	default:
		return nil, errors.NewValidation("unknown catalog backend %q", i.Config.Catalog.Backend)
	}
}

// AnalysisCache shares analyses through Redis when connected; nil selects
// the engine's in-process cache.
func (i *Infrastructure) AnalysisCache() intelligence.AnalysisCache {
	if i.Redis == nil {
		return nil
	}
	ttl := i.Config.Analysis.CacheTTL
	kv := redis.NewCache(i.Redis, i.Logger, redis.WithDefaultTTL(ttl))
	return intelligence.NewDistributedCache(kv, ttl)
}

// NewEngine builds the engine over the connected stores.
func (i *Infrastructure) NewEngine() (intelligence.Engine, error) {
	catalog, err := i.Catalog()
	if err != nil {
		return nil, err
	}
	cfg := intelligence.EngineConfig{
		Repository: i.Repository(),
		Cache:      i.AnalysisCache(),
		Logger:     i.Logger,
		Thresholds: ThresholdsFrom(i.Config.Analysis),
		Catalog:    catalog,
	}
	if src := i.EmbeddingSource(); src != nil {
		cfg.Embeddings = src
	}
	if i.Metrics != nil {
		cfg.Metrics = i.Metrics
	}
	return intelligence.NewEngine(cfg)
}

// SnapshotArchive provisions the bucket and returns the archive, nil when
// MinIO is not configured.
func (i *Infrastructure) SnapshotArchive(ctx context.Context) (*minio.SnapshotArchive, error) {
	if i.MinIO == nil {
		return nil, nil
	}
	if err := i.MinIO.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	if err := i.MinIO.SetupLifecycle(ctx); err != nil {
		i.Logger.Warn("snapshot retention rule not applied", logging.Err(err))
	}
	var rec minio.SnapshotRecorder
	if i.Metrics != nil {
		rec = i.Metrics
	}
	return minio.NewSnapshotArchive(i.MinIO, rec, i.Logger), nil
}

// HealthCheckers probes every connected store.
func (i *Infrastructure) HealthCheckers() []handlers.HealthChecker {
	checkers := []handlers.HealthChecker{handlers.CheckerFunc("postgres", i.Postgres.HealthCheck)}
	if i.Redis != nil {
		checkers = append(checkers, handlers.CheckerFunc("redis", i.Redis.Ping))
	}
	if i.Neo4j != nil {
		checkers = append(checkers, handlers.CheckerFunc("neo4j", i.Neo4j.HealthCheck))
	}
	if i.OpenSearch != nil {
		checkers = append(checkers, handlers.CheckerFunc("opensearch", i.OpenSearch.Ping))
	}
	if i.Milvus != nil {
		checkers = append(checkers, handlers.CheckerFunc("milvus", i.Milvus.CheckHealth))
	}
	if i.MinIO != nil {
		checkers = append(checkers, handlers.CheckerFunc("minio", i.MinIO.Ping))
	}
	return checkers
}

// WatchConfig applies log level and threshold edits of configPath to the
// running process.
func WatchConfig(configPath string, engine intelligence.Engine, logger logging.Logger) error {
	if configPath == "" {
		return nil
	}
	return config.Watch(configPath, func(cfg *config.Config) {
		logging.SetLevel(cfg.Log.Level)
		engine.SetThresholds(ThresholdsFrom(cfg.Analysis))
		logger.Info("configuration reloaded",
			logging.String("log_level", cfg.Log.Level),
			logging.Duration("cache_ttl", cfg.Analysis.CacheTTL))
	}, func(err error) {
		logger.Warn("configuration reload rejected", logging.Err(err))
	})
}
