package config

import "time"

const (
	DefaultServerHost      = "0.0.0.0"
	DefaultServerPort      = 8080
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 20 * time.Second
	DefaultMaxBodySize     = 1 << 20
	DefaultSlowThreshold   = 500 * time.Millisecond

	DefaultGRPCPort = 9090

	DefaultDBDriver      = "postgres"
	DefaultDBHost        = "localhost"
	DefaultDBPort        = 5432
	DefaultDBUser        = "scentiq"
	DefaultDBName        = "scentiq"
	DefaultDBSSLMode     = "disable"
	DefaultDBMaxOpen     = 25
	DefaultDBMaxIdle     = 5
	DefaultDBMaxLifetime = 30 * time.Minute
	DefaultMigrationPath = "migrations"

	DefaultRedisPoolSize  = 20
	DefaultRedisKeyPrefix = "scentiq"

	DefaultKafkaBroker        = "localhost:9092"
	DefaultKafkaGroupID       = "scentiq-insights"
	DefaultKafkaChangesTopic  = "collection.changes"
	DefaultKafkaInsightsTopic = "collection.insights"
	DefaultKafkaDLQTopic      = "collection.changes.dlq"
	DefaultKafkaMaxRetries    = 3
	DefaultKafkaRetryBackoff  = 500 * time.Millisecond

	DefaultMilvusCollection  = "fragrance_embeddings"
	DefaultMilvusIDField     = "fragrance_id"
	DefaultMilvusVectorField = "embedding"
	DefaultMilvusTimeout     = 5 * time.Second

	DefaultOpenSearchIndex = "fragrances"
	DefaultNeo4jDatabase   = "neo4j"
	DefaultCatalogBackend  = "none"
	DefaultMinIOBucket     = "scentiq-snapshots"
	DefaultMinIORetention  = 90

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultCacheTTL              = 300 * time.Second
	DefaultClusterSimilarity     = 0.8
	DefaultGapDetectionThreshold = 0.3
	DefaultOverrepresentedShare  = 0.4
	DefaultBalanceTarget         = 0.8
	DefaultPriceCap              = 300.0
	DefaultPremiumBudget         = 1000.0
	DefaultValueBudget           = 500.0
	DefaultLuxuryPrice           = 200.0
	DefaultQualityPrice          = 150.0
	DefaultPredictiveWindow      = 90 * 24 * time.Hour
	DefaultUnusedAfter           = 180 * 24 * time.Hour

	DefaultBreakerMaxRequests      = 3
	DefaultBreakerInterval         = 60 * time.Second
	DefaultBreakerTimeout          = 30 * time.Second
	DefaultBreakerFailureThreshold = 5

	DefaultRateLimitRequests = 120
	DefaultRateLimitWindow   = time.Minute

	DefaultMetricsNamespace = "scentiq"
)

// DefaultLuxuryBrands and DefaultNicheBrands seed brand-tier inference when
// the catalog row carries no explicit tier.
var (
	DefaultLuxuryBrands = []string{"Tom Ford", "Creed", "Chanel", "Dior", "Guerlain", "Hermes", "Maison Francis Kurkdjian", "Amouage"}
	DefaultNicheBrands  = []string{"Le Labo", "Byredo", "Diptyque", "Serge Lutens", "Frederic Malle", "Nishane", "Xerjoff", "Memo Paris"}
)

// Defaults returns a Config holding every default, including the boolean
// switches that ApplyDefaults cannot infer from zero values.
func Defaults() *Config {
	cfg := &Config{}
	cfg.GRPC.Enabled = true
	cfg.GRPC.EnableReflection = true
	cfg.Breaker.Enabled = true
	cfg.RateLimit.Enabled = true
	cfg.Metrics.Enabled = true
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-value fields of cfg. Explicit values always win.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	setString(&cfg.Server.Host, DefaultServerHost)
	setInt(&cfg.Server.Port, DefaultServerPort)
	setDuration(&cfg.Server.ReadTimeout, DefaultReadTimeout)
	setDuration(&cfg.Server.WriteTimeout, DefaultWriteTimeout)
	setDuration(&cfg.Server.ShutdownTimeout, DefaultShutdownTimeout)
	setDuration(&cfg.Server.SlowThreshold, DefaultSlowThreshold)
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = DefaultMaxBodySize
	}

	// ── gRPC ──────────────────────────────────────────────────────────────────
	setInt(&cfg.GRPC.Port, DefaultGRPCPort)
	setInt(&cfg.GRPC.MaxRecvMsgSize, 4<<20)
	setDuration(&cfg.GRPC.KeepaliveTime, 2*time.Minute)
	setDuration(&cfg.GRPC.KeepaliveTimeout, 20*time.Second)

	// ── Database ──────────────────────────────────────────────────────────────
	setString(&cfg.Database.Driver, DefaultDBDriver)
	setString(&cfg.Database.Host, DefaultDBHost)
	setInt(&cfg.Database.Port, DefaultDBPort)
	setString(&cfg.Database.User, DefaultDBUser)
	setString(&cfg.Database.DBName, DefaultDBName)
	setString(&cfg.Database.SSLMode, DefaultDBSSLMode)
	setInt(&cfg.Database.MaxOpenConns, DefaultDBMaxOpen)
	setInt(&cfg.Database.MaxIdleConns, DefaultDBMaxIdle)
	setDuration(&cfg.Database.ConnMaxLifetime, DefaultDBMaxLifetime)
	setString(&cfg.Database.MigrationPath, DefaultMigrationPath)

	// ── Redis ─────────────────────────────────────────────────────────────────
	setInt(&cfg.Redis.PoolSize, DefaultRedisPoolSize)
	setString(&cfg.Redis.KeyPrefix, DefaultRedisKeyPrefix)
	setDuration(&cfg.Redis.DialTimeout, 5*time.Second)
	setDuration(&cfg.Redis.ReadTimeout, 3*time.Second)
	setDuration(&cfg.Redis.WriteTimeout, 3*time.Second)

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	setString(&cfg.Kafka.GroupID, DefaultKafkaGroupID)
	setString(&cfg.Kafka.ChangesTopic, DefaultKafkaChangesTopic)
	setString(&cfg.Kafka.InsightsTopic, DefaultKafkaInsightsTopic)
	setString(&cfg.Kafka.DLQTopic, DefaultKafkaDLQTopic)
	setInt(&cfg.Kafka.MaxRetries, DefaultKafkaMaxRetries)
	setDuration(&cfg.Kafka.RetryBackoff, DefaultKafkaRetryBackoff)

	// ── Search and storage ────────────────────────────────────────────────────
	setString(&cfg.Milvus.Collection, DefaultMilvusCollection)
	setString(&cfg.Milvus.IDField, DefaultMilvusIDField)
	setString(&cfg.Milvus.VectorField, DefaultMilvusVectorField)
	setDuration(&cfg.Milvus.Timeout, DefaultMilvusTimeout)
	setString(&cfg.OpenSearch.Index, DefaultOpenSearchIndex)
	setString(&cfg.Neo4j.Database, DefaultNeo4jDatabase)
	setInt(&cfg.Neo4j.MaxConnectionPoolSize, 50)
	setDuration(&cfg.Neo4j.ConnectionTimeout, 10*time.Second)
	setString(&cfg.Catalog.Backend, DefaultCatalogBackend)
	setString(&cfg.MinIO.Bucket, DefaultMinIOBucket)
	setInt(&cfg.MinIO.RetentionDays, DefaultMinIORetention)

	// ── Log ───────────────────────────────────────────────────────────────────
	setString(&cfg.Log.Level, DefaultLogLevel)
	setString(&cfg.Log.Format, DefaultLogFormat)

	// ── Analysis ──────────────────────────────────────────────────────────────
	a := &cfg.Analysis
	setDuration(&a.CacheTTL, DefaultCacheTTL)
	setFloat(&a.ClusterSimilarity, DefaultClusterSimilarity)
	setFloat(&a.GapDetectionThreshold, DefaultGapDetectionThreshold)
	setFloat(&a.OverrepresentedShare, DefaultOverrepresentedShare)
	setFloat(&a.BalanceTarget, DefaultBalanceTarget)
	setFloat(&a.PriceCap, DefaultPriceCap)
	setFloat(&a.PremiumBudget, DefaultPremiumBudget)
	setFloat(&a.ValueBudget, DefaultValueBudget)
	setFloat(&a.LuxuryPrice, DefaultLuxuryPrice)
	setFloat(&a.QualityPrice, DefaultQualityPrice)
	setDuration(&a.PredictiveWindow, DefaultPredictiveWindow)
	setDuration(&a.UnusedAfter, DefaultUnusedAfter)
	if len(a.LuxuryBrands) == 0 {
		a.LuxuryBrands = append([]string(nil), DefaultLuxuryBrands...)
	}
	if len(a.NicheBrands) == 0 {
		a.NicheBrands = append([]string(nil), DefaultNicheBrands...)
	}

	// ── Resilience ────────────────────────────────────────────────────────────
	if cfg.Breaker.MaxRequests == 0 {
		cfg.Breaker.MaxRequests = DefaultBreakerMaxRequests
	}
	if cfg.Breaker.FailureThreshold == 0 {
		cfg.Breaker.FailureThreshold = DefaultBreakerFailureThreshold
	}
	setDuration(&cfg.Breaker.Interval, DefaultBreakerInterval)
	setDuration(&cfg.Breaker.Timeout, DefaultBreakerTimeout)
	setInt(&cfg.RateLimit.RequestsPerWindow, DefaultRateLimitRequests)
	setDuration(&cfg.RateLimit.Window, DefaultRateLimitWindow)
	setString(&cfg.Metrics.Namespace, DefaultMetricsNamespace)
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func setInt(dst *int, def int) {
	if *dst == 0 {
		*dst = def
	}
}

func setFloat(dst *float64, def float64) {
	if *dst == 0 {
		*dst = def
	}
}

func setDuration(dst *time.Duration, def time.Duration) {
	if *dst == 0 {
		*dst = def
	}
}
