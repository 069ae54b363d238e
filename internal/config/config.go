// Package config defines the configuration structures for ScentIQ. Loading
// lives in loader.go, defaults in defaults.go.
package config

import (
	"fmt"
	"time"
)

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	SlowThreshold   time.Duration `mapstructure:"slow_threshold"`
}

// GRPCConfig holds gRPC server tunables.
type GRPCConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Port             int           `mapstructure:"port"`
	MaxRecvMsgSize   int           `mapstructure:"max_recv_msg_size"`
	KeepaliveTime    time.Duration `mapstructure:"keepalive_time"`
	KeepaliveTimeout time.Duration `mapstructure:"keepalive_timeout"`
	EnableReflection bool          `mapstructure:"enable_reflection"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	// Driver selects the database/sql driver: "postgres" (lib/pq) or "pgx".
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationPath   string        `mapstructure:"migration_path"`
}

// RedisConfig holds Redis parameters. An empty Addr selects the in-process cache.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds the change-event consumer and insight producer parameters.
type KafkaConfig struct {
	Brokers         []string      `mapstructure:"brokers"`
	GroupID         string        `mapstructure:"group_id"`
	ChangesTopic    string        `mapstructure:"changes_topic"`
	InsightsTopic   string        `mapstructure:"insights_topic"`
	DLQTopic        string        `mapstructure:"dlq_topic"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
	PrewarmAnalysis bool          `mapstructure:"prewarm_analysis"`
}

// MilvusConfig holds the embedding store parameters. An empty Addr disables hydration.
type MilvusConfig struct {
	Addr        string        `mapstructure:"addr"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	DBName      string        `mapstructure:"db_name"`
	Collection  string        `mapstructure:"collection"`
	IDField     string        `mapstructure:"id_field"`
	VectorField string        `mapstructure:"vector_field"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// OpenSearchConfig holds catalog search parameters.
type OpenSearchConfig struct {
	Addresses          []string `mapstructure:"addresses"`
	Username           string   `mapstructure:"username"`
	Password           string   `mapstructure:"password"`
	Index              string   `mapstructure:"index"`
	InsecureSkipVerify bool     `mapstructure:"insecure_skip_verify"`
}

// Neo4jConfig holds scent-graph parameters.
type Neo4jConfig struct {
	URI                   string        `mapstructure:"uri"`
	Username              string        `mapstructure:"username"`
	Password              string        `mapstructure:"password"`
	Database              string        `mapstructure:"database"`
	MaxConnectionPoolSize int           `mapstructure:"max_connection_pool_size"`
	ConnectionTimeout     time.Duration `mapstructure:"connection_timeout"`
}

// CatalogConfig selects the candidate source for recommendations.
type CatalogConfig struct {
	// Backend is "opensearch", "neo4j", "postgres" or "none".
	Backend string `mapstructure:"backend"`
}

// MinIOConfig holds snapshot archive parameters. An empty Endpoint disables snapshots.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`

	// RetentionDays is the lifecycle expiry applied to the snapshot bucket.
	RetentionDays int `mapstructure:"retention_days"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Format      string   `mapstructure:"format"`
	OutputPaths []string `mapstructure:"output_paths"`
}

// AnalysisConfig exposes the scoring thresholds of the intelligence engine.
type AnalysisConfig struct {
	CacheTTL              time.Duration `mapstructure:"cache_ttl"`
	ClusterSimilarity     float64       `mapstructure:"cluster_similarity"`
	GapDetectionThreshold float64       `mapstructure:"gap_detection_threshold"`
	OverrepresentedShare  float64       `mapstructure:"overrepresented_share"`
	BalanceTarget         float64       `mapstructure:"balance_target"`
	PriceCap              float64       `mapstructure:"price_cap"`
	PremiumBudget         float64       `mapstructure:"premium_budget"`
	ValueBudget           float64       `mapstructure:"value_budget"`
	LuxuryPrice           float64       `mapstructure:"luxury_price"`
	QualityPrice          float64       `mapstructure:"quality_price"`
	PredictiveWindow      time.Duration `mapstructure:"predictive_window"`
	UnusedAfter           time.Duration `mapstructure:"unused_after"`
	LuxuryBrands          []string      `mapstructure:"luxury_brands"`
	NicheBrands           []string      `mapstructure:"niche_brands"`
}

// BreakerConfig configures the circuit breaker around collection reads.
type BreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
}

// RateLimitConfig configures per-IP HTTP rate limiting.
type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	RequestsPerWindow int           `mapstructure:"requests_per_window"`
	Window            time.Duration `mapstructure:"window"`
}

// MetricsConfig configures Prometheus exposition.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// Config is the root configuration structure.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	GRPC       GRPCConfig       `mapstructure:"grpc"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Milvus     MilvusConfig     `mapstructure:"milvus"`
	OpenSearch OpenSearchConfig `mapstructure:"opensearch"`
	Neo4j      Neo4jConfig      `mapstructure:"neo4j"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	MinIO      MinIOConfig      `mapstructure:"minio"`
	Log        LogConfig        `mapstructure:"log"`
	Analysis   AnalysisConfig   `mapstructure:"analysis"`
	Breaker    BreakerConfig    `mapstructure:"breaker"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// DSN renders the database connection string for the configured driver.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// Validate performs semantic validation of a defaulted Config and returns the
// first problem found.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	if c.GRPC.Enabled && (c.GRPC.Port < 1 || c.GRPC.Port > 65535) {
		return fmt.Errorf("config: grpc.port %d is out of range [1, 65535]", c.GRPC.Port)
	}
	if c.GRPC.Enabled && c.GRPC.Port == c.Server.Port {
		return fmt.Errorf("config: grpc.port must differ from server.port")
	}

	switch c.Database.Driver {
	case "postgres", "pgx":
	default:
		return fmt.Errorf("config: database.driver %q is invalid; expected postgres|pgx", c.Database.Driver)
	}
	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("config: database.max_open_conns must be >= 1, got %d", c.Database.MaxOpenConns)
	}

	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
	}

	if c.Kafka.MaxRetries < 0 {
		return fmt.Errorf("config: kafka.max_retries must be >= 0, got %d", c.Kafka.MaxRetries)
	}

	switch c.Catalog.Backend {
	case "none", "postgres":
	case "opensearch":
		if len(c.OpenSearch.Addresses) == 0 {
			return fmt.Errorf("config: opensearch.addresses is required when catalog.backend is opensearch")
		}
	case "neo4j":
		if c.Neo4j.URI == "" {
			return fmt.Errorf("config: neo4j.uri is required when catalog.backend is neo4j")
		}
	default:
		return fmt.Errorf("config: catalog.backend %q is invalid; expected opensearch|neo4j|postgres|none", c.Catalog.Backend)
	}

	if c.MinIO.Endpoint != "" && c.MinIO.Bucket == "" {
		return fmt.Errorf("config: minio.bucket is required when minio.endpoint is set")
	}

	if err := c.Analysis.validate(); err != nil {
		return err
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerWindow < 1 {
		return fmt.Errorf("config: ratelimit.requests_per_window must be >= 1")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}
	return nil
}

func (a AnalysisConfig) validate() error {
	if a.CacheTTL <= 0 {
		return fmt.Errorf("config: analysis.cache_ttl must be positive")
	}
	unit := map[string]float64{
		"analysis.cluster_similarity":      a.ClusterSimilarity,
		"analysis.gap_detection_threshold": a.GapDetectionThreshold,
		"analysis.overrepresented_share":   a.OverrepresentedShare,
		"analysis.balance_target":          a.BalanceTarget,
	}
	for key, v := range unit {
		if v <= 0 || v > 1 {
			return fmt.Errorf("config: %s must be in (0, 1], got %g", key, v)
		}
	}
	if a.PriceCap <= 0 {
		return fmt.Errorf("config: analysis.price_cap must be positive")
	}
	if a.ValueBudget >= a.PremiumBudget {
		return fmt.Errorf("config: analysis.value_budget must be below analysis.premium_budget")
	}
	return nil
}
