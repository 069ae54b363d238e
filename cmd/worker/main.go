// Command worker consumes collection change events, invalidates stale
// analyses and publishes change insights and notifications.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/ScentIQ-Intelligence/internal/application/changes"
	"github.com/turtacn/ScentIQ-Intelligence/internal/bootstrap"
	"github.com/turtacn/ScentIQ-Intelligence/internal/config"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/ScentIQ-Intelligence/internal/interfaces/http"
	"github.com/turtacn/ScentIQ-Intelligence/internal/interfaces/http/handlers"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

const (
	defaultHealthPort = 8081
	shutdownTimeout   = 30 * time.Second
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: environment only)")
	healthPort := flag.Int("health-port", defaultHealthPort, "port for /healthz, /readyz and /metrics")
	ensureTopics := flag.Bool("ensure-topics", false, "create the change, insight and dead-letter topics on start")
	flag.Parse()

	cfg, err := config.LoadOrEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger, err := bootstrap.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, *configPath, *healthPort, *ensureTopics, logger); err != nil {
		logger.Error("worker exited", logging.Err(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, configPath string, healthPort int, ensureTopics bool, logger logging.Logger) error {
	logger.Info("starting ScentIQ worker",
		logging.String("version", version),
		logging.String("commit", commit),
		logging.String("build_date", buildDate),
		logging.String("changes_topic", cfg.Kafka.ChangesTopic),
		logging.String("insights_topic", cfg.Kafka.InsightsTopic),
		logging.Bool("prewarm", cfg.Kafka.PrewarmAnalysis))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics, metricsHandler, err := bootstrap.NewMetrics(cfg.Metrics, logger)
	if err != nil {
		return err
	}
	infra, err := bootstrap.Connect(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer infra.Close()

	engine, err := infra.NewEngine()
	if err != nil {
		return err
	}
	if err := bootstrap.WatchConfig(configPath, engine, logger); err != nil {
		logger.Warn("configuration watch disabled", logging.Err(err))
	}

	if ensureTopics {
		if err := createTopics(ctx, cfg.Kafka, logger); err != nil {
			return err
		}
	}

	producerCfg := kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers, Acks: "all"}
	insights, err := kafka.NewProducer(producerCfg, logger)
	if err != nil {
		return err
	}
	defer insights.Close()

	procCfg := changes.Config{
		Engine:        engine,
		Publisher:     insights,
		InsightsTopic: cfg.Kafka.InsightsTopic,
		Prewarm:       cfg.Kafka.PrewarmAnalysis,
		Metrics:       metrics,
		Logger:        logger,
	}
	// Without Redis every replica prewarms the users it sees.
	if infra.Redis != nil {
		procCfg.Leases = func(name string) changes.Lease {
			return redis.NewMutex(infra.Redis, name, changes.PrewarmLeaseTTL)
		}
	}
	processor, err := changes.NewProcessor(procCfg)
	if err != nil {
		return err
	}

	opts := []kafka.ConsumerOption{kafka.WithObserver(metrics.ObserveEvent)}
	if cfg.Kafka.DLQTopic != "" {
		dlq, err := kafka.NewProducer(producerCfg, logger)
		if err != nil {
			return err
		}
		opts = append(opts, kafka.WithDeadLetter(dlq))
	}
	consumer, err := kafka.NewConsumer(kafka.ConsumerConfigFrom(cfg.Kafka), logger, opts...)
	if err != nil {
		return err
	}
	defer consumer.Close()
	consumer.Subscribe(cfg.Kafka.ChangesTopic, processor.Handle)

	healthCfg := cfg.Server
	healthCfg.Port = healthPort
	healthSrv := httpserver.NewServer(healthCfg, httpserver.NewRouter(httpserver.RouterConfig{
		HealthHandler:  handlers.NewHealthHandler(version, infra.HealthCheckers()...).WithRecorder(metrics),
		MetricsHandler: metricsHandler,
		Logger:         logger,
	}), logger)

	if err := consumer.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(healthSrv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down worker")
		if err := consumer.Close(); err != nil {
			logger.Warn("consumer close failed", logging.Err(err))
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return healthSrv.Stop(shutdownCtx)
	})

	err = g.Wait()
	m := consumer.Metrics()
	logger.Info("worker stopped",
		logging.Int64("consumed", m.MessagesConsumed.Load()),
		logging.Int64("processed", m.MessagesProcessed.Load()),
		logging.Int64("dead_lettered", m.MessagesDeadLettered.Load()))
	return err
}

func createTopics(ctx context.Context, cfg config.KafkaConfig, logger logging.Logger) error {
	if len(cfg.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required to create topics")
	}
	tm, err := kafka.NewTopicManager(cfg.Brokers, logger)
	if err != nil {
		return err
	}
	defer tm.Close()
	return tm.EnsureTopics(ctx, kafka.DefaultTopics(cfg))
}
