// Command apiserver serves the collection intelligence engine over HTTP and
// gRPC.
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

	"github.com/turtacn/ScentIQ-Intelligence/internal/bootstrap"
	"github.com/turtacn/ScentIQ-Intelligence/internal/config"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/monitoring/logging"
	grpcserver "github.com/turtacn/ScentIQ-Intelligence/internal/interfaces/grpc"
	"github.com/turtacn/ScentIQ-Intelligence/internal/interfaces/grpc/services"
	httpserver "github.com/turtacn/ScentIQ-Intelligence/internal/interfaces/http"
	"github.com/turtacn/ScentIQ-Intelligence/internal/interfaces/http/handlers"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: environment only)")
	httpPort := flag.Int("http-port", 0, "HTTP server port (overrides config)")
	grpcPort := flag.Int("grpc-port", 0, "gRPC server port (overrides config)")
	flag.Parse()

	cfg, err := config.LoadOrEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *httpPort > 0 {
		cfg.Server.Port = *httpPort
	}
	if *grpcPort > 0 {
		cfg.GRPC.Port = *grpcPort
	}

	logger, err := bootstrap.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, *configPath, logger); err != nil {
		logger.Error("apiserver exited", logging.Err(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, configPath string, logger logging.Logger) error {
	logger.Info("starting ScentIQ API server",
		logging.String("version", version),
		logging.String("commit", commit),
		logging.String("build_date", buildDate),
		logging.Int("http_port", cfg.Server.Port),
		logging.Bool("grpc", cfg.GRPC.Enabled))

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

	routes := httpserver.RouterConfig{
		IntelligenceHandler: handlers.NewIntelligenceHandler(engine, logger),
		HealthHandler:       handlers.NewHealthHandler(version, infra.HealthCheckers()...).WithRecorder(metrics),
		MetricsHandler:      metricsHandler,
		RequestRecorder:     metrics,
		RateLimit:           cfg.RateLimit,
		MaxBodySize:         cfg.Server.MaxBodySize,
		SlowThreshold:       cfg.Server.SlowThreshold,
		Logger:              logger,
	}
	archive, err := infra.SnapshotArchive(ctx)
	if err != nil {
		return err
	}
	if archive != nil {
		routes.SnapshotHandler = handlers.NewSnapshotHandler(engine, archive, logger)
	}
	httpSrv := httpserver.NewServer(cfg.Server, httpserver.NewRouter(routes), logger)

	var grpcSrv *grpcserver.Server
	if cfg.GRPC.Enabled {
		grpcSrv, err = grpcserver.NewServer(cfg.GRPC,
			grpcserver.WithLogger(logger),
			grpcserver.WithRecorder(metrics))
		if err != nil {
			return err
		}
		grpcSrv.RegisterService(&services.ServiceDesc, services.NewIntelligenceService(engine, logger))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(httpSrv.Start)
	if grpcSrv != nil {
		g.Go(grpcSrv.Start)
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down servers")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if grpcSrv != nil {
			if err := grpcSrv.Stop(shutdownCtx); err != nil {
				logger.Error("gRPC server shutdown error", logging.Err(err))
			}
		}
		return httpSrv.Stop(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("servers stopped")
	return err
}
