package milvus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"github.com/turtacn/ScentIQ-Intelligence/internal/config"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

// MilvusClientFactory defines the signature for creating a Milvus client
type MilvusClientFactory func(ctx context.Context, conf client.Config) (client.Client, error)

// milvusNewClient is a variable to allow mocking in tests
var milvusNewClient MilvusClientFactory = client.NewClient

var (
	ErrConnectionFailed = errors.New(errors.ErrCodeServiceUnavailable, "milvus connection failed")
	ErrUnhealthy        = errors.New(errors.ErrCodeServiceUnavailable, "milvus unhealthy")
)

// ClientConfig holds the configuration for the Milvus client.
type ClientConfig struct {
	Address             string
	Username            string
	Password            string
	DBName              string
	ConnectTimeout      time.Duration
	RequestTimeout      time.Duration
	HealthCheckInterval time.Duration
	KeepAliveTime       time.Duration
	KeepAliveTimeout    time.Duration
}

// ClientConfigFrom maps the application configuration.
func ClientConfigFrom(cfg config.MilvusConfig) ClientConfig {
	return ClientConfig{
		Address:        cfg.Addr,
		Username:       cfg.Username,
		Password:       cfg.Password,
		DBName:         cfg.DBName,
		RequestTimeout: cfg.Timeout,
	}
}

// Client manages the Milvus connection and tracks its health.
type Client struct {
	milvusClient client.Client
	config       ClientConfig
	logger       logging.Logger
	healthy      atomic.Bool
	cancel       context.CancelFunc
	mu           sync.RWMutex
}

// NewClient connects, verifies health and starts a background health probe.
func NewClient(cfg ClientConfig, logger logging.Logger) (*Client, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.DBName == "" {
		cfg.DBName = "default"
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	if cfg.HealthCheckInterval == 0 {
		cfg.HealthCheckInterval = 30 * time.Second
	}
	if cfg.KeepAliveTime == 0 {
		cfg.KeepAliveTime = 60 * time.Second
	}
	if cfg.KeepAliveTimeout == 0 {
		cfg.KeepAliveTimeout = 20 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	mc, err := connect(ctx, cfg)
	if err != nil {
		cancel()
		return nil, ErrConnectionFailed.WithCause(err)
	}

	c := &Client{milvusClient: mc, config: cfg, logger: logger, cancel: cancel}
	if err := c.CheckHealth(ctx); err != nil {
		_ = c.Close()
		return nil, ErrConnectionFailed.WithCause(err)
	}

	go c.startHealthCheck(ctx)

	logger.Info("Milvus client connected", logging.String("address", cfg.Address))
	return c, nil
}

func connect(ctx context.Context, cfg ClientConfig) (client.Client, error) {
	milvusCfg := client.Config{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DBName:   cfg.DBName,
		DialOptions: []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithKeepaliveParams(keepalive.ClientParameters{
				Time:                cfg.KeepAliveTime,
				Timeout:             cfg.KeepAliveTimeout,
				PermitWithoutStream: true,
			}),
		},
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	return milvusNewClient(connectCtx, milvusCfg)
}

// CheckHealth probes the server and records the result.
func (c *Client) CheckHealth(ctx context.Context) error {
	mc := c.milvus()
	if mc == nil {
		return ErrConnectionFailed
	}

	if _, err := mc.CheckHealth(ctx); err != nil {
		c.healthy.Store(false)
		c.logger.Warn("Milvus health check failed", logging.Err(err))
		return ErrUnhealthy.WithCause(err)
	}
	c.healthy.Store(true)
	return nil
}

func (c *Client) IsHealthy() bool {
	return c.healthy.Load()
}

func (c *Client) milvus() client.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.milvusClient
}

// requestContext bounds one SDK call by RequestTimeout.
func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.config.RequestTimeout)
}

func (c *Client) Close() error {
	c.cancel()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.milvusClient != nil {
		_ = c.milvusClient.Close()
		c.milvusClient = nil
	}
	c.logger.Info("Milvus client closed")
	return nil
}

func (c *Client) startHealthCheck(ctx context.Context) {
	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prev := c.healthy.Load()
			err := c.CheckHealth(ctx)
			curr := c.healthy.Load()

			switch {
			case prev && !curr:
				failures++
				c.logger.Error("Milvus became unhealthy", logging.Err(err))
			case !prev && curr:
				failures = 0
				c.logger.Info("Milvus recovered")
			case !curr:
				failures++
			default:
				failures = 0
			}

			if failures >= 3 {
				c.logger.Warn("Milvus consecutive failures, attempting reconnect")
				if err := c.reconnect(ctx); err != nil {
					c.logger.Error("Milvus reconnect failed", logging.Err(err))
				} else {
					failures = 0
				}
			}
		}
	}
}

func (c *Client) reconnect(ctx context.Context) error {
	mc, err := connect(ctx, c.config)
	if err != nil {
		return err
	}

	c.mu.Lock()
	old := c.milvusClient
	c.milvusClient = mc
	c.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	c.logger.Warn("Milvus client reconnected")
	return nil
}

// ValidateConfig validates the client configuration.
func ValidateConfig(cfg ClientConfig) error {
	if cfg.Address == "" {
		return errors.NewValidation("milvus address is required")
	}
	if cfg.ConnectTimeout < 0 || cfg.RequestTimeout < 0 {
		return errors.NewValidation("milvus timeouts must be >= 0")
	}
	return nil
}
