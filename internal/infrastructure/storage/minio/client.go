package minio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"

	"github.com/turtacn/ScentIQ-Intelligence/internal/config"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

// MinIOAPI is the subset of *minio.Client the archive uses.
type MinIOAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	SetBucketLifecycle(ctx context.Context, bucketName string, config *lifecycle.Configuration) error
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

var (
	ErrMinIOClientClosed = errors.New(errors.ErrCodeServiceUnavailable, "minio client is closed")
	ErrBucketNotFound    = errors.New(errors.ErrCodeNotFound, "bucket not found")
)

// newMinIO is a variable to allow mocking in tests.
var newMinIO = func(cfg config.MinIOConfig) (MinIOAPI, error) {
	return minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
}

// Client owns the connection to the snapshot bucket.
type Client struct {
	api    MinIOAPI
	config config.MinIOConfig
	logger logging.Logger

	// getObject opens an object for reading. Tests replace it.
	getObject func(ctx context.Context, bucket, key string) (io.ReadCloser, error)

	mu     sync.RWMutex
	closed bool
}

// NewClient connects to MinIO, creates the bucket when missing and applies
// the retention rule.
func NewClient(ctx context.Context, cfg config.MinIOConfig, log logging.Logger) (*Client, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	api, err := newMinIO(cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create minio client")
	}
	c := newClient(api, cfg, log)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := c.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	if err := c.SetupLifecycle(ctx); err != nil {
		c.logger.Warn("Failed to set snapshot lifecycle", logging.Err(err))
	}

	c.logger.Info("MinIO client connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket),
		logging.Bool("ssl", cfg.UseSSL))
	return c, nil
}

func newClient(api MinIOAPI, cfg config.MinIOConfig, log logging.Logger) *Client {
	if log == nil {
		log = logging.NewNopLogger()
	}
	c := &Client{api: api, config: cfg, logger: log}
	c.getObject = func(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
		return c.api.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	}
	return c
}

func ValidateConfig(cfg config.MinIOConfig) error {
	if cfg.Endpoint == "" {
		return errors.NewValidation("minio endpoint is required")
	}
	if cfg.Bucket == "" {
		return errors.NewValidation("minio bucket is required")
	}
	return nil
}

func (c *Client) Bucket() string { return c.config.Bucket }

func (c *Client) handle() (MinIOAPI, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrMinIOClientClosed
	}
	return c.api, nil
}

// EnsureBucket creates the configured bucket when it does not exist.
func (c *Client) EnsureBucket(ctx context.Context) error {
	api, err := c.handle()
	if err != nil {
		return err
	}
	exists, err := api.BucketExists(ctx, c.config.Bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to check bucket existence")
	}
	if exists {
		return nil
	}
	if err := api.MakeBucket(ctx, c.config.Bucket, minio.MakeBucketOptions{}); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, fmt.Sprintf("failed to create bucket %s", c.config.Bucket))
	}
	c.logger.Info("Created bucket", logging.String("bucket", c.config.Bucket))
	return nil
}

// SetupLifecycle expires snapshots after RetentionDays. Zero disables it.
func (c *Client) SetupLifecycle(ctx context.Context) error {
	if c.config.RetentionDays <= 0 {
		return nil
	}
	api, err := c.handle()
	if err != nil {
		return err
	}
	cfg := lifecycle.NewConfiguration()
	cfg.Rules = []lifecycle.Rule{
		{
			ID:     "snapshot-retention",
			Status: "Enabled",
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(c.config.RetentionDays),
			},
			Prefix: snapshotPrefix,
		},
	}
	if err := api.SetBucketLifecycle(ctx, c.config.Bucket, cfg); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to set bucket lifecycle")
	}
	return nil
}

// Ping reports whether the bucket is reachable.
func (c *Client) Ping(ctx context.Context) error {
	api, err := c.handle()
	if err != nil {
		return err
	}
	exists, err := api.BucketExists(ctx, c.config.Bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "minio ping failed")
	}
	if !exists {
		return ErrBucketNotFound
	}
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
