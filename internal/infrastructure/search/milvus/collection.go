package milvus

import (
	"context"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

// CollectionConfig holds index parameters for the embedding collection.
type CollectionConfig struct {
	ShardsNum      int32
	MetricType     entity.MetricType
	M              int
	EfConstruction int
}

// EmbeddingSchema names the collection and its two fields.
type EmbeddingSchema struct {
	Name        string
	IDField     string
	VectorField string
	Dim         int
}

// CollectionManager provisions the fragrance embedding collection.
type CollectionManager struct {
	client *Client
	config CollectionConfig
	logger logging.Logger
}

func NewCollectionManager(client *Client, cfg CollectionConfig, logger logging.Logger) *CollectionManager {
	if cfg.ShardsNum == 0 {
		cfg.ShardsNum = 2
	}
	if cfg.MetricType == "" {
		cfg.MetricType = entity.COSINE
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfConstruction == 0 {
		cfg.EfConstruction = 200
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CollectionManager{client: client, config: cfg, logger: logger}
}

// EnsureCollection creates the collection with an HNSW index when absent and
// loads it for querying. It is safe to call on every start.
func (m *CollectionManager) EnsureCollection(ctx context.Context, s EmbeddingSchema) error {
	if s.Name == "" || s.IDField == "" || s.VectorField == "" {
		return errors.NewValidation("embedding collection requires name, id field and vector field")
	}
	if s.Dim <= 0 {
		return errors.NewValidation("embedding dimension must be > 0, got %d", s.Dim)
	}
	mc := m.client.milvus()
	if mc == nil {
		return ErrConnectionFailed
	}

	has, err := mc.HasCollection(ctx, s.Name)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to check collection existence")
	}
	if !has {
		schema := entity.NewSchema().
			WithName(s.Name).
			WithDescription("fragrance embeddings").
			WithField(entity.NewField().WithName(s.IDField).WithDataType(entity.FieldTypeVarChar).
				WithIsPrimaryKey(true).WithMaxLength(128)).
			WithField(entity.NewField().WithName(s.VectorField).WithDataType(entity.FieldTypeFloatVector).
				WithDim(int64(s.Dim)))
		if err := mc.CreateCollection(ctx, schema, m.config.ShardsNum); err != nil {
			return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to create collection")
		}

		idx, err := entity.NewIndexHNSW(m.config.MetricType, m.config.M, m.config.EfConstruction)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeValidation, "invalid index parameters")
		}
		if err := mc.CreateIndex(ctx, s.Name, s.VectorField, idx, false); err != nil {
			return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to create index")
		}
		m.logger.Info("Collection created", logging.String("name", s.Name), logging.Int("dim", s.Dim))
	}

	if err := mc.LoadCollection(ctx, s.Name, false); err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to load collection")
	}
	return nil
}
