package milvus

import (
	"context"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/turtacn/ScentIQ-Intelligence/internal/config"
	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/collection"
	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/fragrance"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

// EmbeddingStore reads and writes fragrance vectors keyed by fragrance ID.
type EmbeddingStore struct {
	client *Client
	schema EmbeddingSchema
	logger logging.Logger
}

var _ collection.EmbeddingSource = (*EmbeddingStore)(nil)

// NewEmbeddingStore binds a store to cfg's collection and field names.
func NewEmbeddingStore(client *Client, cfg config.MilvusConfig, logger logging.Logger) *EmbeddingStore {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := EmbeddingSchema{Name: cfg.Collection, IDField: cfg.IDField, VectorField: cfg.VectorField}
	if s.Name == "" {
		s.Name = "fragrance_embeddings"
	}
	if s.IDField == "" {
		s.IDField = "fragrance_id"
	}
	if s.VectorField == "" {
		s.VectorField = "embedding"
	}
	return &EmbeddingStore{client: client, schema: s, logger: logger}
}

// Schema reports the collection layout, with Dim left for the caller.
func (s *EmbeddingStore) Schema() EmbeddingSchema { return s.schema }

// GetEmbeddings implements collection.EmbeddingSource. Unknown IDs are absent
// from the result.
func (s *EmbeddingStore) GetEmbeddings(ctx context.Context, fragranceIDs []string) (map[string]fragrance.Embedding, error) {
	out := make(map[string]fragrance.Embedding, len(fragranceIDs))
	if len(fragranceIDs) == 0 {
		return out, nil
	}
	mc := s.client.milvus()
	if mc == nil {
		return nil, ErrConnectionFailed
	}

	ctx, cancel := s.client.requestContext(ctx)
	defer cancel()
	rs, err := mc.Query(ctx, s.schema.Name, nil, inExpr(s.schema.IDField, fragranceIDs),
		[]string{s.schema.IDField, s.schema.VectorField})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEmbeddingUnavailable, "failed to query embeddings")
	}

	idCol, ok := rs.GetColumn(s.schema.IDField).(*entity.ColumnVarChar)
	if !ok {
		return nil, errors.New(errors.ErrCodeEmbeddingUnavailable, "id field missing from query result")
	}
	vecCol, ok := rs.GetColumn(s.schema.VectorField).(*entity.ColumnFloatVector)
	if !ok {
		return nil, errors.New(errors.ErrCodeEmbeddingUnavailable, "vector field missing from query result")
	}

	ids, vectors := idCol.Data(), vecCol.Data()
	for i := 0; i < len(ids) && i < len(vectors); i++ {
		out[ids[i]] = fragrance.Embedding(vectors[i])
	}
	s.logger.Debug("embeddings fetched",
		logging.Int("requested", len(fragranceIDs)),
		logging.Int("found", len(out)))
	return out, nil
}

// UpsertEmbeddings writes vectors in one batch. All vectors must share one
// dimension.
func (s *EmbeddingStore) UpsertEmbeddings(ctx context.Context, vectors map[string]fragrance.Embedding) error {
	if len(vectors) == 0 {
		return nil
	}
	mc := s.client.milvus()
	if mc == nil {
		return ErrConnectionFailed
	}

	ids := make([]string, 0, len(vectors))
	data := make([][]float32, 0, len(vectors))
	dim := -1
	for id, v := range vectors {
		if dim == -1 {
			dim = len(v)
		}
		if len(v) == 0 || len(v) != dim {
			return errors.NewValidation("embedding for %s has dimension %d, want %d", id, len(v), dim)
		}
		ids = append(ids, id)
		data = append(data, []float32(v))
	}

	ctx, cancel := s.client.requestContext(ctx)
	defer cancel()
	_, err := mc.Upsert(ctx, s.schema.Name, "",
		entity.NewColumnVarChar(s.schema.IDField, ids),
		entity.NewColumnFloatVector(s.schema.VectorField, dim, data))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeEmbeddingUnavailable, "failed to upsert embeddings")
	}
	s.logger.Info("embeddings upserted", logging.Int("count", len(ids)))
	return nil
}

// inExpr renders a boolean "field in [...]" filter with quoted IDs.
func inExpr(field string, ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = strconv.Quote(id)
	}
	return field + " in [" + strings.Join(quoted, ",") + "]"
}
