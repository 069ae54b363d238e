package milvus

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ScentIQ-Intelligence/internal/config"
	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/fragrance"
	apperrors "github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

func newTestStore(mc *mockMilvusClient) *EmbeddingStore {
	return NewEmbeddingStore(newTestClient(mc), config.MilvusConfig{}, nil)
}

func TestNewEmbeddingStore_Defaults(t *testing.T) {
	s := newTestStore(&mockMilvusClient{})
	assert.Equal(t, EmbeddingSchema{Name: "fragrance_embeddings", IDField: "fragrance_id", VectorField: "embedding"}, s.Schema())
}

func TestGetEmbeddings(t *testing.T) {
	mc := &mockMilvusClient{
		queryFunc: func(_ context.Context, coll, expr string, fields []string) (client.ResultSet, error) {
			assert.Equal(t, "fragrance_embeddings", coll)
			assert.Equal(t, `fragrance_id in ["santal-33","ghost"]`, expr)
			assert.Equal(t, []string{"fragrance_id", "embedding"}, fields)
			return client.ResultSet{
				entity.NewColumnVarChar("fragrance_id", []string{"santal-33"}),
				entity.NewColumnFloatVector("embedding", 2, [][]float32{{0.5, 0.5}}),
			}, nil
		},
	}

	got, err := newTestStore(mc).GetEmbeddings(context.Background(), []string{"santal-33", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, map[string]fragrance.Embedding{"santal-33": {0.5, 0.5}}, got)
}

func TestGetEmbeddings_Empty(t *testing.T) {
	got, err := newTestStore(&mockMilvusClient{}).GetEmbeddings(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetEmbeddings_Failures(t *testing.T) {
	mc := &mockMilvusClient{queryFunc: func(context.Context, string, string, []string) (client.ResultSet, error) {
		return nil, errors.New("collection not loaded")
	}}
	_, err := newTestStore(mc).GetEmbeddings(context.Background(), []string{"a"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeEmbeddingUnavailable))

	mc = &mockMilvusClient{queryFunc: func(context.Context, string, string, []string) (client.ResultSet, error) {
		return client.ResultSet{entity.NewColumnVarChar("fragrance_id", []string{"a"})}, nil
	}}
	_, err = newTestStore(mc).GetEmbeddings(context.Background(), []string{"a"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeEmbeddingUnavailable))
}

func TestUpsertEmbeddings(t *testing.T) {
	var ids []string
	mc := &mockMilvusClient{
		upsertFunc: func(_ context.Context, coll string, cols ...entity.Column) (entity.Column, error) {
			require.Len(t, cols, 2)
			ids = append(ids, cols[0].(*entity.ColumnVarChar).Data()...)
			assert.Equal(t, 2, cols[1].(*entity.ColumnFloatVector).Dim())
			return cols[0], nil
		},
	}
	err := newTestStore(mc).UpsertEmbeddings(context.Background(), map[string]fragrance.Embedding{
		"a": {1, 0},
		"b": {0, 1},
	})
	require.NoError(t, err)
	sort.Strings(ids)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestUpsertEmbeddings_DimensionMismatch(t *testing.T) {
	err := newTestStore(&mockMilvusClient{}).UpsertEmbeddings(context.Background(), map[string]fragrance.Embedding{
		"a": {1, 0},
		"b": {0, 1, 0},
	})
	assert.True(t, apperrors.IsValidation(err))
	assert.NoError(t, newTestStore(&mockMilvusClient{}).UpsertEmbeddings(context.Background(), nil))
}

func TestInExpr(t *testing.T) {
	assert.Equal(t, `id in ["a","b\"c"]`, inExpr("id", []string{"a", `b"c`}))
}
