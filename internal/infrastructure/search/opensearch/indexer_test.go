package opensearch

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/fragrance"
	apperrors "github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

func TestEnsureIndex_Creates(t *testing.T) {
	var created string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			created = r.URL.Path
			assert.Contains(t, string(body), `"normalizer": "lower"`)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"acknowledged":true}`))
		}
	}))
	defer srv.Close()

	ix := NewIndexer(newTestClient(t, srv), IndexerConfig{}, nil)
	require.NoError(t, ix.EnsureIndex(context.Background()))
	assert.Equal(t, "/fragrances", created)
}

func TestEnsureIndex_Exists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method, "must not recreate an existing index")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ix := NewIndexer(newTestClient(t, srv), IndexerConfig{Index: "catalog"}, nil)
	require.NoError(t, ix.EnsureIndex(context.Background()))
}

func TestEnsureIndex_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"resource_already_exists_exception","reason":"index exists"}}`))
	}))
	defer srv.Close()

	err := NewIndexer(newTestClient(t, srv), IndexerConfig{}, nil).EnsureIndex(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resource_already_exists_exception")
}

func TestIndexFragrances(t *testing.T) {
	var lines []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_bulk", r.URL.Path)
		sc := bufio.NewScanner(r.Body)
		for sc.Scan() {
			lines = append(lines, sc.Text())
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"errors":true,"items":[
			{"index":{"_id":"santal-33","status":201}},
			{"index":{"_id":"light-blue","status":400,"error":{"type":"mapper_parsing_exception","reason":"bad price"}}}
		]}`))
	}))
	defer srv.Close()

	ix := NewIndexer(newTestClient(t, srv), IndexerConfig{}, nil)
	res, err := ix.IndexFragrances(context.Background(), []*fragrance.Fragrance{
		{ID: "santal-33", Name: "Santal 33", Family: "woody"},
		{ID: "light-blue", Name: "Light Blue", Family: "fresh"},
		{Name: "no id"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 2, res.Failed)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "validation_error", res.Errors[0].ErrorType)
	assert.Equal(t, "light-blue", res.Errors[1].DocID)

	require.Len(t, lines, 4)
	var meta map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &meta))
	assert.Equal(t, "santal-33", meta["index"]["_id"])
	assert.Equal(t, "fragrances", meta["index"]["_index"])
	assert.True(t, strings.Contains(lines[1], `"family":"woody"`))
}

func TestIndexFragrances_Batches(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		_, _ = w.Write([]byte(`{"errors":false,"items":[{"index":{"_id":"x","status":200}}]}`))
	}))
	defer srv.Close()

	ix := NewIndexer(newTestClient(t, srv), IndexerConfig{BulkBatchSize: 1}, nil)
	res, err := ix.IndexFragrances(context.Background(), []*fragrance.Fragrance{{ID: "a"}, {ID: "b"}})
	require.NoError(t, err)
	assert.Equal(t, 2, requests)
	assert.Equal(t, 2, res.Succeeded)
}

func TestIndexFragrances_HTTPError(t *testing.T) {
	srv := statusServer(t, http.StatusForbidden)

	ix := NewIndexer(newTestClient(t, srv), IndexerConfig{}, nil)
	res, err := ix.IndexFragrances(context.Background(), []*fragrance.Fragrance{{ID: "a"}})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeServiceUnavailable))
	assert.Equal(t, 1, res.Failed)
}
