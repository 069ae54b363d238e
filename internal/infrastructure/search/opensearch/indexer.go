package opensearch

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/fragrance"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

// DefaultIndex is used when no index name is configured.
const DefaultIndex = "fragrances"

// fragranceMapping keeps filterable attributes as keywords; family and brand
// use a lowercase normalizer so terms queries are case-insensitive.
const fragranceMapping = `{
  "settings": {
    "number_of_shards": 1,
    "analysis": {
      "normalizer": {
        "lower": {"type": "custom", "filter": ["lowercase"]}
      }
    }
  },
  "mappings": {
    "dynamic": false,
    "properties": {
      "id":               {"type": "keyword"},
      "name":             {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "brand":            {"type": "keyword", "normalizer": "lower"},
      "brand_tier":       {"type": "keyword"},
      "family":           {"type": "keyword", "normalizer": "lower"},
      "accords":          {"type": "keyword", "normalizer": "lower"},
      "top_notes":        {"type": "keyword", "normalizer": "lower"},
      "middle_notes":     {"type": "keyword", "normalizer": "lower"},
      "base_notes":       {"type": "keyword", "normalizer": "lower"},
      "intensity_level":  {"type": "integer"},
      "complexity_score": {"type": "float"},
      "price":            {"type": "float"},
      "launch_year":      {"type": "integer"}
    }
  }
}`

// BulkItemError describes one rejected document.
type BulkItemError struct {
	DocID     string
	ErrorType string
	Reason    string
}

// BulkResult summarises a bulk load.
type BulkResult struct {
	Succeeded int
	Failed    int
	Errors    []BulkItemError
}

// IndexerConfig holds configuration for the Indexer.
type IndexerConfig struct {
	Index         string
	BulkBatchSize int
	RefreshPolicy string
}

// Indexer provisions the catalog index and loads fragrance documents.
type Indexer struct {
	client *Client
	config IndexerConfig
	logger logging.Logger
}

func NewIndexer(client *Client, cfg IndexerConfig, logger logging.Logger) *Indexer {
	if cfg.Index == "" {
		cfg.Index = DefaultIndex
	}
	if cfg.BulkBatchSize <= 0 {
		cfg.BulkBatchSize = 500
	}
	if cfg.RefreshPolicy == "" {
		cfg.RefreshPolicy = "false"
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Indexer{client: client, config: cfg, logger: logger}
}

// EnsureIndex creates the catalog index when it does not exist yet.
func (i *Indexer) EnsureIndex(ctx context.Context) error {
	exists, err := i.IndexExists(ctx)
	if err != nil || exists {
		return err
	}

	req := opensearchapi.IndicesCreateRequest{
		Index: i.config.Index,
		Body:  bytes.NewReader([]byte(fragranceMapping)),
	}
	resp, err := req.Do(ctx, i.client.client)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to create index")
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return handleErrorResponse(resp, "create index")
	}
	i.logger.Info("Index created", logging.String("index", i.config.Index))
	return nil
}

func (i *Indexer) IndexExists(ctx context.Context) (bool, error) {
	req := opensearchapi.IndicesExistsRequest{Index: []string{i.config.Index}}
	resp, err := req.Do(ctx, i.client.client)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to check index existence")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case 200:
		return true, nil
	case 404:
		return false, nil
	default:
		return false, handleErrorResponse(resp, "check index")
	}
}

// IndexFragrances bulk-loads docs keyed by fragrance ID. Per-document
// rejections are reported in the result; transport failures abort.
func (i *Indexer) IndexFragrances(ctx context.Context, docs []*fragrance.Fragrance) (*BulkResult, error) {
	result := &BulkResult{}
	for start := 0; start < len(docs); start += i.config.BulkBatchSize {
		end := start + i.config.BulkBatchSize
		if end > len(docs) {
			end = len(docs)
		}
		if err := i.bulk(ctx, docs[start:end], result); err != nil {
			return result, err
		}
	}

	i.logger.Info("Bulk index completed",
		logging.Int("total", len(docs)),
		logging.Int("succeeded", result.Succeeded),
		logging.Int("failed", result.Failed))
	return result, nil
}

func (i *Indexer) bulk(ctx context.Context, batch []*fragrance.Fragrance, result *BulkResult) error {
	var buf bytes.Buffer
	sent := 0
	for _, f := range batch {
		if f == nil || f.ID == "" {
			result.Failed++
			result.Errors = append(result.Errors, BulkItemError{ErrorType: "validation_error", Reason: "fragrance without id"})
			continue
		}
		meta, _ := json.Marshal(map[string]map[string]string{"index": {"_index": i.config.Index, "_id": f.ID}})
		doc, err := json.Marshal(f)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, BulkItemError{DocID: f.ID, ErrorType: "serialization_error", Reason: err.Error()})
			continue
		}
		buf.Write(meta)
		buf.WriteByte('\n')
		buf.Write(doc)
		buf.WriteByte('\n')
		sent++
	}
	if sent == 0 {
		return nil
	}

	req := opensearchapi.BulkRequest{Body: &buf, Refresh: i.config.RefreshPolicy}
	resp, err := req.Do(ctx, i.client.client)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "bulk request failed")
	}
	defer resp.Body.Close()

	if resp.IsError() {
		result.Failed += sent
		return handleErrorResponse(resp, "bulk index")
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&bulkResp); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode bulk response")
	}

	for _, item := range bulkResp.Items {
		for _, info := range item {
			if info.Status >= 200 && info.Status < 300 {
				result.Succeeded++
				continue
			}
			result.Failed++
			result.Errors = append(result.Errors, BulkItemError{DocID: info.ID, ErrorType: info.Error.Type, Reason: info.Error.Reason})
		}
	}
	return nil
}

func handleErrorResponse(resp *opensearchapi.Response, op string) error {
	var errResp struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Reason != "" {
		return errors.New(errors.ErrCodeServiceUnavailable,
			fmt.Sprintf("opensearch %s failed: %s - %s", op, errResp.Error.Type, errResp.Error.Reason))
	}
	return errors.New(errors.ErrCodeServiceUnavailable, fmt.Sprintf("opensearch %s failed with status %d", op, resp.StatusCode))
}
