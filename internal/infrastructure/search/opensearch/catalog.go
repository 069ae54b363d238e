package opensearch

import (
	"bytes"
	"context"
	"strings"

	"github.com/goccy/go-json"

	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/fragrance"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

// Catalog answers recommendation candidate queries from the fragrance index.
type Catalog struct {
	client *Client
	index  string
	logger logging.Logger
}

func NewCatalog(client *Client, index string, logger logging.Logger) *Catalog {
	if index == "" {
		index = DefaultIndex
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Catalog{client: client, index: index, logger: logger}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source fragrance.Fragrance `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// familyQuery builds a terms filter on family with the excluded IDs removed,
// sorted by id for a stable page.
func familyQuery(families, exclude []string, limit int) map[string]interface{} {
	lowered := make([]string, len(families))
	for i, f := range families {
		lowered[i] = strings.ToLower(f)
	}
	boolQuery := map[string]interface{}{
		"filter": []interface{}{
			map[string]interface{}{"terms": map[string]interface{}{"family": lowered}},
		},
	}
	if len(exclude) > 0 {
		boolQuery["must_not"] = []interface{}{
			map[string]interface{}{"ids": map[string]interface{}{"values": exclude}},
		}
	}
	return map[string]interface{}{
		"size":  limit,
		"query": map[string]interface{}{"bool": boolQuery},
		"sort":  []interface{}{map[string]interface{}{"id": "asc"}},
	}
}

// SearchByFamilies returns up to limit fragrances in families, skipping
// exclude.
func (c *Catalog) SearchByFamilies(ctx context.Context, families, exclude []string, limit int) ([]*fragrance.Fragrance, error) {
	out := []*fragrance.Fragrance{}
	if len(families) == 0 || limit <= 0 {
		return out, nil
	}

	body, err := json.Marshal(familyQuery(families, exclude, limit))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode search query")
	}

	api := c.client.client
	resp, err := api.Search(
		api.Search.WithContext(ctx),
		api.Search.WithIndex(c.index),
		api.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "catalog search failed")
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return nil, handleErrorResponse(resp, "search")
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode search response")
	}
	for i := range sr.Hits.Hits {
		f := sr.Hits.Hits[i].Source
		out = append(out, &f)
	}
	c.logger.Debug("catalog search",
		logging.Any("families", families),
		logging.Int("hits", len(out)))
	return out, nil
}
