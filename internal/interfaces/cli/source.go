package cli

import (
	"bytes"
	"context"
	"os"
	"sort"

	"github.com/goccy/go-json"

	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/collection"
	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/fragrance"
	"github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

// FileCollections serves collections read from a JSON document. The document
// is either an object keyed by user ID or a bare item array, which then
// belongs to every user. Every fragrance in the file doubles as the catalog.
type FileCollections struct {
	byUser map[string][]*collection.Item
	shared []*collection.Item
}

var _ collection.Repository = (*FileCollections)(nil)

// LoadCollectionFile reads and parses path.
func LoadCollectionFile(path string) (*FileCollections, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeBadRequest, "failed to read collection file %s", path)
	}
	return ParseCollections(data)
}

// ParseCollections decodes either supported layout.
func ParseCollections(data []byte) (*FileCollections, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.NewValidation("collection document is empty")
	}
	fc := &FileCollections{byUser: map[string][]*collection.Item{}}
	if data[0] == '[' {
		if err := json.Unmarshal(data, &fc.shared); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "malformed collection array")
		}
		return fc, fc.validate()
	}
	if err := json.Unmarshal(data, &fc.byUser); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "malformed collection document")
	}
	return fc, fc.validate()
}

func (fc *FileCollections) validate() error {
	check := func(items []*collection.Item) error {
		for _, it := range items {
			if it == nil {
				continue
			}
			if it.FragranceID == "" {
				return errors.NewValidation("collection item without fragrance_id")
			}
			if !it.UsageFrequency.IsValid() {
				return errors.NewValidation("item %s has unknown usage_frequency %q", it.FragranceID, it.UsageFrequency)
			}
		}
		return nil
	}
	if err := check(fc.shared); err != nil {
		return err
	}
	for _, items := range fc.byUser {
		if err := check(items); err != nil {
			return err
		}
	}
	return nil
}

// Users lists the user IDs present in the document, sorted.
func (fc *FileCollections) Users() []string {
	out := make([]string, 0, len(fc.byUser))
	for u := range fc.byUser {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// GetUserCollection implements collection.Repository.
func (fc *FileCollections) GetUserCollection(_ context.Context, userID string) ([]*collection.Item, error) {
	if items, ok := fc.byUser[userID]; ok {
		return items, nil
	}
	if fc.shared != nil {
		return fc.shared, nil
	}
	return []*collection.Item{}, nil
}

// Fragrances returns every distinct fragrance record, ordered by ID.
func (fc *FileCollections) Fragrances() []*fragrance.Fragrance {
	seen := map[string]*fragrance.Fragrance{}
	add := func(items []*collection.Item) {
		for _, it := range items {
			if it == nil || it.Fragrance == nil {
				continue
			}
			f := it.Fragrance
			if f.ID == "" {
				cp := *f
				cp.ID = it.FragranceID
				f = &cp
			}
			if _, ok := seen[f.ID]; !ok {
				seen[f.ID] = f
			}
		}
	}
	add(fc.shared)
	for _, u := range fc.Users() {
		add(fc.byUser[u])
	}

	out := make([]*fragrance.Fragrance, 0, len(seen))
	for _, f := range seen {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SearchByFamilies implements intelligence.CatalogSearcher over the file's
// fragrances.
func (fc *FileCollections) SearchByFamilies(_ context.Context, families, exclude []string, limit int) ([]*fragrance.Fragrance, error) {
	want := make(map[string]struct{}, len(families))
	for _, f := range families {
		want[fragrance.NormalizeTag(f)] = struct{}{}
	}
	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	var out []*fragrance.Fragrance
	for _, f := range fc.Fragrances() {
		if _, ok := skip[f.ID]; ok {
			continue
		}
		if _, ok := want[f.NormalizedFamily()]; !ok {
			continue
		}
		out = append(out, f)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
