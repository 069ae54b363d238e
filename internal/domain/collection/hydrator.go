package collection

import (
	"context"

	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/fragrance"
	"github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

// EmbeddingHydrator decorates a Repository and fills in fragrance embeddings
// that the relational row did not carry.
type EmbeddingHydrator struct {
	repo    Repository
	source  EmbeddingSource
	onError func(error)
}

// HydratorOption configures an EmbeddingHydrator.
type HydratorOption func(*EmbeddingHydrator)

// WithBestEffort makes source failures non-fatal: report is called and the
// collection is returned without the missing vectors.
func WithBestEffort(report func(error)) HydratorOption {
	return func(h *EmbeddingHydrator) {
		if report == nil {
			report = func(error) {}
		}
		h.onError = report
	}
}

// NewEmbeddingHydrator wraps repo. A nil source makes it a pass-through.
func NewEmbeddingHydrator(repo Repository, source EmbeddingSource, opts ...HydratorOption) *EmbeddingHydrator {
	h := &EmbeddingHydrator{repo: repo, source: source}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// GetUserCollection implements Repository. Items are copied before their
// fragrance is enriched so the inner repository's values are never mutated.
func (h *EmbeddingHydrator) GetUserCollection(ctx context.Context, userID string) ([]*Item, error) {
	items, err := h.repo.GetUserCollection(ctx, userID)
	if err != nil || h.source == nil {
		return items, err
	}

	var missing []string
	for _, it := range items {
		if it != nil && it.Fragrance != nil && !it.Fragrance.HasEmbedding() {
			missing = append(missing, it.FragranceID)
		}
	}
	if len(missing) == 0 {
		return items, nil
	}

	vectors, err := h.source.GetEmbeddings(ctx, missing)
	if err != nil {
		err = errors.Wrap(err, errors.ErrCodeEmbeddingUnavailable, "hydrate embeddings")
		if h.onError != nil {
			h.onError(err)
			return items, nil
		}
		return nil, err
	}

	out := make([]*Item, len(items))
	for i, it := range items {
		out[i] = it
		if it == nil || it.Fragrance == nil || it.Fragrance.HasEmbedding() {
			continue
		}
		vec, ok := vectors[it.FragranceID]
		if !ok {
			continue
		}
		itemCopy := *it
		fragCopy := *it.Fragrance
		fragCopy.Embedding = append(fragrance.Embedding(nil), vec...)
		itemCopy.Fragrance = &fragCopy
		out[i] = &itemCopy
	}
	return out, nil
}
