package collection

import (
	"context"

	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/fragrance"
)

// Repository is the read contract the intelligence engine depends on.
// Implementations return an empty slice, not an error, for unknown users, and
// a stable ordering within one call.
type Repository interface {
	GetUserCollection(ctx context.Context, userID string) ([]*Item, error)
}

// RepositoryFunc adapts a function to Repository.
type RepositoryFunc func(ctx context.Context, userID string) ([]*Item, error)

func (f RepositoryFunc) GetUserCollection(ctx context.Context, userID string) ([]*Item, error) {
	return f(ctx, userID)
}

// EmbeddingSource resolves precomputed fragrance embeddings by ID. Missing IDs
// are simply absent from the result.
type EmbeddingSource interface {
	GetEmbeddings(ctx context.Context, fragranceIDs []string) (map[string]fragrance.Embedding, error)
}
