package repositories

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/fragrance"
)

// queryExecutor abstracts sql.DB and sql.Tx
type queryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// scanner abstracts sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// fragranceColumns are selected, in order, by scanFragranceInto.
const fragranceColumns = `f.id, f.name, f.brand, f.brand_tier, f.family, f.accords,
	f.top_notes, f.middle_notes, f.base_notes, f.intensity_level,
	f.complexity_score, f.price, f.launch_year, f.embedding::text`

// fragranceDest returns scan targets for fragranceColumns. The embedding is
// decoded by finish once Scan has succeeded.
func fragranceDest(f *fragrance.Fragrance) (dest []interface{}, finish func() error) {
	var tier string
	var emb sql.NullString
	dest = []interface{}{
		&f.ID, &f.Name, &f.Brand, &tier, &f.Family, pq.Array(&f.Accords),
		pq.Array(&f.TopNotes), pq.Array(&f.MiddleNotes), pq.Array(&f.BaseNotes), &f.IntensityLevel,
		&f.ComplexityScore, &f.Price, &f.LaunchYear, &emb,
	}
	finish = func() error {
		f.BrandTier = fragrance.BrandTier(tier)
		v, err := decodeEmbedding(emb)
		if err != nil {
			return err
		}
		f.Embedding = v
		return nil
	}
	return dest, finish
}

// decodeEmbedding parses the pgvector text form; NULL yields nil.
func decodeEmbedding(s sql.NullString) (fragrance.Embedding, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var v pgvector.Vector
	if err := v.Scan(s.String); err != nil {
		return nil, err
	}
	return fragrance.Embedding(v.Slice()), nil
}

// encodeEmbedding returns a pgvector parameter, or nil for SQL NULL.
func encodeEmbedding(e fragrance.Embedding) interface{} {
	if len(e) == 0 {
		return nil
	}
	return pgvector.NewVector([]float32(e))
}
