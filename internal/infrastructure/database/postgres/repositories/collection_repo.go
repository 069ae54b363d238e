package repositories

import (
	"context"
	"database/sql"
	"strings"

	"github.com/lib/pq"

	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/collection"
	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/fragrance"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

// CollectionRepository reads and writes user collections joined with the
// fragrance catalog. It implements collection.Repository.
type CollectionRepository struct {
	conn *postgres.Connection
	tx   *sql.Tx
	log  logging.Logger
}

var _ collection.Repository = (*CollectionRepository)(nil)

func NewCollectionRepository(conn *postgres.Connection, log logging.Logger) *CollectionRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &CollectionRepository{conn: conn, log: log}
}

func (r *CollectionRepository) executor() queryExecutor {
	if r.tx != nil {
		return r.tx
	}
	return r.conn.DB()
}

const selectCollection = `
	SELECT uc.fragrance_id, uc.rating, uc.usage_frequency, uc.occasions, uc.seasons,
		uc.emotional_tags, uc.performance_issues, uc.last_used_at, uc.created_at,
		` + fragranceColumns + `
	FROM user_collections uc
	JOIN fragrances f ON f.id = uc.fragrance_id
	WHERE uc.user_id = $1
	ORDER BY uc.created_at, uc.fragrance_id
`

// GetUserCollection returns the user's items in acquisition order; an unknown
// user yields an empty slice.
func (r *CollectionRepository) GetUserCollection(ctx context.Context, userID string) ([]*collection.Item, error) {
	rows, err := r.executor().QueryContext(ctx, selectCollection, userID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query user collection")
	}
	defer rows.Close()

	items := []*collection.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate user collection")
	}
	r.log.Debug("collection loaded", logging.UserID(userID), logging.Int("items", len(items)))
	return items, nil
}

func scanItem(s scanner) (*collection.Item, error) {
	it := &collection.Item{Fragrance: &fragrance.Fragrance{}}
	var usage string
	var lastUsed sql.NullTime
	fdest, finish := fragranceDest(it.Fragrance)

	dest := append([]interface{}{
		&it.FragranceID, &it.Rating, &usage, pq.Array(&it.Occasions), pq.Array(&it.Seasons),
		pq.Array(&it.EmotionalTags), &it.PerformanceIssues, &lastUsed, &it.CreatedAt,
	}, fdest...)
	if err := s.Scan(dest...); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan collection item")
	}
	if err := finish(); err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeSerialization, "invalid embedding for fragrance %s", it.FragranceID)
	}
	it.UsageFrequency = collection.UsageFrequency(usage)
	if lastUsed.Valid {
		t := lastUsed.Time
		it.LastUsedAt = &t
	}
	return it, nil
}

const upsertFragrance = `
	INSERT INTO fragrances (
		id, name, brand, brand_tier, family, accords, top_notes, middle_notes, base_notes,
		intensity_level, complexity_score, price, launch_year, embedding
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name, brand = EXCLUDED.brand, brand_tier = EXCLUDED.brand_tier,
		family = EXCLUDED.family, accords = EXCLUDED.accords, top_notes = EXCLUDED.top_notes,
		middle_notes = EXCLUDED.middle_notes, base_notes = EXCLUDED.base_notes,
		intensity_level = EXCLUDED.intensity_level, complexity_score = EXCLUDED.complexity_score,
		price = EXCLUDED.price, launch_year = EXCLUDED.launch_year,
		embedding = COALESCE(EXCLUDED.embedding, fragrances.embedding), updated_at = NOW()
`

const upsertItem = `
	INSERT INTO user_collections (
		user_id, fragrance_id, rating, usage_frequency, occasions, seasons, emotional_tags,
		performance_issues, last_used_at, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, NOW()))
	ON CONFLICT (user_id, fragrance_id) DO UPDATE SET
		rating = EXCLUDED.rating, usage_frequency = EXCLUDED.usage_frequency,
		occasions = EXCLUDED.occasions, seasons = EXCLUDED.seasons,
		emotional_tags = EXCLUDED.emotional_tags, performance_issues = EXCLUDED.performance_issues,
		last_used_at = EXCLUDED.last_used_at, updated_at = NOW()
`

// SaveCollection upserts the items and their catalog records in one
// transaction. Items without a fragrance record must already exist in the
// catalog.
func (r *CollectionRepository) SaveCollection(ctx context.Context, userID string, items []*collection.Item) error {
	if userID == "" {
		return errors.NewValidation("user id is required")
	}
	tx, err := r.conn.DB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to begin transaction")
	}
	txRepo := &CollectionRepository{conn: r.conn, tx: tx, log: r.log}
	for _, it := range items {
		if it == nil {
			continue
		}
		if err := txRepo.saveItem(ctx, userID, it); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to commit collection")
	}
	r.log.Info("collection saved", logging.UserID(userID), logging.Int("items", len(items)))
	return nil
}

func (r *CollectionRepository) saveItem(ctx context.Context, userID string, it *collection.Item) error {
	if it.FragranceID == "" {
		return errors.NewValidation("collection item without fragrance_id")
	}
	if f := it.Fragrance; f != nil {
		_, err := r.executor().ExecContext(ctx, upsertFragrance,
			it.FragranceID, f.Name, f.Brand, string(f.BrandTier), f.Family, pq.Array(nonNil(f.Accords)),
			pq.Array(nonNil(f.TopNotes)), pq.Array(nonNil(f.MiddleNotes)), pq.Array(nonNil(f.BaseNotes)),
			f.IntensityLevel, f.ComplexityScore, f.Price, f.LaunchYear, encodeEmbedding(f.Embedding),
		)
		if err != nil {
			return errors.Wrapf(err, errors.ErrCodeDatabaseError, "failed to upsert fragrance %s", it.FragranceID)
		}
	}

	var created interface{}
	if !it.CreatedAt.IsZero() {
		created = it.CreatedAt
	}
	var lastUsed interface{}
	if it.LastUsedAt != nil {
		lastUsed = *it.LastUsedAt
	}
	_, err := r.executor().ExecContext(ctx, upsertItem,
		userID, it.FragranceID, it.Rating, string(it.UsageFrequency),
		pq.Array(nonNil(it.Occasions)), pq.Array(nonNil(it.Seasons)), pq.Array(nonNil(it.EmotionalTags)),
		it.PerformanceIssues, lastUsed, created,
	)
	if err != nil {
		return errors.Wrapf(err, errors.ErrCodeDatabaseError, "failed to upsert collection item %s", it.FragranceID)
	}
	return nil
}

// RemoveItem deletes one item; removing an absent item is a no-op.
func (r *CollectionRepository) RemoveItem(ctx context.Context, userID, fragranceID string) error {
	_, err := r.executor().ExecContext(ctx,
		`DELETE FROM user_collections WHERE user_id = $1 AND fragrance_id = $2`, userID, fragranceID)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to remove collection item")
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// ─────────────────────────────────────────────────────────────────────────────
// Catalog
// ─────────────────────────────────────────────────────────────────────────────

// FragranceCatalog searches the fragrances table. It serves as the
// recommendation catalog when no search cluster is configured.
type FragranceCatalog struct {
	conn *postgres.Connection
	log  logging.Logger
}

func NewFragranceCatalog(conn *postgres.Connection, log logging.Logger) *FragranceCatalog {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &FragranceCatalog{conn: conn, log: log}
}

const searchByFamilies = `
	SELECT ` + fragranceColumns + `
	FROM fragrances f
	WHERE lower(f.family) = ANY($1) AND NOT (f.id = ANY($2))
	ORDER BY f.id
	LIMIT $3
`

// SearchByFamilies returns up to limit fragrances whose family is one of
// families, skipping exclude.
func (c *FragranceCatalog) SearchByFamilies(ctx context.Context, families, exclude []string, limit int) ([]*fragrance.Fragrance, error) {
	out := []*fragrance.Fragrance{}
	if len(families) == 0 || limit <= 0 {
		return out, nil
	}
	lowered := make([]string, len(families))
	for i, f := range families {
		lowered[i] = strings.ToLower(f)
	}

	rows, err := c.conn.DB().QueryContext(ctx, searchByFamilies, pq.Array(lowered), pq.Array(nonNil(exclude)), limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to search fragrances")
	}
	defer rows.Close()

	for rows.Next() {
		f := &fragrance.Fragrance{}
		dest, finish := fragranceDest(f)
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan fragrance")
		}
		if err := finish(); err != nil {
			return nil, errors.Wrapf(err, errors.ErrCodeSerialization, "invalid embedding for fragrance %s", f.ID)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate fragrances")
	}
	return out, nil
}
