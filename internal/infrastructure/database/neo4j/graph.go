package neo4j

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/fragrance"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Scent graph
// ─────────────────────────────────────────────────────────────────────────────
//
// (:Fragrance {id})-[:IN_FAMILY]->(:Family {name})
// (:Fragrance)-[:MADE_BY]->(:Brand {name})
// (:Fragrance)-[:HAS_NOTE {tier}]->(:Note {name})
//
// Family, brand and note names are stored lower-cased.

const syncBatchSize = 500

var graphConstraints = []string{
	"CREATE CONSTRAINT fragrance_id IF NOT EXISTS FOR (f:Fragrance) REQUIRE f.id IS UNIQUE",
	"CREATE CONSTRAINT family_name IF NOT EXISTS FOR (f:Family) REQUIRE f.name IS UNIQUE",
	"CREATE CONSTRAINT brand_name IF NOT EXISTS FOR (b:Brand) REQUIRE b.name IS UNIQUE",
	"CREATE CONSTRAINT note_name IF NOT EXISTS FOR (n:Note) REQUIRE n.name IS UNIQUE",
}

const searchByFamiliesCypher = `
MATCH (f:Fragrance)-[:IN_FAMILY]->(fam:Family)
WHERE fam.name IN $families AND NOT f.id IN $exclude
WITH DISTINCT f
ORDER BY f.id
LIMIT $limit
RETURN f {.*} AS fragrance
`

const syncFragrancesCypher = `
UNWIND $rows AS row
MERGE (f:Fragrance {id: row.id})
SET f += row.props
WITH f, row
MERGE (fam:Family {name: row.family})
MERGE (f)-[:IN_FAMILY]->(fam)
FOREACH (brand IN CASE WHEN row.brand = '' THEN [] ELSE [row.brand] END |
	MERGE (b:Brand {name: brand})
	MERGE (f)-[:MADE_BY]->(b))
FOREACH (note IN row.notes |
	MERGE (n:Note {name: note.name})
	MERGE (f)-[:HAS_NOTE {tier: note.tier}]->(n))
RETURN count(f) AS synced
`

// ScentGraph serves catalog lookups from the fragrance graph and keeps it in
// sync with the catalog. It implements intelligence.CatalogSearcher.
type ScentGraph struct {
	exec   Executor
	logger logging.Logger
}

func NewScentGraph(exec Executor, log logging.Logger) *ScentGraph {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &ScentGraph{exec: exec, logger: log}
}

// EnsureSchema creates the uniqueness constraints the merges rely on.
func (g *ScentGraph) EnsureSchema(ctx context.Context) error {
	_, err := g.exec.ExecuteWrite(ctx, func(tx Transaction) (any, error) {
		for _, stmt := range graphConstraints {
			if _, err := tx.Run(ctx, stmt, nil); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create graph constraints")
	}
	return nil
}

// SearchByFamilies returns up to limit fragrances linked to any of families,
// ordered by ID, skipping exclude.
func (g *ScentGraph) SearchByFamilies(ctx context.Context, families, exclude []string, limit int) ([]*fragrance.Fragrance, error) {
	out := []*fragrance.Fragrance{}
	if len(families) == 0 || limit <= 0 {
		return out, nil
	}
	params := map[string]any{
		"families": lowerAll(families),
		"exclude":  nonNil(exclude),
		"limit":    int64(limit),
	}

	res, err := g.exec.ExecuteRead(ctx, func(tx Transaction) (any, error) {
		result, err := tx.Run(ctx, searchByFamiliesCypher, params)
		if err != nil {
			return nil, err
		}
		return CollectRecords(ctx, result, recordToFragrance)
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCatalogUnavailable, "scent graph search failed")
	}
	found, _ := res.([]*fragrance.Fragrance)
	return append(out, found...), nil
}

// SyncFragrances merges the fragrances and their family, brand and note
// edges. Fragrances without a family are skipped. Returns the number synced.
func (g *ScentGraph) SyncFragrances(ctx context.Context, items []*fragrance.Fragrance) (int, error) {
	rows := make([]any, 0, len(items))
	for _, f := range items {
		if f == nil || f.ID == "" || strings.TrimSpace(f.Family) == "" {
			continue
		}
		rows = append(rows, fragranceRow(f))
	}

	synced := 0
	for start := 0; start < len(rows); start += syncBatchSize {
		end := start + syncBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]
		res, err := g.exec.ExecuteWrite(ctx, func(tx Transaction) (any, error) {
			result, err := tx.Run(ctx, syncFragrancesCypher, map[string]any{"rows": batch})
			if err != nil {
				return nil, err
			}
			if result.Next(ctx) {
				n, _ := result.Record().Values[0].(int64)
				return int(n), nil
			}
			return 0, result.Err()
		})
		if err != nil {
			return synced, errors.Wrapf(err, errors.ErrCodeDatabaseError, "failed to sync fragrances %d-%d", start, end)
		}
		n, _ := res.(int)
		synced += n
	}

	g.logger.Info("scent graph synced",
		logging.Int("synced", synced),
		logging.Int("skipped", len(items)-len(rows)))
	return synced, nil
}

func fragranceRow(f *fragrance.Fragrance) map[string]any {
	notes := make([]any, 0, len(f.TopNotes)+len(f.MiddleNotes)+len(f.BaseNotes))
	addNotes := func(tier string, names []string) {
		for _, n := range names {
			if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
				notes = append(notes, map[string]any{"name": n, "tier": tier})
			}
		}
	}
	addNotes("top", f.TopNotes)
	addNotes("middle", f.MiddleNotes)
	addNotes("base", f.BaseNotes)

	return map[string]any{
		"id":     f.ID,
		"family": strings.ToLower(strings.TrimSpace(f.Family)),
		"brand":  strings.ToLower(strings.TrimSpace(f.Brand)),
		"notes":  notes,
		"props": map[string]any{
			"name":             f.Name,
			"brand":            f.Brand,
			"brand_tier":       string(f.BrandTier),
			"family":           f.Family,
			"accords":          nonNil(f.Accords),
			"top_notes":        nonNil(f.TopNotes),
			"middle_notes":     nonNil(f.MiddleNotes),
			"base_notes":       nonNil(f.BaseNotes),
			"intensity_level":  int64(f.IntensityLevel),
			"complexity_score": f.ComplexityScore,
			"price":            f.Price,
			"launch_year":      int64(f.LaunchYear),
		},
	}
}

func recordToFragrance(rec *neo4j.Record) (*fragrance.Fragrance, error) {
	raw, ok := rec.Get("fragrance")
	if !ok {
		return nil, fmt.Errorf("record has no fragrance column")
	}
	props, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected fragrance value %T", raw)
	}
	return &fragrance.Fragrance{
		ID:              asString(props["id"]),
		Name:            asString(props["name"]),
		Brand:           asString(props["brand"]),
		BrandTier:       fragrance.BrandTier(asString(props["brand_tier"])),
		Family:          asString(props["family"]),
		Accords:         asStrings(props["accords"]),
		TopNotes:        asStrings(props["top_notes"]),
		MiddleNotes:     asStrings(props["middle_notes"]),
		BaseNotes:       asStrings(props["base_notes"]),
		IntensityLevel:  int(asInt(props["intensity_level"])),
		ComplexityScore: asFloat(props["complexity_score"]),
		Price:           asFloat(props["price"]),
		LaunchYear:      int(asInt(props["launch_year"])),
	}, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

func asStrings(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, x := range list {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
