package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turtacn/ScentIQ-Intelligence/internal/bootstrap"
	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/fragrance"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/database/neo4j"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/search/milvus"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/search/opensearch"
	"github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

// ImportResult counts what one target accepted.
type ImportResult struct {
	Target   string `json:"target"`
	Imported int    `json:"imported"`
	Failed   int    `json:"failed,omitempty"`
	Skipped  bool   `json:"skipped,omitempty"`
}

type importResults []ImportResult

func (r importResults) TableHeaders() []string {
	return []string{"TARGET", "IMPORTED", "FAILED", "SKIPPED"}
}

func (r importResults) TableRows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, x := range r {
		rows = append(rows, []string{x.Target, fmt.Sprint(x.Imported), fmt.Sprint(x.Failed), fmt.Sprint(x.Skipped)})
	}
	return rows
}

// NewImportCmd loads collection documents into the configured stores.
func NewImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load collections and catalog data into the stores",
	}
	cmd.AddCommand(newImportCollectionCmd(), newImportCatalogCmd())
	return cmd
}

func newImportCollectionCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "collection FILE",
		Short: "Replace users' collections in PostgreSQL with the contents of FILE",
		Long: "FILE is either an object keyed by user ID or a bare item array.\n" +
			"A bare array needs --user.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			doc, err := LoadCollectionFile(args[0])
			if err != nil {
				return err
			}
			users := doc.Users()
			if len(users) == 0 {
				if user == "" {
					return errors.NewValidation("%s holds a bare item array; --user is required", args[0])
				}
				users = []string{user}
			} else if user != "" {
				users = []string{user}
			}

			ctx, cancel := cc.operationContext(cmd.Context())
			defer cancel()
			infra, err := cc.Infrastructure(ctx)
			if err != nil {
				return err
			}
			repo := repositories.NewCollectionRepository(infra.Postgres, cc.Logger)

			results := make(importResults, 0, len(users))
			for _, u := range users {
				items, err := doc.GetUserCollection(ctx, u)
				if err != nil {
					return err
				}
				if err := repo.SaveCollection(ctx, u, items); err != nil {
					return errors.Wrapf(err, errors.ErrCodeDatabaseError, "import collection of %s", u)
				}
				cc.Logger.Info("collection imported", logging.UserID(u), logging.Int("items", len(items)))
				results = append(results, ImportResult{Target: "postgres:" + u, Imported: len(items)})
			}
			return PrintResult(cmd, results)
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "owner of a bare item array, or the single user to import")
	return cmd
}

func newImportCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog FILE",
		Short: "Index every fragrance of FILE in OpenSearch, Milvus and Neo4j",
		Long:  "Stores that are not configured are skipped.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			doc, err := LoadCollectionFile(args[0])
			if err != nil {
				return err
			}
			frags := doc.Fragrances()
			if len(frags) == 0 {
				return errors.NewValidation("%s contains no fragrance records", args[0])
			}

			ctx, cancel := cc.operationContext(cmd.Context())
			defer cancel()
			infra, err := cc.Infrastructure(ctx)
			if err != nil {
				return err
			}

			results := importResults{}
			for _, step := range []func(context.Context, *bootstrap.Infrastructure, []*fragrance.Fragrance) (ImportResult, error){
				indexOpenSearch, upsertMilvus, syncNeo4j,
			} {
				res, err := step(ctx, infra, frags)
				if err != nil {
					return err
				}
				results = append(results, res)
			}
			return PrintResult(cmd, results)
		},
	}
}

func indexOpenSearch(ctx context.Context, infra *bootstrap.Infrastructure, frags []*fragrance.Fragrance) (ImportResult, error) {
	res := ImportResult{Target: "opensearch"}
	if infra.OpenSearch == nil {
		res.Skipped = true
		return res, nil
	}
	idx := opensearch.NewIndexer(infra.OpenSearch, opensearch.IndexerConfig{
		Index:         infra.Config.OpenSearch.Index,
		RefreshPolicy: "wait_for",
	}, infra.Logger)
	if err := idx.EnsureIndex(ctx); err != nil {
		return res, err
	}
	bulk, err := idx.IndexFragrances(ctx, frags)
	if err != nil {
		return res, err
	}
	for _, e := range bulk.Errors {
		infra.Logger.Warn("fragrance rejected by index",
			logging.String("fragrance_id", e.DocID),
			logging.String("error_type", e.ErrorType),
			logging.String("reason", e.Reason))
	}
	res.Imported, res.Failed = bulk.Succeeded, bulk.Failed
	return res, nil
}

func upsertMilvus(ctx context.Context, infra *bootstrap.Infrastructure, frags []*fragrance.Fragrance) (ImportResult, error) {
	res := ImportResult{Target: "milvus"}
	store := infra.EmbeddingSource()
	if store == nil {
		res.Skipped = true
		return res, nil
	}
	vectors := make(map[string]fragrance.Embedding, len(frags))
	dim := 0
	for _, f := range frags {
		if !f.HasEmbedding() {
			continue
		}
		if dim == 0 {
			dim = len(f.Embedding)
		}
		if len(f.Embedding) != dim {
			res.Failed++
			infra.Logger.Warn("embedding dimension mismatch",
				logging.String("fragrance_id", f.ID),
				logging.Int("dim", len(f.Embedding)),
				logging.Int("expected", dim))
			continue
		}
		vectors[f.ID] = f.Embedding
	}
	if len(vectors) == 0 {
		res.Skipped = true
		return res, nil
	}

	schema := store.Schema()
	schema.Dim = dim
	if err := milvus.NewCollectionManager(infra.Milvus, milvus.CollectionConfig{}, infra.Logger).EnsureCollection(ctx, schema); err != nil {
		return res, err
	}
	if err := store.UpsertEmbeddings(ctx, vectors); err != nil {
		return res, err
	}
	res.Imported = len(vectors)
	return res, nil
}

func syncNeo4j(ctx context.Context, infra *bootstrap.Infrastructure, frags []*fragrance.Fragrance) (ImportResult, error) {
	res := ImportResult{Target: "neo4j"}
	if infra.Neo4j == nil {
		res.Skipped = true
		return res, nil
	}
	graph := neo4j.NewScentGraph(infra.Neo4j, infra.Logger)
	if err := graph.EnsureSchema(ctx); err != nil {
		return res, err
	}
	n, err := graph.SyncFragrances(ctx, frags)
	if err != nil {
		return res, err
	}
	res.Imported = n
	return res, nil
}
