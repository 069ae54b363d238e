package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/ScentIQ-Intelligence/internal/application/intelligence"
	"github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

// NewAnalyzeCmd runs the full collection analysis for one user.
func NewAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze USER",
		Short: "Run the full collection analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := cc.operationContext(cmd.Context())
			defer cancel()

			engine, err := cc.Engine(ctx)
			if err != nil {
				return err
			}
			rep := engine.AnalyzeCollection(ctx, args[0])
			if err := PrintResult(cmd, analysisView{rep}); err != nil {
				return err
			}
			return exitOnFailure(rep)
		},
	}
}

// analysisView renders the headline numbers of an analysis as a table.
type analysisView struct {
	*intelligence.CollectionAnalysis
}

func (v analysisView) report() interface{} { return v.CollectionAnalysis }

func (v analysisView) TableHeaders() []string { return []string{"METRIC", "VALUE"} }

func (v analysisView) TableRows() [][]string {
	a := v.CollectionAnalysis
	rows := [][]string{
		{"user", a.UserID},
		{"status", outcomeLabel(a.Outcome)},
		{"items", fmt.Sprint(a.PerformanceMetrics.CollectionSize)},
		{"cache_used", fmt.Sprint(a.CacheUsed)},
		{"health_score", fmt.Sprintf("%.2f", a.Insights.Health.HealthScore)},
		{"diversity", a.GapAnalysis.Diversity.DiversityLevel},
		{"archetype", a.PersonalityProfile.Archetype},
		{"experience", a.PersonalityProfile.Experience.Level},
	}
	for _, fs := range a.Insights.Patterns.FamilyDistribution {
		rows = append(rows, []string{"family:" + fs.Family, fmt.Sprintf("%.0f%%", fs.Percentage*100)})
	}
	return rows
}

func outcomeLabel(o intelligence.Outcome) string {
	switch {
	case o.Failure != nil:
		return string(o.Failure.Kind)
	case o.Empty:
		return "empty"
	default:
		return "success"
	}
}

// NewRecommendCmd proposes catalog additions.
func NewRecommendCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recommend USER",
		Short: "Recommend catalog fragrances that fill the collection's gaps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := cc.operationContext(cmd.Context())
			defer cancel()

			engine, err := cc.Engine(ctx)
			if err != nil {
				return err
			}
			rep := engine.RecommendAdditions(ctx, args[0], limit)
			if err := PrintResult(cmd, recommendationView{rep}); err != nil {
				return err
			}
			return exitOnFailure(rep)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", intelligence.DefaultRecommendationLimit, "maximum recommendations")
	return cmd
}

type recommendationView struct {
	*intelligence.RecommendationReport
}

func (v recommendationView) report() interface{} { return v.RecommendationReport }

func (v recommendationView) TableHeaders() []string {
	return []string{"#", "FRAGRANCE", "BRAND", "FAMILY", "SIMILARITY"}
}

func (v recommendationView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.Recommendations))
	for i, r := range v.Recommendations {
		name, brand := "", ""
		if r.Fragrance != nil {
			name, brand = r.Fragrance.Name, r.Fragrance.Brand
		}
		rows = append(rows, []string{fmt.Sprint(i + 1), name, brand, r.TargetFamily, fmt.Sprintf("%.3f", r.Similarity)})
	}
	return rows
}

// NewOperationCmd exposes the operations under group. With a VIEW argument
// it runs group.VIEW; without one it runs every operation of the group.
func NewOperationCmd(group, short string) *cobra.Command {
	var (
		limit  int
		budget float64
	)
	cmd := &cobra.Command{
		Use:   group + " USER [VIEW]",
		Short: short,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			names, err := operationsFor(group, args[1:])
			if err != nil {
				return err
			}
			ctx, cancel := cc.operationContext(cmd.Context())
			defer cancel()

			engine, err := cc.Engine(ctx)
			if err != nil {
				return err
			}
			params := intelligence.OperationParams{Limit: limit, Budget: budget}

			if len(names) == 1 {
				rep, err := intelligence.RunOperation(ctx, engine, names[0], args[0], params)
				if err != nil {
					return err
				}
				if err := PrintResult(cmd, rep); err != nil {
					return err
				}
				return exitOnFailure(rep)
			}

			results := operationResults{}
			var firstErr error
			for _, name := range names {
				rep, err := intelligence.RunOperation(ctx, engine, name, args[0], params)
				if err != nil {
					return err
				}
				results[name] = rep
				if firstErr == nil {
					firstErr = exitOnFailure(rep)
				}
			}
			if err := PrintResult(cmd, results); err != nil {
				return err
			}
			return firstErr
		},
	}
	if group == "optimization" {
		cmd.Flags().Float64Var(&budget, "budget", 0, "budget for the budget view")
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "result limit where the view supports one")
	return cmd
}

// operationsFor resolves the registered operation names of group.
func operationsFor(group string, view []string) ([]string, error) {
	if len(view) == 1 {
		name := group + "." + strings.ToLower(view[0])
		for _, n := range intelligence.OperationNames() {
			if n == name {
				return []string{n}, nil
			}
		}
		return nil, errors.NewValidation("unknown %s view %q", group, view[0])
	}
	var out []string
	for _, n := range intelligence.OperationNames() {
		if n == group || strings.HasPrefix(n, group+".") {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nil, errors.NewValidation("unknown operation group %q", group)
	}
	return out, nil
}

// operationResults maps operation names to their reports.
type operationResults map[string]intelligence.Reporter

func (r operationResults) TableHeaders() []string { return []string{"OPERATION", "STATUS"} }

func (r operationResults) TableRows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, name := range intelligence.OperationNames() {
		if rep, ok := r[name]; ok {
			rows = append(rows, []string{name, outcomeLabel(rep.Status())})
		}
	}
	return rows
}
