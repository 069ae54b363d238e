package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/ScentIQ-Intelligence/internal/application/intelligence"
	"github.com/turtacn/ScentIQ-Intelligence/pkg/validation"
)

// NewPlanCmd builds a phased plan for growing the collection.
func NewPlanCmd() *cobra.Command {
	var req intelligence.PlanRequest
	cmd := &cobra.Command{
		Use:   "plan USER",
		Short: "Create a strategic growth plan",
		Long: "Create a phased plan that grows the collection to --target items within --budget.\n" +
			"--current overrides the size read from the collection.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if err := validation.Struct(req); err != nil {
				return err
			}
			ctx, cancel := cc.operationContext(cmd.Context())
			defer cancel()

			engine, err := cc.Engine(ctx)
			if err != nil {
				return err
			}
			rep := engine.Optimizer().CreateStrategicPlan(ctx, args[0], req)
			if err := PrintResult(cmd, planView{rep}); err != nil {
				return err
			}
			return exitOnFailure(rep)
		},
	}
	f := cmd.Flags()
	f.IntVar(&req.TargetSize, "target", 0, "target collection size")
	f.Float64Var(&req.Budget, "budget", 0, "total budget")
	f.IntVar(&req.CurrentSize, "current", 0, "current collection size (default: read from the collection)")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

type planView struct {
	*intelligence.StrategicPlanReport
}

func (v planView) report() interface{} { return v.StrategicPlanReport }

func (v planView) TableHeaders() []string {
	return []string{"PHASE", "ADDITIONS", "BUDGET", "MONTHS", "FOCUS"}
}

func (v planView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.Phases))
	for _, p := range v.Phases {
		rows = append(rows, []string{
			p.Name,
			fmt.Sprint(p.Additions),
			fmt.Sprintf("%.2f", p.Budget),
			fmt.Sprint(p.DurationMonths),
			strings.Join(p.Focus, ", "),
		})
	}
	return rows
}
