package cli

import (
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/ScentIQ-Intelligence/internal/application/intelligence"
	"github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

// NewHealthCmd reports the health of a user's collection.
func NewHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health USER",
		Short: "Score collection health and list its issues",
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
			rep := engine.Insights().AnalyzeCollectionHealth(ctx, args[0])
			if err := PrintResult(cmd, healthView{rep}); err != nil {
				return err
			}
			return exitOnFailure(rep)
		},
	}
}

type healthView struct {
	*intelligence.HealthReport
}

func (v healthView) report() interface{} { return v.HealthReport }

func (v healthView) TableHeaders() []string {
	return []string{"FRAGRANCE", "ISSUE", "SEVERITY", "DETAIL"}
}

func (v healthView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.Issues))
	for _, is := range v.Issues {
		rows = append(rows, []string{is.FragranceID, is.IssueType, is.Severity, is.Description})
	}
	return rows
}

// ─────────────────────────────────────────────────────────────────────────────
// ping
// ─────────────────────────────────────────────────────────────────────────────

// PingResult is the probe outcome of one store.
type PingResult struct {
	Component string `json:"component"`
	Status    string `json:"status"`
	Latency   string `json:"latency"`
	Error     string `json:"error,omitempty"`
}

type pingResults []PingResult

func (p pingResults) TableHeaders() []string {
	return []string{"COMPONENT", "STATUS", "LATENCY", "ERROR"}
}

func (p pingResults) TableRows() [][]string {
	rows := make([][]string, 0, len(p))
	for _, r := range p {
		rows = append(rows, []string{r.Component, r.Status, r.Latency, r.Error})
	}
	return rows
}

// NewPingCmd probes every configured store.
func NewPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check connectivity to the configured stores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := cc.operationContext(cmd.Context())
			defer cancel()

			infra, err := cc.Infrastructure(ctx)
			if err != nil {
				return err
			}
			checkers := infra.HealthCheckers()
			results := make(pingResults, len(checkers))

			var g errgroup.Group
			for i, c := range checkers {
				i, c := i, c
				g.Go(func() error {
					start := time.Now()
					err := c.Check(ctx)
					results[i] = PingResult{Component: c.Name(), Status: "healthy", Latency: time.Since(start).Truncate(time.Microsecond).String()}
					if err != nil {
						results[i].Status = "unhealthy"
						results[i].Error = err.Error()
					}
					return nil
				})
			}
			_ = g.Wait()

			if err := PrintResult(cmd, results); err != nil {
				return err
			}
			for _, r := range results {
				if r.Status != "healthy" {
					return errors.New(errors.ErrCodeServiceUnavailable, r.Component+" is unhealthy")
				}
			}
			return nil
		},
	}
}
