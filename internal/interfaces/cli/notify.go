package cli

import (
	"github.com/spf13/cobra"

	"github.com/turtacn/ScentIQ-Intelligence/internal/application/intelligence"
)

// NewNotifyCmd renders a smart notification for a trigger.
func NewNotifyCmd() *cobra.Command {
	var (
		trigger string
		values  map[string]string
	)
	cmd := &cobra.Command{
		Use:   "notify USER",
		Short: "Generate a smart notification",
		Long: "Generate a smart notification for --trigger (seasonal_transition, new_high_rating,\n" +
			"unused_fragrance_alert, collection_milestone). --value k=v overrides template values.",
		Args: cobra.ExactArgs(1),
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
			rep := engine.Insights().GenerateSmartNotification(ctx, args[0], intelligence.TriggerType(trigger), values)
			if err := PrintResult(cmd, rep); err != nil {
				return err
			}
			return exitOnFailure(rep)
		},
	}
	cmd.Flags().StringVarP(&trigger, "trigger", "t", "", "notification trigger")
	cmd.Flags().StringToStringVar(&values, "value", nil, "template value override (repeatable, k=v)")
	_ = cmd.MarkFlagRequired("trigger")
	return cmd
}
