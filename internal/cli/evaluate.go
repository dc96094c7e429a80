package cli

import (
	"github.com/spf13/cobra"

	"drift-health-alerts/internal/app"
)

var (
	evaluateBusiness string
	evaluateForce    bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Run one evaluation pass outside the scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.EvaluateOptions{
			BusinessID:  evaluateBusiness,
			ForceNotify: evaluateForce,
		}
		return getApp().Evaluate(cmd.Context(), opts)
	},
}

func init() {
	evaluateCmd.Flags().StringVar(&evaluateBusiness, "business", "", "Evaluate a single business by id")
	evaluateCmd.Flags().BoolVar(&evaluateForce, "force-notify", false, "Notify even when nothing changed (requires --business)")
}
