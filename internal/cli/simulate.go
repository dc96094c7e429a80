package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"drift-health-alerts/internal/app"
)

var (
	simulateBaseline   int64
	simulateCurrent    int64
	simulateBaseRefund float64
	simulateCurRefund  float64
	simulateMonthlyRev int64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-drift",
	Short: "模拟一次收入漂移并触发告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateBaseline <= 0 || simulateCurrent < 0 {
			return errors.New("--baseline 必须大于 0，--current 不能为负")
		}

		opts := app.SimulateOptions{
			BaselineRevenueCents: simulateBaseline,
			CurrentRevenueCents:  simulateCurrent,
			BaselineRefundRate:   simulateBaseRefund,
			CurrentRefundRate:    simulateCurRefund,
			MonthlyRevenueCents:  simulateMonthlyRev,
		}
		return getApp().SimulateDrift(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().Int64Var(&simulateBaseline, "baseline", 0, "基线净收入（分，14 天等值）")
	simulateCmd.Flags().Int64Var(&simulateCurrent, "current", 0, "当前净收入（分，14 天）")
	simulateCmd.Flags().Float64Var(&simulateBaseRefund, "baseline-refund", 0, "基线退款率 (0..1)")
	simulateCmd.Flags().Float64Var(&simulateCurRefund, "current-refund", 0, "当前退款率 (0..1)")
	simulateCmd.Flags().Int64Var(&simulateMonthlyRev, "monthly-revenue", 0, "月收入（分），用于影响估算")
}
