// Package cmd - recalc command
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/warp/extcare-billing/api"
	"github.com/warp/extcare-billing/billing"
)

var recalcMonth string

// recalcCmd represents the recalc command
var recalcCmd = &cobra.Command{
	Use:   "recalc",
	Short: "Recalculate every saved fee record of a month",
	Long: `Recalculate every fee record saved for a month against the current
reference data (rate cards, holidays, activities) and save the results.

Examples:
  extcare recalc --month 2025-09 --db ./extcare.db`,
	Args: cobra.NoArgs,
	RunE: runRecalc,
}

func init() {
	recalcCmd.Flags().StringVar(&recalcMonth, "month", "", "billing month (YYYY-MM)")
	_ = recalcCmd.MarkFlagRequired("month")
}

func runRecalc(cmd *cobra.Command, args []string) error {
	month, err := api.ParseMonth(recalcMonth)
	if err != nil {
		return err
	}
	policy, err := cfg.Billing.WindowPolicy()
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	engine := billing.NewEngine(st, policy, logger.Named("engine"))
	writer := billing.NewWriter(engine, st, logger.Named("writer"))
	recalc := billing.NewRecalculator(st, writer, logger.Named("recalc"))
	recalc.Concurrency = cfg.Recalc.Concurrency

	result, err := recalc.RecalculateMonth(cmd.Context(), month)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(cmd.OutOrStdout(), result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Month %s: %d recalculated, %d changed, %d failed\n",
		month, result.Recalculated, result.Changed, result.Failed)
	return nil
}
