// Package cmd - save command
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/warp/extcare-billing/api"
	"github.com/warp/extcare-billing/billing"
)

var saveReason string

// saveCmd represents the save command
var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Calculate a fee and save it as a fee record",
	Long: `Calculate one student's monthly fee and upsert the fee record for
(student, month, effective start). Saving again replaces the record.

Examples:
  extcare save -f request.yaml --db ./extcare.db
  extcare save -f request.yaml --reason "Hardship waiver"`,
	Args: cobra.NoArgs,
	RunE: runSave,
}

func init() {
	saveCmd.Flags().StringVarP(&requestFile, "file", "f", "", "YAML request file")
	saveCmd.Flags().StringVar(&scenarioID, "scenario", "", "run against a demo scenario in memory")
	saveCmd.Flags().StringVar(&saveReason, "reason", "", "adjustment reason (overrides the file)")
}

func runSave(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	st, body, err := prepare(ctx, requestFile, scenarioID)
	if err != nil {
		return err
	}
	defer st.Close()

	req, err := body.ToRequest()
	if err != nil {
		return err
	}
	reason := body.AdjustmentReason
	if saveReason != "" {
		reason = saveReason
	}
	policy, err := cfg.Billing.WindowPolicy()
	if err != nil {
		return err
	}

	engine := billing.NewEngine(st, policy, logger.Named("engine"))
	writer := billing.NewWriter(engine, st, logger.Named("writer"))
	rec, err := writer.Save(ctx, req, reason)
	if err != nil {
		return err
	}

	dto := api.ToFeeRecordDTO(*rec)
	if jsonOut {
		return printJSON(cmd.OutOrStdout(), dto)
	}
	return printRecords(cmd.OutOrStdout(), []api.FeeRecordDTO{dto})
}
