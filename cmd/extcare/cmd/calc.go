// Package cmd - calc command
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/warp/extcare-billing/api"
	"github.com/warp/extcare-billing/billing"
)

var (
	requestFile string
	scenarioID  string
)

// calcCmd represents the calc command
var calcCmd = &cobra.Command{
	Use:   "calc",
	Short: "Calculate a fee without saving it",
	Long: `Calculate one student's monthly fee and print the breakdown.

The request file is YAML with the same fields as POST /api/billing/calculate:

  student_id: student-ava
  organization_id: demo-school
  billing_month: 2025-09
  requested_dropoff: "07:30"
  requested_pickup: "15:30"
  weekdays: [mon, tue, wed, thu, fri]
  transport_mode: parent

Examples:
  extcare calc -f request.yaml --db ./extcare.db
  extcare calc --scenario activity-overlap --json`,
	Args: cobra.NoArgs,
	RunE: runCalc,
}

func init() {
	calcCmd.Flags().StringVarP(&requestFile, "file", "f", "", "YAML request file")
	calcCmd.Flags().StringVar(&scenarioID, "scenario", "", "run against a demo scenario in memory")
}

func runCalc(cmd *cobra.Command, args []string) error {
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
	policy, err := cfg.Billing.WindowPolicy()
	if err != nil {
		return err
	}

	engine := billing.NewEngine(st, policy, logger.Named("engine"))
	b, err := engine.Calculate(ctx, req)
	if err != nil {
		return err
	}
	return printBreakdown(cmd.OutOrStdout(), api.ToBreakdownDTO(*b))
}
