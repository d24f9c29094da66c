// Package cmd - fees command
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/warp/extcare-billing/api"
	"github.com/warp/extcare-billing/billing"
)

// feesCmd represents the fees command
var feesCmd = &cobra.Command{
	Use:   "fees <student-id>",
	Short: "List a student's saved fee records",
	Args:  cobra.ExactArgs(1),
	RunE:  runFees,
}

func runFees(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	recs, err := st.ListFeeRecords(cmd.Context(), billing.StudentID(args[0]))
	if err != nil {
		return err
	}
	dtos := make([]api.FeeRecordDTO, 0, len(recs))
	for _, rec := range recs {
		dtos = append(dtos, api.ToFeeRecordDTO(rec))
	}
	return printRecords(cmd.OutOrStdout(), dtos)
}
