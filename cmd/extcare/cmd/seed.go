// Package cmd - seed command
package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/warp/extcare-billing/api"
)

var listScenarios bool

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Reset the store and load a demo scenario",
	Long: `Reset the configured store and load one of the demo scenarios.
The store is wiped first, so never point this at production data.

Examples:
  extcare seed --list
  extcare seed --scenario holiday-proration --db ./demo.db`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&scenarioID, "scenario", "", "scenario to load")
	seedCmd.Flags().BoolVar(&listScenarios, "list", false, "list scenarios and exit")
}

func runSeed(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if listScenarios {
		if jsonOut {
			return printJSON(out, api.Scenarios())
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tEXPECTED\tDESCRIPTION")
		for _, sc := range api.Scenarios() {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", sc.ID, sc.Expected, sc.Description)
		}
		return tw.Flush()
	}

	if scenarioID == "" {
		return fmt.Errorf("--scenario is required (see --list)")
	}
	if cfg.Database.Driver == "memory" {
		return fmt.Errorf("seeding the memory store has no lasting effect; use --db or calc --scenario")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	sc, err := api.LoadScenario(cmd.Context(), st, scenarioID)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(out, sc)
	}
	fmt.Fprintf(out, "Loaded %s into %s (expected fee %s)\n", sc.ID, cfg.Database.Path, sc.Expected)
	return nil
}
