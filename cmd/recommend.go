package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var recommendRange rangeFlags

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Classify enriched deals and write recommendations back to HubSpot",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := initPipeline(cfg, "recommend")
		if err != nil {
			return err
		}
		r, err := p.Range(recommendRange.start, recommendRange.end)
		if err != nil {
			return err
		}

		res, err := p.Recommend(cmd.Context(), r)
		if err != nil {
			return eris.Wrap(err, "recommend")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Deals:     %d\n", res.Deals)
		fmt.Fprintf(cmd.OutOrStdout(), "Batch:     %s\n", res.JobID)
		fmt.Fprintf(cmd.OutOrStdout(), "Results:   %d\n", res.Results)
		fmt.Fprintf(cmd.OutOrStdout(), "Matched:   %d\n", res.Matched)
		fmt.Fprintf(cmd.OutOrStdout(), "Updated:   %d (skipped %d, failed %d)\n",
			res.Writeback.Updated, res.Writeback.Skipped, res.Writeback.Failed)
		return nil
	},
}

func init() {
	recommendRange.register(recommendCmd)
	rootCmd.AddCommand(recommendCmd)
}
