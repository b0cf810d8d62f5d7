package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	dealsRange rangeFlags
	dealsOut   string
)

var dealsCmd = &cobra.Command{
	Use:   "deals",
	Short: "Fetch and enrich deals, printing them as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := initPipeline(cfg, "deals")
		if err != nil {
			return err
		}
		r, err := p.Range(dealsRange.start, dealsRange.end)
		if err != nil {
			return err
		}

		ds, _, err := p.FetchDeals(cmd.Context(), r)
		if err != nil {
			return eris.Wrap(err, "deals")
		}

		var w io.Writer = cmd.OutOrStdout()
		if dealsOut != "" {
			f, err := os.Create(dealsOut)
			if err != nil {
				return eris.Wrap(err, "deals: create output")
			}
			defer f.Close() //nolint:errcheck
			w = f
		}

		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(ds); err != nil {
			return eris.Wrap(err, "deals: write output")
		}
		zap.L().Info("deals written", zap.Int("count", len(ds)), zap.String("range", r.String()))
		return nil
	},
}

func init() {
	dealsRange.register(dealsCmd)
	dealsCmd.Flags().StringVarP(&dealsOut, "out", "o", "", "write JSON to this file instead of stdout")
	rootCmd.AddCommand(dealsCmd)
}
