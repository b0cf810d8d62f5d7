package main

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	exportRange rangeFlags
	exportDir   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the deal stage-duration CSV export",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := initPipeline(cfg, "export")
		if err != nil {
			return err
		}
		r, err := p.Range(exportRange.start, exportRange.end)
		if err != nil {
			return err
		}

		res, err := p.Export(cmd.Context(), r)
		if err != nil {
			return eris.Wrap(err, "export")
		}

		dir := exportDir
		if dir == "" {
			dir = cfg.Export.OutputDir
		}
		path := filepath.Join(dir, res.Filename)
		if err := os.WriteFile(path, res.Data.Bytes(), 0o644); err != nil {
			return eris.Wrapf(err, "export: write %s", path)
		}

		zap.L().Info("export written", zap.String("path", path), zap.Int("rows", res.Rows))
		return nil
	},
}

func init() {
	exportRange.register(exportCmd)
	exportCmd.Flags().StringVar(&exportDir, "dir", "", "output directory (default from config)")
	rootCmd.AddCommand(exportCmd)
}
