package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/reflow/internal/output"
	"github.com/jackzampolin/reflow/internal/pipeline"
)

var (
	processInputDir     string
	processOutputDir    string
	processWorkers      int
	processIntermediate bool
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process every page in a directory",
	Long: `Process every page found in --input_dir and write one chunk document
per page to --output_dir, plus a run summary.

A page is the file pair <page>_records.json and <page>_quadrants.json.
Pages fail independently; the run continues past a bad page and the
summary lists every failure. The command exits non-zero if any page
failed.

Examples:
  reflow process --input_dir ./scans --output_dir ./chunks
  reflow process --input_dir ./scans --output_dir ./chunks --workers 8
  reflow process --input_dir ./scans --output_dir ./chunks --write-intermediate`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("workers") {
			cfg.Pipeline.Workers = processWorkers
		}
		if cmd.Flags().Changed("write-intermediate") {
			cfg.Pipeline.WriteIntermediate = processIntermediate
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger := newLogger(cfg)

		h, err := getHome()
		if err != nil {
			return err
		}
		w, err := output.NewWriter(processOutputDir)
		if err != nil {
			return err
		}

		summary, err := pipeline.NewBatch(cfg, w, logger, h).Run(cmd.Context(), processInputDir)
		if err != nil {
			return err
		}
		if summary.PagesFailed > 0 {
			return fmt.Errorf("%d of %d pages failed", summary.PagesFailed, summary.PagesTotal)
		}
		return nil
	},
}

func init() {
	processCmd.Flags().StringVar(&processInputDir, "input_dir", "", "directory holding page record and quadrant files")
	processCmd.Flags().StringVar(&processOutputDir, "output_dir", "", "directory chunk documents are written to")
	processCmd.Flags().IntVar(&processWorkers, "workers", 0, "concurrent page workers (overrides config)")
	processCmd.Flags().BoolVar(&processIntermediate, "write-intermediate", false, "write per-stage artifacts next to the output")
	processCmd.MarkFlagRequired("input_dir")
	processCmd.MarkFlagRequired("output_dir")

	rootCmd.AddCommand(processCmd)
}
