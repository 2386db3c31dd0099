package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/reflow/internal/output"
	"github.com/jackzampolin/reflow/internal/pipeline"
)

var (
	watchInputDir  string
	watchOutputDir string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Process pages as they appear in a directory",
	Long: `Watch --input_dir and process each page as soon as its record and
quadrant files have both landed and stopped changing.

Pages already present when the watch starts are processed first. File
events are debounced (watch.debounce_ms) and reads retry
(watch.retry_attempts) so a file still being written is not picked up
early. Runs until interrupted.

Example:
  reflow watch --input_dir ./scans --output_dir ./chunks`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		w, err := output.NewWriter(watchOutputDir)
		if err != nil {
			return err
		}

		return pipeline.NewWatcher(cfg, w, logger).Run(cmd.Context(), watchInputDir)
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchInputDir, "input_dir", "", "directory to watch for page files")
	watchCmd.Flags().StringVar(&watchOutputDir, "output_dir", "", "directory chunk documents are written to")
	watchCmd.MarkFlagRequired("input_dir")
	watchCmd.MarkFlagRequired("output_dir")

	rootCmd.AddCommand(watchCmd)
}
