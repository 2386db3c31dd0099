package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/reflow/internal/config"
	"github.com/jackzampolin/reflow/internal/home"
	"github.com/jackzampolin/reflow/version"
)

var (
	cfgFile string
	homeDir string
)

var rootCmd = &cobra.Command{
	Use:   "reflow",
	Short: "Reading-order reconstruction for quadrant-split OCR output",
	Long: `Reflow reassembles OCR text extracted from quadrant-split page scans
into reading-ordered, retrieval-sized chunks.

Each page goes through:
  - Quadrant merge into page space, deduplicating seam overlaps
  - Coordinate normalization to a 100x100 page-percentage space
  - Fragment merging and row bucketing
  - Column detection with column-major reading order
  - Chunk assembly under a character budget, headers kept with their bodies`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.reflow/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "reflow home directory (default: ~/.reflow)",
	)

	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads and validates configuration for a command invocation.
func loadConfig() (*config.Config, error) {
	mgr, err := config.NewManager(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg := mgr.Get()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// getHome resolves the home directory from the persistent flag.
func getHome() (*home.Dir, error) {
	return home.New(homeDir)
}

// newLogger builds the process logger from the log section.
func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: logLevel(cfg.Log.Level)}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func logLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
