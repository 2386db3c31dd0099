package config

import (
	"fmt"

	"github.com/jackzampolin/reflow/internal/chunk"
	"github.com/jackzampolin/reflow/internal/coverage"
	"github.com/jackzampolin/reflow/internal/reflow"
)

// Config holds reflow configuration.
// Stored at: ~/.reflow/config.yaml
type Config struct {
	Pipeline PipelineCfg `mapstructure:"pipeline" yaml:"pipeline"`
	Reflow   ReflowCfg   `mapstructure:"reflow" yaml:"reflow"`
	Chunk    ChunkCfg    `mapstructure:"chunk" yaml:"chunk"`
	Coverage CoverageCfg `mapstructure:"coverage" yaml:"coverage"`
	Watch    WatchCfg    `mapstructure:"watch" yaml:"watch"`
	Log      LogCfg      `mapstructure:"log" yaml:"log"`
}

// PipelineCfg bounds batch execution.
type PipelineCfg struct {
	Workers           int  `mapstructure:"workers" yaml:"workers"`                       // concurrent page workers
	QueueSize         int  `mapstructure:"queue_size" yaml:"queue_size"`                 // pending page buffer
	WriteIntermediate bool `mapstructure:"write_intermediate" yaml:"write_intermediate"` // dump per-stage artifacts
}

// ReflowCfg holds the per-page transform thresholds. Geometric values are
// in normalized page units (width and height scaled to 100).
type ReflowCfg struct {
	RowTolerancePct             float64 `mapstructure:"row_tolerance_pct" yaml:"row_tolerance_pct"`                         // row bucket tolerance
	SeamIoUThreshold            float64 `mapstructure:"seam_iou_threshold" yaml:"seam_iou_threshold"`                       // quadrant dedup overlap
	SeamTextSimilarityThreshold float64 `mapstructure:"seam_text_similarity_threshold" yaml:"seam_text_similarity_threshold"` // quadrant dedup text match
	MinConfidence               float64 `mapstructure:"min_confidence" yaml:"min_confidence"`                               // OCR confidence floor
	ColumnGapFactor             float64 `mapstructure:"column_gap_factor" yaml:"column_gap_factor"`                         // gutter = factor * median box width
	StackAlignTolerance         float64 `mapstructure:"stack_align_tolerance" yaml:"stack_align_tolerance"`                 // edge alignment for stacking repair
	StackGapTolerance           float64 `mapstructure:"stack_gap_tolerance" yaml:"stack_gap_tolerance"`                     // vertical gap for stacking repair
	MergeGapCharFactor          float64 `mapstructure:"merge_gap_char_factor" yaml:"merge_gap_char_factor"`                 // fragment join distance in char widths
	AdaptiveThresholds          bool    `mapstructure:"adaptive_thresholds" yaml:"adaptive_thresholds"`                     // derive limits from page statistics
}

// ChunkCfg bounds chunk assembly.
type ChunkCfg struct {
	CharBudget     int `mapstructure:"char_budget" yaml:"char_budget"`           // soft chunk size in runes
	HeaderMaxChars int `mapstructure:"header_max_chars" yaml:"header_max_chars"` // max heading length
}

// CoverageCfg holds the verification thresholds for matching source text
// back into emitted chunks. When Enabled, process runs the analysis after
// every page and logs anything that went missing.
type CoverageCfg struct {
	Enabled               bool    `mapstructure:"enabled" yaml:"enabled"`
	FuzzyThreshold        float64 `mapstructure:"fuzzy_threshold" yaml:"fuzzy_threshold"`
	WordCoverageThreshold float64 `mapstructure:"word_coverage_threshold" yaml:"word_coverage_threshold"`
	NGramThreshold        float64 `mapstructure:"ngram_threshold" yaml:"ngram_threshold"`
	NGramSize             int     `mapstructure:"ngram_size" yaml:"ngram_size"`
}

// WatchCfg tunes watch mode.
type WatchCfg struct {
	DebounceMS    int `mapstructure:"debounce_ms" yaml:"debounce_ms"`       // quiet period before processing
	RetryAttempts int `mapstructure:"retry_attempts" yaml:"retry_attempts"` // reads of a file still being written
	RetryDelayMS  int `mapstructure:"retry_delay_ms" yaml:"retry_delay_ms"`
}

// LogCfg selects log verbosity and output encoding.
type LogCfg struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // text or json
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Pipeline: PipelineCfg{
			Workers:   4,
			QueueSize: 64,
		},
		Reflow: ReflowCfg{
			RowTolerancePct:             5,
			SeamIoUThreshold:            0.5,
			SeamTextSimilarityThreshold: 0.8,
			MinConfidence:               0.3,
			ColumnGapFactor:             0.15,
			StackAlignTolerance:         3,
			StackGapTolerance:           3,
			MergeGapCharFactor:          3,
			AdaptiveThresholds:          true,
		},
		Chunk: ChunkCfg{
			CharBudget:     2000,
			HeaderMaxChars: 80,
		},
		Coverage: CoverageCfg{
			FuzzyThreshold:        0.90,
			WordCoverageThreshold: 0.70,
			NGramThreshold:        0.65,
			NGramSize:             5,
		},
		Watch: WatchCfg{
			DebounceMS:    500,
			RetryAttempts: 5,
			RetryDelayMS:  200,
		},
		Log: LogCfg{
			Level:  "info",
			Format: "text",
		},
	}
}

// ToReflow converts the section into the pipeline's threshold set.
func (r ReflowCfg) ToReflow() reflow.Config {
	return reflow.Config{
		RowTolerancePct:             r.RowTolerancePct,
		SeamIoUThreshold:            r.SeamIoUThreshold,
		SeamTextSimilarityThreshold: r.SeamTextSimilarityThreshold,
		MinConfidence:               r.MinConfidence,
		ColumnGapFactor:             r.ColumnGapFactor,
		StackAlignTolerance:         r.StackAlignTolerance,
		StackGapTolerance:           r.StackGapTolerance,
		MergeGapCharFactor:          r.MergeGapCharFactor,
		AdaptiveThresholds:          r.AdaptiveThresholds,
	}
}

// ToChunk converts the section into the builder's limits.
func (c ChunkCfg) ToChunk() chunk.Config {
	return chunk.Config{
		CharBudget:     c.CharBudget,
		HeaderMaxChars: c.HeaderMaxChars,
	}
}

// ToCoverage converts the section into the analyzer's thresholds.
func (c CoverageCfg) ToCoverage() coverage.Config {
	return coverage.Config{
		FuzzyThreshold:        c.FuzzyThreshold,
		WordCoverageThreshold: c.WordCoverageThreshold,
		NGramThreshold:        c.NGramThreshold,
		NGramSize:             c.NGramSize,
	}
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be at least 1, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.QueueSize < 1 {
		return fmt.Errorf("pipeline.queue_size must be at least 1, got %d", c.Pipeline.QueueSize)
	}
	if c.Reflow.RowTolerancePct <= 0 {
		return fmt.Errorf("reflow.row_tolerance_pct must be positive, got %g", c.Reflow.RowTolerancePct)
	}
	if t := c.Reflow.SeamIoUThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("reflow.seam_iou_threshold must be in (0, 1], got %g", t)
	}
	if t := c.Reflow.SeamTextSimilarityThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("reflow.seam_text_similarity_threshold must be in (0, 1], got %g", t)
	}
	if t := c.Reflow.MinConfidence; t < 0 || t > 1 {
		return fmt.Errorf("reflow.min_confidence must be in [0, 1], got %g", t)
	}
	if c.Reflow.ColumnGapFactor <= 0 {
		return fmt.Errorf("reflow.column_gap_factor must be positive, got %g", c.Reflow.ColumnGapFactor)
	}
	if c.Chunk.CharBudget < 1 {
		return fmt.Errorf("chunk.char_budget must be at least 1, got %d", c.Chunk.CharBudget)
	}
	if c.Chunk.HeaderMaxChars < 1 {
		return fmt.Errorf("chunk.header_max_chars must be at least 1, got %d", c.Chunk.HeaderMaxChars)
	}
	if c.Coverage.NGramSize < 1 {
		return fmt.Errorf("coverage.ngram_size must be at least 1, got %d", c.Coverage.NGramSize)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}
