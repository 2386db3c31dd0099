package config

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
// Defaults are registered per leaf key so a config file that sets one key
// in a section does not shadow the section's other defaults.
func (cm *Manager) initViper(cfgFile string) error {
	defaults := DefaultConfig()
	viper.SetDefault("pipeline.workers", defaults.Pipeline.Workers)
	viper.SetDefault("pipeline.queue_size", defaults.Pipeline.QueueSize)
	viper.SetDefault("pipeline.write_intermediate", defaults.Pipeline.WriteIntermediate)
	viper.SetDefault("reflow.row_tolerance_pct", defaults.Reflow.RowTolerancePct)
	viper.SetDefault("reflow.seam_iou_threshold", defaults.Reflow.SeamIoUThreshold)
	viper.SetDefault("reflow.seam_text_similarity_threshold", defaults.Reflow.SeamTextSimilarityThreshold)
	viper.SetDefault("reflow.min_confidence", defaults.Reflow.MinConfidence)
	viper.SetDefault("reflow.column_gap_factor", defaults.Reflow.ColumnGapFactor)
	viper.SetDefault("reflow.stack_align_tolerance", defaults.Reflow.StackAlignTolerance)
	viper.SetDefault("reflow.stack_gap_tolerance", defaults.Reflow.StackGapTolerance)
	viper.SetDefault("reflow.merge_gap_char_factor", defaults.Reflow.MergeGapCharFactor)
	viper.SetDefault("reflow.adaptive_thresholds", defaults.Reflow.AdaptiveThresholds)
	viper.SetDefault("chunk.char_budget", defaults.Chunk.CharBudget)
	viper.SetDefault("chunk.header_max_chars", defaults.Chunk.HeaderMaxChars)
	viper.SetDefault("coverage.enabled", defaults.Coverage.Enabled)
	viper.SetDefault("coverage.fuzzy_threshold", defaults.Coverage.FuzzyThreshold)
	viper.SetDefault("coverage.word_coverage_threshold", defaults.Coverage.WordCoverageThreshold)
	viper.SetDefault("coverage.ngram_threshold", defaults.Coverage.NGramThreshold)
	viper.SetDefault("coverage.ngram_size", defaults.Coverage.NGramSize)
	viper.SetDefault("watch.debounce_ms", defaults.Watch.DebounceMS)
	viper.SetDefault("watch.retry_attempts", defaults.Watch.RetryAttempts)
	viper.SetDefault("watch.retry_delay_ms", defaults.Watch.RetryDelayMS)
	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("log.format", defaults.Log.Format)

	// Environment variables with REFLOW_ prefix
	viper.SetEnvPrefix("REFLOW")
	viper.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.reflow")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	viper.WatchConfig()
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Reflow configuration
# Geometric thresholds are in normalized page units: both page dimensions
# are scaled to 100 before any threshold applies.

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
