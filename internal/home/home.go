package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the reflow home directory.
	DefaultDirName = ".reflow"

	// RunsDirName is the subdirectory for run summaries.
	RunsDirName = "runs"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the reflow home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.reflow).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// RunsPath returns the path to the run summaries directory.
func (d *Dir) RunsPath() string {
	return filepath.Join(d.path, RunsDirName)
}

// RunSummaryPath returns the path for one run's summary copy.
func (d *Dir) RunSummaryPath(runID string) string {
	return filepath.Join(d.RunsPath(), fmt.Sprintf("run_%s.json", runID))
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	// Creating the runs directory also creates the parent.
	if err := os.MkdirAll(d.RunsPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create runs directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
