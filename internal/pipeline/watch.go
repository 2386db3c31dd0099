package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jackzampolin/reflow/internal/config"
	"github.com/jackzampolin/reflow/internal/ingest"
	"github.com/jackzampolin/reflow/internal/output"
)

// Watcher processes pages as their input files land in a directory. Events
// are debounced per page so a pair mid-write is not picked up early, and
// page reads retry because a create event often precedes the final byte.
// A page whose pair never completes stays pending until the missing file
// appears.
type Watcher struct {
	cfg    *config.Config
	writer *output.Writer
	logger *slog.Logger
}

// NewWatcher wires watch mode over the given output writer.
func NewWatcher(cfg *config.Config, w *output.Writer, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{cfg: cfg, writer: w, logger: logger}
}

// Run watches inputDir until ctx is cancelled. Pages already present are
// processed first. Returns nil on a clean shutdown.
func (w *Watcher) Run(ctx context.Context, inputDir string) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(inputDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", inputDir, err)
	}

	proc := NewProcessor(w.cfg, w.writer, w.logger)
	proc.EnableLoadRetries(w.cfg.Watch.RetryAttempts, time.Duration(w.cfg.Watch.RetryDelayMS)*time.Millisecond)
	pool := NewPool(PoolConfig{
		Logger:      w.logger,
		WorkerCount: w.cfg.Pipeline.Workers,
		QueueSize:   w.cfg.Pipeline.QueueSize,
		Handler:     proc.Process,
	})

	poolCtx, stop := context.WithCancel(ctx)
	defer stop()

	var (
		wg        sync.WaitGroup
		processed atomic.Int64
		failed    atomic.Int64
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		pool.Start(poolCtx)
	}()
	go func() {
		defer wg.Done()
		for {
			select {
			case out := <-pool.Results():
				if out.Err != nil {
					failed.Add(1)
				} else {
					processed.Add(1)
				}
			case <-poolCtx.Done():
				return
			}
		}
	}()

	// Pages written before the watch started never produce events.
	pending := make(map[string]time.Time)
	pages, err := ingest.Discover(inputDir)
	if err != nil {
		return err
	}
	for _, p := range pages {
		pending[p.PageID] = time.Time{}
	}
	w.logger.Info("watching for pages", "input_dir", inputDir,
		"output_dir", w.writer.Dir(), "backlog", len(pages))

	debounce := time.Duration(w.cfg.Watch.DebounceMS) * time.Millisecond
	interval := debounce / 2
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			stop()
			wg.Wait()
			w.logger.Info("watch stopped",
				"processed", processed.Load(), "failed", failed.Load(), "pending", len(pending))
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			pageID, ok := ingest.PageIDForFile(filepath.Base(ev.Name))
			if !ok {
				continue
			}
			// Any touch restarts the quiet period for the whole page.
			pending[pageID] = time.Now()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case now := <-ticker.C:
			for pageID, last := range pending {
				if !last.IsZero() && now.Sub(last) < debounce {
					continue
				}
				files := ingest.FilesFor(inputDir, pageID)
				if !pairComplete(files) {
					w.logger.Debug("waiting for page pair", "page_id", pageID)
					continue
				}
				if err := pool.Submit(NewPageTask(files)); err != nil {
					// Queue full. Clear the quiet period so the next tick
					// retries immediately.
					pending[pageID] = time.Time{}
					continue
				}
				delete(pending, pageID)
			}
		}
	}
}

// pairComplete reports whether both input files of a page exist.
func pairComplete(files ingest.PageFiles) bool {
	if _, err := os.Stat(files.RecordsPath); err != nil {
		return false
	}
	if _, err := os.Stat(files.MetadataPath); err != nil {
		return false
	}
	return true
}
