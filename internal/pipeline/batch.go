package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/jackzampolin/reflow/internal/config"
	"github.com/jackzampolin/reflow/internal/home"
	"github.com/jackzampolin/reflow/internal/ingest"
	"github.com/jackzampolin/reflow/internal/output"
)

// Batch runs every page found in an input directory through the pool once
// and writes a run summary when the last page lands. Page failures never
// abort the run; cancellation does, after in-flight pages finish.
type Batch struct {
	cfg    *config.Config
	writer *output.Writer
	logger *slog.Logger
	home   *home.Dir // when set, each run summary is mirrored under runs/
}

// NewBatch wires a batch run over the given output writer. home may be nil
// to skip the run summary mirror.
func NewBatch(cfg *config.Config, w *output.Writer, logger *slog.Logger, h *home.Dir) *Batch {
	if logger == nil {
		logger = slog.Default()
	}
	return &Batch{cfg: cfg, writer: w, logger: logger, home: h}
}

// Run discovers the page pairs under inputDir, processes them across the
// worker pool, and writes the summary. The returned summary covers whatever
// completed, even when ctx is canceled mid-run; in that case the error is
// ctx.Err().
func (b *Batch) Run(ctx context.Context, inputDir string) (*output.Summary, error) {
	pages, err := ingest.Discover(inputDir)
	if err != nil {
		return nil, err
	}

	summary := output.NewSummary()
	log := b.logger.With("run_id", summary.RunID)
	log.Info("starting run", "input_dir", inputDir, "output_dir", b.writer.Dir(),
		"pages", len(pages), "workers", b.cfg.Pipeline.Workers)

	var (
		outcomes = make([]PageOutcome, 0, len(pages))
		canceled bool
	)
	if len(pages) == 0 {
		log.Warn("no page input files found", "input_dir", inputDir)
	} else {
		outcomes, canceled = b.processAll(ctx, pages)
	}

	// Page ids drive output file names, so ordering the fold only affects
	// the failure list; keep it deterministic regardless of worker timing.
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].PageID < outcomes[j].PageID })
	for _, out := range outcomes {
		if out.Err != nil {
			summary.AddFailure(out.PageID, out.FailKind, out.Err)
			continue
		}
		summary.AddPage(out.Chunks, out.Records, out.Dropped, out.Conflicts, out.Empty)
	}

	path, err := b.writer.WriteSummary(summary)
	if err != nil {
		return summary, fmt.Errorf("failed to write run summary: %w", err)
	}
	log.Info("run complete",
		"pages", summary.PagesTotal, "succeeded", summary.PagesSucceeded,
		"failed", summary.PagesFailed, "empty", summary.PagesEmpty,
		"chunks", summary.ChunkCount, "dropped_records", summary.DroppedRecords,
		"summary", path)

	b.mirrorSummary(summary, log)

	if canceled {
		log.Warn("run canceled", "processed", len(outcomes), "skipped", len(pages)-len(outcomes))
		return summary, ctx.Err()
	}
	return summary, nil
}

// processAll pushes tasks into the pool and collects one outcome per
// submitted page. Submission and collection interleave so a queue smaller
// than the page count cannot deadlock the run.
func (b *Batch) processAll(ctx context.Context, pages []ingest.PageFiles) ([]PageOutcome, bool) {
	proc := NewProcessor(b.cfg, b.writer, b.logger)
	pool := NewPool(PoolConfig{
		Logger:      b.logger,
		WorkerCount: b.cfg.Pipeline.Workers,
		QueueSize:   b.cfg.Pipeline.QueueSize,
		Handler:     proc.Process,
	})

	poolCtx, stop := context.WithCancel(ctx)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pool.Start(poolCtx)
	}()

	var (
		outcomes = make([]PageOutcome, 0, len(pages))
		next     int
		canceled bool
	)
collect:
	for len(outcomes) < len(pages) {
		for next < len(pages) {
			if err := pool.Submit(NewPageTask(pages[next])); err != nil {
				break // queue full, collect below frees a slot
			}
			next++
		}
		select {
		case out := <-pool.Results():
			outcomes = append(outcomes, out)
		case <-ctx.Done():
			canceled = true
			break collect
		}
	}

	stop()
	wg.Wait()

	// Workers may have finished pages in the window between the
	// cancellation and their shutdown; those outcomes sit in the buffer.
drain:
	for {
		select {
		case out := <-pool.Results():
			outcomes = append(outcomes, out)
		default:
			break drain
		}
	}
	// A cancelled run reports as such even when every page happened to
	// finish before the workers noticed.
	if ctx.Err() != nil {
		canceled = true
	}
	return outcomes, canceled
}

// mirrorSummary keeps a copy of the run summary under the home directory so
// runs remain inspectable after the output directory is consumed. Mirror
// failures are logged, never fatal.
func (b *Batch) mirrorSummary(summary *output.Summary, log *slog.Logger) {
	if b.home == nil {
		return
	}
	if err := b.home.EnsureExists(); err != nil {
		log.Warn("failed to prepare home directory", "error", err)
		return
	}
	path := b.home.RunSummaryPath(summary.RunID)
	if err := output.WriteDocument(path, summary); err != nil {
		log.Warn("failed to mirror run summary", "path", path, "error", err)
	}
}
