package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/jackzampolin/reflow/internal/chunk"
	"github.com/jackzampolin/reflow/internal/config"
	"github.com/jackzampolin/reflow/internal/coverage"
	"github.com/jackzampolin/reflow/internal/ingest"
	"github.com/jackzampolin/reflow/internal/output"
	"github.com/jackzampolin/reflow/internal/reflow"
)

// PageOutcome reports one processed page back to the orchestrator.
type PageOutcome struct {
	TaskID    string
	PageID    string
	Path      string // written page document
	Chunks    int
	Records   int
	Dropped   int
	Conflicts int
	Empty     bool
	FailKind  string // one of the output.FailKind values when Err is set
	Err       error
	Duration  time.Duration
}

// Processor turns one page's input files into a chunk document on disk.
// A single Processor is shared by all pool workers; it holds no per-page
// state.
type Processor struct {
	cfg    *config.Config
	writer *output.Writer
	logger *slog.Logger

	loadAttempts  uint
	loadRetryWait time.Duration
}

// NewProcessor builds the page handler shared by batch and watch mode.
func NewProcessor(cfg *config.Config, w *output.Writer, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		cfg:          cfg,
		writer:       w,
		logger:       logger,
		loadAttempts: 1,
	}
}

// EnableLoadRetries makes page reads retry with backoff. Watch mode turns
// this on because a file's create event often lands before its writer has
// finished.
func (p *Processor) EnableLoadRetries(attempts int, delay time.Duration) {
	if attempts > 1 {
		p.loadAttempts = uint(attempts)
		p.loadRetryWait = delay
	}
}

// Process implements Handler: ingest, transform, chunk, write.
func (p *Processor) Process(ctx context.Context, task PageTask) (out PageOutcome) {
	started := time.Now()
	defer func() { out.Duration = time.Since(started) }()

	out = PageOutcome{TaskID: task.ID, PageID: task.Files.PageID}
	log := p.logger.With("task_id", task.ID, "page_id", task.Files.PageID)

	in, report, err := p.loadPage(ctx, task.Files)
	if err != nil {
		log.Error("page ingest failed", "error", err)
		out.FailKind = output.FailKindIngest
		out.Err = err
		return out
	}
	out.Records = report.RecordCount
	out.Dropped = len(report.Dropped)
	for _, d := range report.Dropped {
		log.Warn("dropped malformed record", "index", d.Index, "reason", d.Reason)
	}

	var tracer reflow.Tracer
	if p.cfg.Pipeline.WriteIntermediate {
		tracer = func(stage string, payload any) {
			if werr := p.writer.WriteIntermediate(out.PageID, stage, payload); werr != nil {
				log.Warn("failed to write stage artifact", "stage", stage, "error", werr)
			}
		}
	}

	res, err := reflow.ReflowTraced(*in, p.cfg.Reflow.ToReflow(), tracer)
	if err != nil {
		kind := output.FailKindReflow
		if errors.Is(err, reflow.ErrInvalidDimension) {
			kind = output.FailKindInvalidDimension
		}
		log.Error("page transform failed", "error", err)
		out.FailKind = kind
		out.Err = err
		return out
	}
	out.Conflicts = len(res.Conflicts)
	out.Dropped += res.DroppedLowConfidence + res.DroppedEmptyText + res.DroppedUnknownQuadrant
	for _, c := range res.Conflicts {
		log.Warn("seam conflict retained",
			"quadrant_a", c.QuadrantA, "quadrant_b", c.QuadrantB,
			"iou", c.IoU, "similarity", c.Similarity)
	}

	chunks := chunk.Build(out.PageID, res.Boxes, p.cfg.Chunk.ToChunk())
	out.Chunks = len(chunks)
	out.Empty = res.Empty()

	if p.cfg.Coverage.Enabled {
		rep := coverage.Analyze(out.PageID, res.Boxes, chunks, p.cfg.Coverage.ToCoverage())
		for _, m := range rep.Missing {
			log.Warn("bucket text missing from chunks",
				"bucket_id", m.BucketID, "column_id", m.ColumnID,
				"confidence_missing", m.ConfidenceMissing, "text", m.Text)
		}
		if rep.Coverage < 1 {
			log.Warn("incomplete coverage", "coverage", rep.Coverage, "matched", rep.Matched, "segments", rep.Segments)
		}
	}

	path, err := p.writer.WritePage(output.NewPageResult(res, chunks, len(report.Dropped)))
	if err != nil {
		log.Error("failed to write page document", "error", err)
		out.FailKind = output.FailKindWrite
		out.Err = err
		return out
	}
	out.Path = path

	if out.Empty {
		log.Info("page empty", "records", out.Records, "dropped", out.Dropped)
	} else {
		log.Info("page processed",
			"chunks", out.Chunks, "records", out.Records, "dropped", out.Dropped,
			"conflicts", out.Conflicts, "duration", time.Since(started))
	}
	return out
}

// loadPage reads the page input, retrying when configured for files that may
// still be mid-write.
func (p *Processor) loadPage(ctx context.Context, files ingest.PageFiles) (*reflow.PageInput, *ingest.LoadReport, error) {
	if p.loadAttempts <= 1 {
		return ingest.LoadPage(files)
	}

	var (
		in  *reflow.PageInput
		rep *ingest.LoadReport
	)
	err := retry.Do(
		func() error {
			var lerr error
			in, rep, lerr = ingest.LoadPage(files)
			return lerr
		},
		retry.Context(ctx),
		retry.Attempts(p.loadAttempts),
		retry.Delay(p.loadRetryWait),
		retry.LastErrorOnly(true),
	)
	return in, rep, err
}
