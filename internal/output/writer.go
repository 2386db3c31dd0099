// Package output persists page chunk documents, per-stage intermediate
// artifacts, and the batch run summary. One file per page keeps concurrent
// writers out of each other's way; every write lands atomically via a temp
// file and rename so a watcher never observes a partial document.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/reflow/internal/chunk"
	"github.com/jackzampolin/reflow/internal/geometry"
	"github.com/jackzampolin/reflow/internal/reflow"
)

// IntermediateDirName is the subdirectory per-stage artifacts land in when
// pipeline.write_intermediate is enabled.
const IntermediateDirName = "intermediate"

// SummaryFileName is the batch summary written at the end of a run.
const SummaryFileName = "summary.json"

// Failure kinds recorded in the batch summary.
const (
	FailKindIngest           = "ingest"
	FailKindInvalidDimension = "invalid_dimension"
	FailKindReflow           = "reflow"
	FailKindWrite            = "write"
)

// CrossColumnRef identifies a box that spans more than one detected column.
type CrossColumnRef struct {
	Text     string       `json:"text"`
	Box      geometry.Box `json:"bbox"`
	ColumnID int          `json:"column_id"`
}

// PageResult is the per-page document written to the output directory.
type PageResult struct {
	PageID         string                `json:"page_id"`
	Chunks         []chunk.Chunk         `json:"chunks"`
	BoxCount       int                   `json:"box_count"`
	BucketCount    int                   `json:"bucket_count"`
	ColumnCount    int                   `json:"column_count"`
	DroppedRecords int                   `json:"dropped_records"`
	SeamConflicts  []reflow.SeamConflict `json:"seam_conflicts,omitempty"`
	CrossColumn    []CrossColumnRef      `json:"cross_column,omitempty"`
}

// NewPageResult assembles the page document from the transform result.
// droppedIngest counts records the reader already discarded; the transform's
// own drops are added so the document accounts for every lost record.
func NewPageResult(res *reflow.Result, chunks []chunk.Chunk, droppedIngest int) PageResult {
	pr := PageResult{
		PageID:         res.PageID,
		Chunks:         chunks,
		BoxCount:       len(res.Boxes),
		BucketCount:    len(res.Buckets),
		ColumnCount:    len(res.Columns),
		DroppedRecords: droppedIngest + res.DroppedLowConfidence + res.DroppedEmptyText + res.DroppedUnknownQuadrant,
		SeamConflicts:  res.Conflicts,
	}
	if pr.Chunks == nil {
		pr.Chunks = []chunk.Chunk{}
	}
	for _, b := range res.Boxes {
		if b.CrossColumn {
			pr.CrossColumn = append(pr.CrossColumn, CrossColumnRef{
				Text:     b.Text,
				Box:      b.Box,
				ColumnID: b.ColumnID,
			})
		}
	}
	return pr
}

// PageFailure records a page that could not be processed.
type PageFailure struct {
	PageID string `json:"page_id"`
	Kind   string `json:"kind"`
	Error  string `json:"error"`
}

// Summary aggregates one batch run.
type Summary struct {
	RunID          string        `json:"run_id"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
	PagesTotal     int           `json:"pages_total"`
	PagesSucceeded int           `json:"pages_succeeded"`
	PagesFailed    int           `json:"pages_failed"`
	PagesEmpty     int           `json:"pages_empty"`
	ChunkCount     int           `json:"chunk_count"`
	RecordCount    int           `json:"record_count"`
	DroppedRecords int           `json:"dropped_records"`
	SeamConflicts  int           `json:"seam_conflicts"`
	Failures       []PageFailure `json:"failures,omitempty"`
}

// NewSummary returns a Summary with a fresh run ID and the clock started.
func NewSummary() *Summary {
	return &Summary{
		RunID:     uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}
}

// AddPage folds one processed page into the totals.
func (s *Summary) AddPage(chunks, records, dropped, conflicts int, empty bool) {
	s.PagesTotal++
	s.PagesSucceeded++
	if empty {
		s.PagesEmpty++
	}
	s.ChunkCount += chunks
	s.RecordCount += records
	s.DroppedRecords += dropped
	s.SeamConflicts += conflicts
}

// AddFailure folds one failed page into the totals.
func (s *Summary) AddFailure(pageID, kind string, err error) {
	s.PagesTotal++
	s.PagesFailed++
	s.Failures = append(s.Failures, PageFailure{
		PageID: pageID,
		Kind:   kind,
		Error:  err.Error(),
	})
}

// Writer persists run artifacts under a single output directory.
type Writer struct {
	dir string
}

// NewWriter creates the output directory if needed and returns a Writer
// rooted there.
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Dir returns the output directory path.
func (w *Writer) Dir() string { return w.dir }

// PagePath returns the path a page's chunk document is written to.
func (w *Writer) PagePath(pageID string) string {
	return filepath.Join(w.dir, pageID+".json")
}

// IntermediatePath returns the path of one page's per-stage artifact.
func (w *Writer) IntermediatePath(pageID, stage string) string {
	return filepath.Join(w.dir, IntermediateDirName, fmt.Sprintf("%s_%s.json", pageID, stage))
}

// WritePage writes a page document. A page with no chunks still gets a
// document with an empty chunk list.
func (w *Writer) WritePage(res PageResult) (string, error) {
	if res.Chunks == nil {
		res.Chunks = []chunk.Chunk{}
	}
	path := w.PagePath(res.PageID)
	if err := WriteDocument(path, res); err != nil {
		return "", fmt.Errorf("page %s: %w", res.PageID, err)
	}
	return path, nil
}

// WriteIntermediate dumps one pipeline stage's payload for a page.
func (w *Writer) WriteIntermediate(pageID, stage string, payload any) error {
	path := w.IntermediatePath(pageID, stage)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create intermediate directory: %w", err)
	}
	if err := WriteDocument(path, payload); err != nil {
		return fmt.Errorf("page %s stage %s: %w", pageID, stage, err)
	}
	return nil
}

// WriteSummary finalizes the run clock and writes summary.json.
func (w *Writer) WriteSummary(s *Summary) (string, error) {
	if s.FinishedAt.IsZero() {
		s.FinishedAt = time.Now().UTC()
	}
	path := filepath.Join(w.dir, SummaryFileName)
	if err := WriteDocument(path, s); err != nil {
		return "", fmt.Errorf("summary: %w", err)
	}
	return path, nil
}

// WriteDocument marshals v as indented JSON and writes it atomically: the
// bytes go to a temp file in the destination directory which is then renamed
// over the target path.
func WriteDocument(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), ".reflow-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
