package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/jackzampolin/reflow/internal/chunk"
	"github.com/jackzampolin/reflow/internal/geometry"
	"github.com/jackzampolin/reflow/internal/reflow"
)

func testResult() *reflow.Result {
	return &reflow.Result{
		PageID: "page_0001",
		Boxes: []reflow.NormalizedBox{
			{Text: "Title spans both columns", Box: geometry.NewBox(5, 2, 95, 6), ColumnID: 0, CrossColumn: true},
			{Text: "Left body", Box: geometry.NewBox(5, 10, 45, 13), ColumnID: 0},
		},
		Buckets: []reflow.RowBucket{{ID: 0}, {ID: 1}},
		Columns: []reflow.ColumnStack{{ID: 0}, {ID: 1}},
		Conflicts: []reflow.SeamConflict{
			{QuadrantA: "q1", QuadrantB: "q2", TextA: "Table 1", TextB: "Tab1e 1", IoU: 0.9, Similarity: 0.71},
		},
		DroppedLowConfidence: 2,
		DroppedEmptyText:     1,
	}
}

func TestNewWriter(t *testing.T) {
	t.Run("creates nested directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "out", "run1")
		w, err := NewWriter(dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if w.Dir() != dir {
			t.Errorf("expected dir %s, got %s", dir, w.Dir())
		}
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("output directory was not created: %v", err)
		}
	})

	t.Run("empty dir rejected", func(t *testing.T) {
		if _, err := NewWriter(""); err == nil {
			t.Fatal("expected an error for empty directory")
		}
	})
}

func TestNewPageResult(t *testing.T) {
	chunks := []chunk.Chunk{
		{ID: "page_0001_chunk_001", Text: "Title spans both columns\nLeft body", BucketIDs: []int{0, 1}},
	}

	pr := NewPageResult(testResult(), chunks, 3)

	if pr.PageID != "page_0001" {
		t.Errorf("wrong page id: %s", pr.PageID)
	}
	if pr.BoxCount != 2 || pr.BucketCount != 2 || pr.ColumnCount != 2 {
		t.Errorf("wrong counts: boxes=%d buckets=%d columns=%d", pr.BoxCount, pr.BucketCount, pr.ColumnCount)
	}
	// 3 dropped by the reader, 2 low confidence, 1 empty text.
	if pr.DroppedRecords != 6 {
		t.Errorf("expected 6 dropped records, got %d", pr.DroppedRecords)
	}
	if len(pr.SeamConflicts) != 1 {
		t.Errorf("expected 1 seam conflict, got %d", len(pr.SeamConflicts))
	}
	if len(pr.CrossColumn) != 1 {
		t.Fatalf("expected 1 cross-column ref, got %d", len(pr.CrossColumn))
	}
	if pr.CrossColumn[0].Text != "Title spans both columns" {
		t.Errorf("wrong cross-column text: %q", pr.CrossColumn[0].Text)
	}
}

func TestWritePage(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chunks := []chunk.Chunk{{ID: "page_0001_chunk_001", Text: "Title spans both columns\nLeft body"}}
	path, err := w.WritePage(NewPageResult(testResult(), chunks, 0))
	if err != nil {
		t.Fatalf("WritePage failed: %v", err)
	}
	if path != w.PagePath("page_0001") {
		t.Errorf("unexpected path %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read page document: %v", err)
	}
	if data[len(data)-1] != '\n' {
		t.Error("document should end with a newline")
	}

	var got PageResult
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("page document is not valid JSON: %v", err)
	}
	if got.PageID != "page_0001" {
		t.Errorf("wrong page id: %s", got.PageID)
	}
	if len(got.Chunks) != 1 || got.Chunks[0].ID != "page_0001_chunk_001" {
		t.Errorf("chunks did not round-trip: %+v", got.Chunks)
	}
	if got.SeamConflicts[0].TextB != "Tab1e 1" {
		t.Errorf("seam conflict did not round-trip: %+v", got.SeamConflicts)
	}

	// The temp file must be gone after the rename.
	leftovers, _ := filepath.Glob(filepath.Join(w.Dir(), ".reflow-*"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestWritePage_EmptyChunks(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	empty := &reflow.Result{PageID: "page_0002"}
	path, err := w.WritePage(NewPageResult(empty, nil, 0))
	if err != nil {
		t.Fatalf("WritePage failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read page document: %v", err)
	}
	if !strings.Contains(string(data), `"chunks": []`) {
		t.Errorf("empty page must serialize chunks as [], got:\n%s", data)
	}
}

func TestWritePage_Overwrite(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res := &reflow.Result{PageID: "page_0003"}
	if _, err := w.WritePage(NewPageResult(res, []chunk.Chunk{{ID: "a", Text: "first"}}, 0)); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if _, err := w.WritePage(NewPageResult(res, []chunk.Chunk{{ID: "b", Text: "second"}}, 0)); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	data, err := os.ReadFile(w.PagePath("page_0003"))
	if err != nil {
		t.Fatalf("failed to read page document: %v", err)
	}
	var got PageResult
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("page document is not valid JSON: %v", err)
	}
	if len(got.Chunks) != 1 || got.Chunks[0].ID != "b" {
		t.Errorf("second write did not replace the first: %+v", got.Chunks)
	}
}

func TestWriteIntermediate(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payload := map[string]int{"boxes": 12}
	if err := w.WriteIntermediate("page_0001", "rows", payload); err != nil {
		t.Fatalf("WriteIntermediate failed: %v", err)
	}

	path := filepath.Join(w.Dir(), IntermediateDirName, "page_0001_rows.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("intermediate artifact missing: %v", err)
	}
	var got map[string]int
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("artifact is not valid JSON: %v", err)
	}
	if got["boxes"] != 12 {
		t.Errorf("payload did not round-trip: %v", got)
	}
}

func TestSummary(t *testing.T) {
	s := NewSummary()
	if _, err := uuid.Parse(s.RunID); err != nil {
		t.Errorf("run id is not a UUID: %q", s.RunID)
	}
	if s.StartedAt.IsZero() {
		t.Error("started_at not set")
	}

	s.AddPage(3, 40, 2, 1, false)
	s.AddPage(0, 0, 0, 0, true)
	s.AddFailure("page_0009", FailKindInvalidDimension, os.ErrInvalid)

	if s.PagesTotal != 3 || s.PagesSucceeded != 2 || s.PagesFailed != 1 || s.PagesEmpty != 1 {
		t.Errorf("wrong page totals: %+v", s)
	}
	if s.ChunkCount != 3 || s.RecordCount != 40 || s.DroppedRecords != 2 || s.SeamConflicts != 1 {
		t.Errorf("wrong record totals: %+v", s)
	}
	if len(s.Failures) != 1 || s.Failures[0].Kind != FailKindInvalidDimension {
		t.Errorf("failure not recorded: %+v", s.Failures)
	}

	w, err := NewWriter(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path, err := w.WriteSummary(s)
	if err != nil {
		t.Fatalf("WriteSummary failed: %v", err)
	}
	if s.FinishedAt.IsZero() {
		t.Error("finished_at not set by WriteSummary")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("summary missing: %v", err)
	}
	var got Summary
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("summary is not valid JSON: %v", err)
	}
	if got.RunID != s.RunID {
		t.Errorf("run id did not round-trip: %q vs %q", got.RunID, s.RunID)
	}
	if got.Failures[0].PageID != "page_0009" {
		t.Errorf("failure did not round-trip: %+v", got.Failures)
	}
}

func TestWriteDocument_CreatesNoTempOnSuccess(t *testing.T) {
	dir := t.TempDir()
	if err := WriteDocument(filepath.Join(dir, "doc.json"), map[string]string{"k": "v"}); err != nil {
		t.Fatalf("WriteDocument failed: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to list dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "doc.json" {
		t.Errorf("expected only doc.json, got %v", entries)
	}
}
