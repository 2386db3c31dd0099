// Package ingest discovers and loads the per-page input files: an OCR
// record array and the quadrant layout metadata that positions each
// quadrant on the page. Records are schema-validated one by one so a single
// malformed element costs that record, not the page.
package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/jackzampolin/reflow/internal/geometry"
	"github.com/jackzampolin/reflow/internal/reflow"
)

var (
	recordsName   = regexp.MustCompile(`^(.+)_records\.json$`)
	quadrantsName = regexp.MustCompile(`^(.+)_quadrants\.json$`)
)

// PageFiles locates the pair of input files describing one page. PageID is
// the filename stem used for pairing; the canonical page id comes from the
// metadata file.
type PageFiles struct {
	PageID       string
	RecordsPath  string
	MetadataPath string
}

// DroppedRecord explains why one record element was discarded.
type DroppedRecord struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// LoadReport carries per-page ingest diagnostics for logging and the batch
// summary.
type LoadReport struct {
	RecordCount int             `json:"record_count"`
	Dropped     []DroppedRecord `json:"dropped,omitempty"`
}

// Discover scans inputDir for <page>_records.json files and pairs each with
// <page>_quadrants.json. Pages come back sorted by page id. Pairing does
// not check that the metadata file exists; LoadPage surfaces that as a
// failure of that page alone.
func Discover(inputDir string) ([]PageFiles, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input dir: %w", err)
	}

	var pages []PageFiles
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := recordsName.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		pages = append(pages, PageFiles{
			PageID:       m[1],
			RecordsPath:  filepath.Join(inputDir, e.Name()),
			MetadataPath: filepath.Join(inputDir, m[1]+"_quadrants.json"),
		})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].PageID < pages[j].PageID })
	return pages, nil
}

// PageIDForFile extracts the page id from an input file name. It recognizes
// both halves of a page's pair; anything else reports false.
func PageIDForFile(name string) (string, bool) {
	if m := recordsName.FindStringSubmatch(name); m != nil {
		return m[1], true
	}
	if m := quadrantsName.FindStringSubmatch(name); m != nil {
		return m[1], true
	}
	return "", false
}

// FilesFor returns the input file pair for a page id under inputDir.
func FilesFor(inputDir, pageID string) PageFiles {
	return PageFiles{
		PageID:       pageID,
		RecordsPath:  filepath.Join(inputDir, pageID+"_records.json"),
		MetadataPath: filepath.Join(inputDir, pageID+"_quadrants.json"),
	}
}

// rawRecord mirrors the on-disk record shape, bbox as [x0, y0, x1, y1].
type rawRecord struct {
	Text       string     `json:"text"`
	BBox       [4]float64 `json:"bbox"`
	PageID     string     `json:"page_id"`
	QuadrantID string     `json:"quadrant_id"`
	Confidence *float64   `json:"confidence"`
}

type pageMeta struct {
	PageID     string                           `json:"page_id"`
	PageWidth  float64                          `json:"page_width"`
	PageHeight float64                          `json:"page_height"`
	Quadrants  map[string]reflow.QuadrantOffset `json:"quadrants"`
}

// LoadPage reads, validates, and materializes one page's input. Metadata
// problems fail the page. Record problems drop the record into the report
// and keep going; an empty surviving set is valid and means an empty page.
func LoadPage(files PageFiles) (*reflow.PageInput, *LoadReport, error) {
	if err := compileSchemas(); err != nil {
		return nil, nil, err
	}

	meta, err := loadMetadata(files.MetadataPath)
	if err != nil {
		return nil, nil, fmt.Errorf("page %s: %w", files.PageID, err)
	}

	raw, err := os.ReadFile(files.RecordsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("page %s: failed to read records: %w", files.PageID, err)
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, nil, fmt.Errorf("page %s: records file is not a JSON array: %w", files.PageID, err)
	}

	report := &LoadReport{RecordCount: len(elems)}
	in := &reflow.PageInput{
		PageID:  meta.PageID,
		Width:   meta.PageWidth,
		Height:  meta.PageHeight,
		Offsets: meta.Quadrants,
	}
	for i, elem := range elems {
		rec, err := parseRecord(elem)
		if err != nil {
			report.Dropped = append(report.Dropped, DroppedRecord{Index: i, Reason: err.Error()})
			continue
		}
		if rec.PageID != meta.PageID {
			report.Dropped = append(report.Dropped, DroppedRecord{
				Index:  i,
				Reason: fmt.Sprintf("record page_id %q does not match metadata page_id %q", rec.PageID, meta.PageID),
			})
			continue
		}
		in.Records = append(in.Records, rec)
	}
	return in, report, nil
}

func parseRecord(elem json.RawMessage) (reflow.TextBox, error) {
	var doc any
	if err := json.Unmarshal(elem, &doc); err != nil {
		return reflow.TextBox{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := recordSchema.Validate(doc); err != nil {
		return reflow.TextBox{}, fmt.Errorf("schema validation failed: %w", err)
	}

	var r rawRecord
	if err := json.Unmarshal(elem, &r); err != nil {
		return reflow.TextBox{}, fmt.Errorf("failed to decode record: %w", err)
	}
	confidence := 1.0
	if r.Confidence != nil {
		confidence = *r.Confidence
	}
	return reflow.TextBox{
		Text:       r.Text,
		Box:        geometry.NewBox(r.BBox[0], r.BBox[1], r.BBox[2], r.BBox[3]),
		PageID:     r.PageID,
		QuadrantID: r.QuadrantID,
		Confidence: confidence,
	}, nil
}

func loadMetadata(path string) (*pageMeta, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read quadrant metadata: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("quadrant metadata is not valid JSON: %w", err)
	}
	if err := quadrantSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("quadrant metadata failed schema validation: %w", err)
	}
	var meta pageMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode quadrant metadata: %w", err)
	}
	return &meta, nil
}
