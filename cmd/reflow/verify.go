package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/reflow/internal/chunk"
	"github.com/jackzampolin/reflow/internal/config"
	"github.com/jackzampolin/reflow/internal/coverage"
	"github.com/jackzampolin/reflow/internal/ingest"
	"github.com/jackzampolin/reflow/internal/output"
	"github.com/jackzampolin/reflow/internal/reflow"
)

var (
	verifyOutputDir string
	verifyInputDir  string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check chunk documents for integrity",
	Long: `Verify the chunk documents in --output_dir.

Checked for every page document:
  - every chunk bbox lies inside the normalized page space
  - char_count matches the chunk text
  - chunk ids are sequential within the page

With --input_dir each page is additionally reprocessed in memory and
compared against the document on disk, confirming the output is a pure
function of the input and that no box text went missing from the chunks.

Examples:
  reflow verify --output_dir ./chunks
  reflow verify --output_dir ./chunks --input_dir ./scans`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		docs, err := readPageDocs(verifyOutputDir)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return fmt.Errorf("no page documents found in %s", verifyOutputDir)
		}

		problems := 0
		for _, doc := range docs {
			msgs := checkDocument(doc)
			if verifyInputDir != "" {
				msgs = append(msgs, checkAgainstInput(doc, verifyInputDir, cfg, logger)...)
			}
			for _, msg := range msgs {
				logger.Error("verification failed", "page_id", doc.PageID, "problem", msg)
			}
			problems += len(msgs)
		}

		if problems > 0 {
			return fmt.Errorf("found %d problems across %d pages", problems, len(docs))
		}
		logger.Info("verification passed", "pages", len(docs), "reprocessed", verifyInputDir != "")
		return nil
	},
}

// readPageDocs loads every page document in dir, skipping the run summary
// and the intermediate artifacts.
func readPageDocs(dir string) ([]output.PageResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read output dir: %w", err)
	}

	var docs []output.PageResult
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == output.SummaryFileName || !strings.HasSuffix(name, ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		var doc output.PageResult
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", name, err)
		}
		if want := doc.PageID + ".json"; name != want {
			return nil, fmt.Errorf("%s holds page %q, expected file name %s", name, doc.PageID, want)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// checkDocument runs the input-independent integrity checks on one page
// document.
func checkDocument(doc output.PageResult) []string {
	var msgs []string
	if err := coverage.CheckBounds(doc.Chunks); err != nil {
		msgs = append(msgs, err.Error())
	}
	for i, c := range doc.Chunks {
		if got := utf8.RuneCountInString(c.Text); got != c.CharCount {
			msgs = append(msgs, fmt.Sprintf("chunk %s char_count is %d, text has %d runes", c.ID, c.CharCount, got))
		}
		if want := fmt.Sprintf("%s_chunk_%03d", doc.PageID, i+1); c.ID != want {
			msgs = append(msgs, fmt.Sprintf("chunk %d id is %q, want %q", i, c.ID, want))
		}
	}
	return msgs
}

// checkAgainstInput reprocesses the page from its input files and compares
// the result with the document on disk.
func checkAgainstInput(doc output.PageResult, inputDir string, cfg *config.Config, logger *slog.Logger) []string {
	in, report, err := ingest.LoadPage(ingest.FilesFor(inputDir, doc.PageID))
	if err != nil {
		return []string{fmt.Sprintf("failed to reload input: %v", err)}
	}
	res, err := reflow.Reflow(*in, cfg.Reflow.ToReflow())
	if err != nil {
		return []string{fmt.Sprintf("failed to reprocess: %v", err)}
	}
	chunks := chunk.Build(doc.PageID, res.Boxes, cfg.Chunk.ToChunk())

	var msgs []string
	if len(chunks) != len(doc.Chunks) {
		msgs = append(msgs, fmt.Sprintf("reprocessing produced %d chunks, document has %d", len(chunks), len(doc.Chunks)))
	} else {
		for i := range chunks {
			if chunks[i].Text != doc.Chunks[i].Text {
				msgs = append(msgs, fmt.Sprintf("chunk %s text differs from reprocessed input", doc.Chunks[i].ID))
			}
		}
	}
	if err := coverage.VerifyRoundTrip(res.Boxes, chunks); err != nil {
		msgs = append(msgs, err.Error())
	}

	rep := coverage.Analyze(doc.PageID, res.Boxes, doc.Chunks, cfg.Coverage.ToCoverage())
	for _, m := range rep.Missing {
		msgs = append(msgs, fmt.Sprintf("bucket %d column %d text missing from chunks (confidence %.2f)",
			m.BucketID, m.ColumnID, m.ConfidenceMissing))
	}
	if report != nil && len(report.Dropped) > 0 && doc.DroppedRecords < len(report.Dropped) {
		msgs = append(msgs, fmt.Sprintf("input has %d malformed records, document accounts for %d",
			len(report.Dropped), doc.DroppedRecords))
	}
	logger.Debug("reprocessed page", "page_id", doc.PageID, "chunks", len(chunks), "coverage", rep.Coverage)
	return msgs
}

func init() {
	verifyCmd.Flags().StringVar(&verifyOutputDir, "output_dir", "", "directory holding chunk documents to verify")
	verifyCmd.Flags().StringVar(&verifyInputDir, "input_dir", "", "original input directory for a reprocessing comparison")
	verifyCmd.MarkFlagRequired("output_dir")

	rootCmd.AddCommand(verifyCmd)
}
