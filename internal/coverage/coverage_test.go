package coverage

import (
	"strings"
	"testing"

	"github.com/jackzampolin/reflow/internal/chunk"
	"github.com/jackzampolin/reflow/internal/geometry"
	"github.com/jackzampolin/reflow/internal/reflow"
)

func covConfig() Config {
	return Config{
		FuzzyThreshold:        0.90,
		WordCoverageThreshold: 0.70,
		NGramThreshold:        0.65,
		NGramSize:             5,
	}
}

func covBox(text string, bucketID, columnID int) reflow.NormalizedBox {
	return reflow.NormalizedBox{Text: text, BucketID: bucketID, ColumnID: columnID}
}

func TestAnalyze_ExactMatch(t *testing.T) {
	boxes := []reflow.NormalizedBox{
		covBox("Pressure vessel shell", 0, 0),
		covBox("showed no corrosion", 1, 0),
	}
	chunks := []chunk.Chunk{
		{ID: "page_0001_chunk_001", Text: "Pressure vessel shell\nshowed no corrosion"},
	}

	rep := Analyze("page_0001", boxes, chunks, covConfig())

	if rep.Segments != 2 {
		t.Errorf("expected 2 segments, got %d", rep.Segments)
	}
	if rep.Matched != 2 {
		t.Errorf("expected 2 matched, got %d", rep.Matched)
	}
	if rep.Coverage != 1 {
		t.Errorf("expected coverage 1.0, got %g", rep.Coverage)
	}
	if rep.Methods[string(MethodExact)] != 2 {
		t.Errorf("expected 2 exact matches, got %v", rep.Methods)
	}
	if len(rep.Missing) != 0 {
		t.Errorf("expected nothing missing, got %v", rep.Missing)
	}
}

func TestAnalyze_FuzzyMatch(t *testing.T) {
	// OCR misread the final l as a digit, so exact containment fails but a
	// sliding-window ratio clears the fuzzy threshold.
	boxes := []reflow.NormalizedBox{covBox("pressure vesse1 shell", 0, 0)}
	chunks := []chunk.Chunk{{ID: "p_chunk_001", Text: "the pressure vessel shell held"}}

	rep := Analyze("p", boxes, chunks, covConfig())

	if rep.Matched != 1 {
		t.Fatalf("expected a match, missing: %+v", rep.Missing)
	}
	if rep.Methods[string(MethodFuzzy)] != 1 {
		t.Errorf("expected fuzzy tier to match, got %v", rep.Methods)
	}
}

func TestAnalyze_WordCoverageMatch(t *testing.T) {
	// All content words survive but are scattered through the chunk, so both
	// exact and fuzzy tiers fail.
	boxes := []reflow.NormalizedBox{covBox("relief valve inspection schedule", 0, 0)}
	chunks := []chunk.Chunk{{
		ID:   "p_chunk_001",
		Text: "The inspection crew noted the relief fitting and the valve met the schedule",
	}}

	rep := Analyze("p", boxes, chunks, covConfig())

	if rep.Matched != 1 {
		t.Fatalf("expected a match, missing: %+v", rep.Missing)
	}
	if rep.Methods[string(MethodWords)] != 1 {
		t.Errorf("expected word-coverage tier to match, got %v", rep.Methods)
	}
}

func TestAnalyze_TierOrder(t *testing.T) {
	// With fuzzy and word thresholds set unreachable the same input falls
	// through to the n-gram tier.
	cfg := Config{
		FuzzyThreshold:        0.99,
		WordCoverageThreshold: 0.99,
		NGramThreshold:        0.65,
		NGramSize:             5,
	}
	boxes := []reflow.NormalizedBox{covBox("pressure vesse1 shell", 0, 0)}
	chunks := []chunk.Chunk{{ID: "p_chunk_001", Text: "the pressure vessel shell held"}}

	rep := Analyze("p", boxes, chunks, cfg)

	if rep.Matched != 1 {
		t.Fatalf("expected a match, missing: %+v", rep.Missing)
	}
	if rep.Methods[string(MethodNGram)] != 1 {
		t.Errorf("expected n-gram tier to match, got %v", rep.Methods)
	}
}

func TestAnalyze_ReportsMissing(t *testing.T) {
	boxes := []reflow.NormalizedBox{
		covBox("Burner assembly clean", 0, 0),
		covBox("zebra quagga wandered far", 1, 0),
	}
	chunks := []chunk.Chunk{{ID: "p_chunk_001", Text: "Burner assembly clean and serviceable"}}

	rep := Analyze("p", boxes, chunks, covConfig())

	if rep.Matched != 1 {
		t.Errorf("expected 1 matched, got %d", rep.Matched)
	}
	if len(rep.Missing) != 1 {
		t.Fatalf("expected 1 missing segment, got %d", len(rep.Missing))
	}
	miss := rep.Missing[0]
	if miss.Text != "zebra quagga wandered far" {
		t.Errorf("wrong missing text: %q", miss.Text)
	}
	if miss.BucketID != 1 {
		t.Errorf("expected bucket 1, got %d", miss.BucketID)
	}
	if miss.ConfidenceMissing <= 0 || miss.ConfidenceMissing > 1 {
		t.Errorf("confidence_missing out of range: %g", miss.ConfidenceMissing)
	}
	if got := 1 - miss.BestScore; miss.ConfidenceMissing != got {
		t.Errorf("confidence_missing %g does not complement best score %g", miss.ConfidenceMissing, miss.BestScore)
	}
	if rep.Coverage != 0.5 {
		t.Errorf("expected coverage 0.5, got %g", rep.Coverage)
	}
}

func TestAnalyze_NoChunks(t *testing.T) {
	boxes := []reflow.NormalizedBox{covBox("feedwater piping intact", 0, 0)}

	rep := Analyze("p", boxes, nil, covConfig())

	if len(rep.Missing) != 1 {
		t.Fatalf("expected 1 missing segment, got %d", len(rep.Missing))
	}
	if rep.Missing[0].ConfidenceMissing != 1 {
		t.Errorf("expected confidence_missing 1 with no chunks, got %g", rep.Missing[0].ConfidenceMissing)
	}
	if rep.Coverage != 0 {
		t.Errorf("expected coverage 0, got %g", rep.Coverage)
	}
}

func TestAnalyze_SkipsShortSegments(t *testing.T) {
	boxes := []reflow.NormalizedBox{
		covBox("!!", 0, 0),
		covBox("7", 1, 0),
		covBox("ok", 2, 0),
	}
	chunks := []chunk.Chunk{{ID: "p_chunk_001", Text: "!!\n7\nok"}}

	rep := Analyze("p", boxes, chunks, covConfig())

	if rep.Skipped != 3 {
		t.Errorf("expected 3 skipped, got %d", rep.Skipped)
	}
	if rep.Segments != 0 {
		t.Errorf("expected 0 analyzable segments, got %d", rep.Segments)
	}
	if rep.Coverage != 1 {
		t.Errorf("expected coverage 1.0 with nothing analyzable, got %g", rep.Coverage)
	}
}

func TestAnalyze_BucketSplitAcrossColumns(t *testing.T) {
	// A bucket spanning two columns is not contiguous in the reading order,
	// so each column's run must be matched on its own.
	boxes := []reflow.NormalizedBox{
		covBox("left line one", 0, 0),
		covBox("right line one", 0, 1),
		covBox("left line two", 1, 0),
	}
	chunks := []chunk.Chunk{
		{ID: "p_chunk_001", Text: "left line one\nleft line two\nright line one"},
	}

	rep := Analyze("p", boxes, chunks, covConfig())

	if rep.Segments != 3 {
		t.Errorf("expected 3 segments, got %d", rep.Segments)
	}
	if rep.Matched != 3 {
		t.Errorf("expected all segments matched, missing: %+v", rep.Missing)
	}
	if rep.Methods[string(MethodExact)] != 3 {
		t.Errorf("expected 3 exact matches, got %v", rep.Methods)
	}
}

func TestCheckBounds(t *testing.T) {
	cases := []struct {
		name    string
		box     geometry.Box
		wantErr bool
	}{
		{"full page", geometry.NewBox(0, 0, 100, 100), false},
		{"interior", geometry.NewBox(10, 20, 30, 40), false},
		{"right overflow", geometry.Box{X0: 0, Y0: 0, X1: 100.5, Y1: 50}, true},
		{"negative left", geometry.Box{X0: -1, Y0: 0, X1: 50, Y1: 50}, true},
		{"inverted", geometry.Box{X0: 60, Y0: 10, X1: 40, Y1: 20}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chunks := []chunk.Chunk{{ID: "p_chunk_001", Box: tc.box}}
			err := CheckBounds(chunks)
			if tc.wantErr && err == nil {
				t.Fatal("expected an error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.wantErr && !strings.Contains(err.Error(), "p_chunk_001") {
				t.Errorf("error %q does not name the chunk", err)
			}
		})
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	boxes := []reflow.NormalizedBox{
		covBox("alpha beta", 0, 0),
		covBox("gamma delta", 1, 0),
		covBox("epsilon zeta", 2, 0),
	}
	chunks := chunk.Build("page_0001", boxes, chunk.Config{CharBudget: 25, HeaderMaxChars: 80})

	if err := VerifyRoundTrip(boxes, chunks); err != nil {
		t.Fatalf("round trip failed on builder output: %v", err)
	}

	chunks[len(chunks)-1].Text += " tampered"
	if err := VerifyRoundTrip(boxes, chunks); err == nil {
		t.Fatal("expected round-trip error after tampering")
	}
}
