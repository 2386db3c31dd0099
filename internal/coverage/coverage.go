// Package coverage verifies that chunk output preserves the source text.
//
// The analyzer takes the reading-order boxes a page was chunked from and
// checks that each row bucket's text can still be located inside the emitted
// chunks. Matching runs through four tiers, strictest first: exact substring,
// fuzzy partial ratio, stopword-filtered word coverage, and n-gram overlap.
// A bucket that clears none of them is reported missing.
package coverage

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jackzampolin/reflow/internal/chunk"
	"github.com/jackzampolin/reflow/internal/reflow"
	"github.com/jackzampolin/reflow/internal/textutil"
)

// Segments shorter than this after folding carry no signal (stray
// punctuation, page furniture) and are skipped rather than matched.
const minAnalyzableRunes = 3

// Config holds the match thresholds, one per tier.
type Config struct {
	FuzzyThreshold        float64
	WordCoverageThreshold float64
	NGramThreshold        float64
	NGramSize             int
}

// Method identifies which tier located a segment.
type Method string

const (
	MethodExact Method = "exact"
	MethodFuzzy Method = "fuzzy"
	MethodWords Method = "words"
	MethodNGram Method = "ngram"
	MethodNone  Method = "none"
)

// MissingSegment describes bucket text that no chunk accounts for.
type MissingSegment struct {
	Text              string  `json:"text"`
	BucketID          int     `json:"bucket_id"`
	ColumnID          int     `json:"column_id"`
	BestScore         float64 `json:"best_score"`
	ConfidenceMissing float64 `json:"confidence_missing"`
}

// Report summarizes recovery for one page.
type Report struct {
	PageID   string           `json:"page_id"`
	Segments int              `json:"segments"`
	Skipped  int              `json:"skipped"`
	Matched  int              `json:"matched"`
	Coverage float64          `json:"coverage"`
	Methods  map[string]int   `json:"methods,omitempty"`
	Missing  []MissingSegment `json:"missing,omitempty"`
}

// segment is one row bucket's text within one column. Buckets are evaluated
// per column because a bucket spanning two columns is not contiguous in the
// final reading order.
type segment struct {
	bucketID int
	columnID int
	texts    []string
}

func collectSegments(boxes []reflow.NormalizedBox) []segment {
	index := make(map[[2]int]int)
	var segs []segment
	for _, b := range boxes {
		key := [2]int{b.BucketID, b.ColumnID}
		i, ok := index[key]
		if !ok {
			i = len(segs)
			index[key] = i
			segs = append(segs, segment{bucketID: b.BucketID, columnID: b.ColumnID})
		}
		segs[i].texts = append(segs[i].texts, b.Text)
	}
	return segs
}

// Analyze locates each bucket segment of the reading order inside the page's
// chunks and reports what could not be found.
func Analyze(pageID string, boxes []reflow.NormalizedBox, chunks []chunk.Chunk, cfg Config) Report {
	folded := make([]string, len(chunks))
	for i, c := range chunks {
		folded[i] = textutil.Fold(c.Text)
	}

	rep := Report{PageID: pageID, Methods: make(map[string]int)}
	for _, seg := range collectSegments(boxes) {
		raw := strings.Join(seg.texts, " ")
		needle := textutil.Fold(raw)
		if utf8.RuneCountInString(needle) < minAnalyzableRunes {
			rep.Skipped++
			continue
		}
		rep.Segments++

		m := matchSegment(needle, chunks, folded, cfg)
		if m.method == MethodNone {
			rep.Missing = append(rep.Missing, MissingSegment{
				Text:              raw,
				BucketID:          seg.bucketID,
				ColumnID:          seg.columnID,
				BestScore:         m.score,
				ConfidenceMissing: 1 - m.score,
			})
			continue
		}
		rep.Matched++
		rep.Methods[string(m.method)]++
	}

	if rep.Segments > 0 {
		rep.Coverage = float64(rep.Matched) / float64(rep.Segments)
	} else {
		rep.Coverage = 1
	}
	return rep
}

type segmentMatch struct {
	method  Method
	score   float64
	chunkID string
}

func matchSegment(needle string, chunks []chunk.Chunk, folded []string, cfg Config) segmentMatch {
	for i, hay := range folded {
		if strings.Contains(hay, needle) {
			return segmentMatch{method: MethodExact, score: 1, chunkID: chunks[i].ID}
		}
	}

	tiers := []struct {
		method    Method
		threshold float64
		score     func(hay string) float64
	}{
		{MethodFuzzy, cfg.FuzzyThreshold, func(hay string) float64 { return textutil.PartialRatio(needle, hay) }},
		{MethodWords, cfg.WordCoverageThreshold, func(hay string) float64 { return textutil.WordCoverage(needle, hay) }},
		{MethodNGram, cfg.NGramThreshold, func(hay string) float64 { return textutil.NGramOverlap(needle, hay, cfg.NGramSize) }},
	}

	best := 0.0
	for _, tier := range tiers {
		tierBest, tierIdx := 0.0, -1
		for i, hay := range folded {
			if s := tier.score(hay); s > tierBest {
				tierBest, tierIdx = s, i
			}
		}
		if tierBest > best {
			best = tierBest
		}
		if tierIdx >= 0 && tierBest >= tier.threshold {
			return segmentMatch{method: tier.method, score: tierBest, chunkID: chunks[tierIdx].ID}
		}
	}
	return segmentMatch{method: MethodNone, score: best}
}

// CheckBounds rejects chunks whose bounding box escapes the normalized page.
func CheckBounds(chunks []chunk.Chunk) error {
	for _, c := range chunks {
		b := c.Box
		if b.X0 < 0 || b.Y0 < 0 || b.X1 > 100 || b.Y1 > 100 || b.X1 < b.X0 || b.Y1 < b.Y0 {
			return fmt.Errorf("chunk %s bbox [%.2f %.2f %.2f %.2f] escapes the page grid", c.ID, b.X0, b.Y0, b.X1, b.Y1)
		}
	}
	return nil
}

// VerifyRoundTrip confirms that joining the chunk texts reproduces the
// reading-order text exactly once.
func VerifyRoundTrip(boxes []reflow.NormalizedBox, chunks []chunk.Chunk) error {
	var want strings.Builder
	for i, b := range boxes {
		if i > 0 {
			want.WriteByte('\n')
		}
		want.WriteString(b.Text)
	}

	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Text
	}
	got := strings.Join(parts, "\n")

	if got != want.String() {
		return fmt.Errorf("chunk text diverges from reading order: %d chars reconstructed, %d expected", len(got), len(want.String()))
	}
	return nil
}
