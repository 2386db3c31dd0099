package reflow

import (
	"sort"
	"strings"

	"github.com/jackzampolin/reflow/internal/textutil"
)

// MergeResult is the outcome of folding quadrant-local records into one
// page-pixel box set. Drop counts are carried out so callers can log and
// summarize them; nothing is discarded without a trace.
type MergeResult struct {
	// Boxes is the surviving set in page pixel space, sorted top-to-bottom
	// then left-to-right.
	Boxes []TextBox

	// Conflicts are overlapping cross-quadrant pairs whose text diverged.
	// Both members remain in Boxes.
	Conflicts []SeamConflict

	DroppedLowConfidence   int
	DroppedEmptyText       int
	DroppedUnknownQuadrant int
}

// MergeQuadrants translates quadrant-local records into page pixel space and
// collapses the duplicates that quadrant overlap produces at seam lines.
//
// Two boxes from different quadrants are duplicate candidates when their IoU
// exceeds cfg.SeamIoUThreshold. Candidates whose folded text similarity
// exceeds cfg.SeamTextSimilarityThreshold merge, keeping the higher
// confidence record (input order wins a tie). Candidates with divergent text
// are both retained and reported as a SeamConflict.
//
// Records with an empty quadrant ID are taken to already be in page space.
func MergeQuadrants(records []TextBox, offsets map[string]QuadrantOffset, cfg Config) MergeResult {
	var res MergeResult

	type entry struct {
		box   TextBox
		input int // original record ordinal, breaks ties deterministically
	}
	entries := make([]entry, 0, len(records))

	for i, rec := range records {
		if strings.TrimSpace(rec.Text) == "" {
			res.DroppedEmptyText++
			continue
		}
		if rec.Confidence < cfg.MinConfidence {
			res.DroppedLowConfidence++
			continue
		}
		if rec.QuadrantID != "" {
			off, ok := offsets[rec.QuadrantID]
			if !ok {
				res.DroppedUnknownQuadrant++
				continue
			}
			rec.Box = rec.Box.Translate(off.X, off.Y)
		}
		entries = append(entries, entry{box: rec, input: i})
	}

	sort.Slice(entries, func(a, b int) bool {
		ba, bb := entries[a].box.Box, entries[b].box.Box
		if ba.Y0 != bb.Y0 {
			return ba.Y0 < bb.Y0
		}
		if ba.X0 != bb.X0 {
			return ba.X0 < bb.X0
		}
		return entries[a].input < entries[b].input
	})

	removed := make([]bool, len(entries))
	for i := range entries {
		if removed[i] {
			continue
		}
		for j := i + 1; j < len(entries); j++ {
			// Sorted by top edge, so once j starts below i's bottom no
			// later box can overlap i.
			if entries[j].box.Box.Y0 > entries[i].box.Box.Y1 {
				break
			}
			if removed[j] || entries[i].box.QuadrantID == entries[j].box.QuadrantID {
				continue
			}

			iou := entries[i].box.Box.IoU(entries[j].box.Box)
			if iou <= cfg.SeamIoUThreshold {
				continue
			}

			a, b := entries[i].box, entries[j].box
			sim := textutil.Ratio(textutil.Fold(a.Text), textutil.Fold(b.Text))
			if sim <= cfg.SeamTextSimilarityThreshold {
				res.Conflicts = append(res.Conflicts, SeamConflict{
					QuadrantA:  a.QuadrantID,
					QuadrantB:  b.QuadrantID,
					TextA:      a.Text,
					TextB:      b.Text,
					BoxA:       a.Box,
					BoxB:       b.Box,
					IoU:        iou,
					Similarity: sim,
				})
				continue
			}

			if b.Confidence > a.Confidence ||
				(b.Confidence == a.Confidence && entries[j].input < entries[i].input) {
				removed[i] = true
			} else {
				removed[j] = true
			}
			if removed[i] {
				break
			}
		}
	}

	res.Boxes = make([]TextBox, 0, len(entries))
	for i, e := range entries {
		if !removed[i] {
			res.Boxes = append(res.Boxes, e.box)
		}
	}
	return res
}
