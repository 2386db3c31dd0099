package reflow

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// fragmentLookahead bounds how many subsequent boxes are considered as
// continuation candidates for one line.
const fragmentLookahead = 20

// fragmentOverlapSlack is how far (normalized units) two fragments may
// overlap horizontally and still be joined. Seam boxes often overlap by a
// character or two.
const fragmentOverlapSlack = 1.0

// MergeFragments fuses horizontally adjacent boxes on the same visual line.
// OCR frequently splits a line into word- or phrase-level fragments; later
// stages want line-level boxes, so each box absorbs near neighbors to its
// right within the lookahead window.
//
// Two boxes join when their vertical centers sit within th.LineTolerance and
// the horizontal gap between them is at most cfg.MergeGapCharFactor times
// the larger of their character widths (th.JoinGap when neither box has a
// usable character width).
func MergeFragments(boxes []NormalizedBox, th Thresholds, cfg Config) []NormalizedBox {
	sorted := make([]NormalizedBox, len(boxes))
	copy(sorted, boxes)
	sort.Slice(sorted, func(a, b int) bool {
		ka, kb := sorted[a].readingKey(), sorted[b].readingKey()
		if ka != kb {
			return ka < kb
		}
		return sorted[a].Seq < sorted[b].Seq
	})

	fused := make([]bool, len(sorted))
	out := make([]NormalizedBox, 0, len(sorted))
	for i := range sorted {
		if fused[i] {
			continue
		}
		cur := sorted[i]
		for j := i + 1; j < len(sorted) && j <= i+fragmentLookahead; j++ {
			if fused[j] {
				continue
			}
			next := sorted[j]
			if !sameLine(cur, next, th.LineTolerance) {
				continue
			}
			gap := next.Box.X0 - cur.Box.X1
			if gap < -fragmentOverlapSlack || gap > joinLimit(cur, next, th, cfg) {
				continue
			}
			cur = fuseFragments(cur, next)
			fused[j] = true
		}
		out = append(out, cur)
	}
	return out
}

func sameLine(a, b NormalizedBox, tolerance float64) bool {
	d := a.CenterY() - b.CenterY()
	if d < 0 {
		d = -d
	}
	return d <= tolerance
}

// joinLimit scales the allowed gap by character width, so dense small print
// joins on tighter gaps than large headings.
func joinLimit(a, b NormalizedBox, th Thresholds, cfg Config) float64 {
	cw := a.CharWidth
	if b.CharWidth > cw {
		cw = b.CharWidth
	}
	if cw <= 0 || cfg.MergeGapCharFactor <= 0 {
		return th.JoinGap
	}
	return cfg.MergeGapCharFactor * cw
}

// fuseFragments appends b's text to a's with a single space and takes the
// union geometry. Confidence is the weaker of the two so a shaky fragment
// is not laundered by a strong neighbor.
func fuseFragments(a, b NormalizedBox) NormalizedBox {
	out := a
	out.Text = strings.TrimRight(a.Text, " ") + " " + strings.TrimLeft(b.Text, " ")
	out.Box = a.Box.Union(b.Box)
	if b.Confidence < out.Confidence {
		out.Confidence = b.Confidence
	}
	if b.Seq < out.Seq {
		out.Seq = b.Seq
	}
	if n := utf8.RuneCountInString(out.Text); n > 0 {
		out.CharWidth = out.Box.Width() / float64(n)
	}
	out.WidthClass = ClassifyWidth(out.Box.Width())
	return out
}
