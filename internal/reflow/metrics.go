package reflow

import "sort"

// Adaptive thresholds need a minimum sample to beat the fixed defaults.
const adaptiveMinBoxes = 10

// Fixed fallbacks, in normalized units.
const (
	defaultLineTolerance = 2.0
	defaultJoinGap       = 4.0
	fallbackColumnGap    = 3.0
)

// SpacingStats summarizes the geometry of a page's boxes. Sparse pages
// produce partial stats; consumers fall back to defaults for zero fields.
type SpacingStats struct {
	BoxCount          int     `json:"box_count"`
	MedianBoxWidth    float64 `json:"median_box_width"`
	MedianBoxHeight   float64 `json:"median_box_height"`
	MedianCharWidth   float64 `json:"median_char_width"`
	MedianVerticalGap float64 `json:"median_vertical_gap"`
	VerticalGapP25    float64 `json:"vertical_gap_p25"`
}

// Thresholds are the resolved per-page decision limits, in normalized units.
type Thresholds struct {
	// LineTolerance is the max vertical center distance at which two boxes
	// are treated as the same visual line for fragment merging.
	LineTolerance float64
	// JoinGap is the max horizontal gap at which same-line fragments merge
	// when per-box character width is unknown.
	JoinGap float64
	// ColumnGap is the minimum horizontal gutter that splits columns.
	ColumnGap float64
}

// ComputeStats measures box widths, heights, character widths, and the
// vertical gaps between consecutive boxes in top-edge order.
func ComputeStats(boxes []NormalizedBox) SpacingStats {
	stats := SpacingStats{BoxCount: len(boxes)}
	if len(boxes) == 0 {
		return stats
	}

	widths := make([]float64, 0, len(boxes))
	heights := make([]float64, 0, len(boxes))
	charWidths := make([]float64, 0, len(boxes))
	tops := make([]float64, 0, len(boxes))
	bottoms := make([]float64, 0, len(boxes))

	order := make([]int, len(boxes))
	for i := range boxes {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return boxes[order[a]].Box.Y0 < boxes[order[b]].Box.Y0
	})

	for _, idx := range order {
		b := boxes[idx]
		widths = append(widths, b.Box.Width())
		heights = append(heights, b.Box.Height())
		if b.CharWidth > 0 {
			charWidths = append(charWidths, b.CharWidth)
		}
		tops = append(tops, b.Box.Y0)
		bottoms = append(bottoms, b.Box.Y1)
	}

	var gaps []float64
	for i := 1; i < len(tops); i++ {
		if gap := tops[i] - bottoms[i-1]; gap > 0 {
			gaps = append(gaps, gap)
		}
	}

	stats.MedianBoxWidth = percentile(widths, 0.5)
	stats.MedianBoxHeight = percentile(heights, 0.5)
	stats.MedianCharWidth = percentile(charWidths, 0.5)
	stats.MedianVerticalGap = percentile(gaps, 0.5)
	stats.VerticalGapP25 = percentile(gaps, 0.25)
	return stats
}

// DeriveThresholds resolves the per-page limits. With AdaptiveThresholds on
// and enough boxes, line and join limits come from the page's own spacing;
// otherwise the fixed defaults apply. The column gap always tracks median
// box width so dense and sparse layouts split on the same relative gutter.
func DeriveThresholds(stats SpacingStats, cfg Config) Thresholds {
	th := Thresholds{
		LineTolerance: defaultLineTolerance,
		JoinGap:       defaultJoinGap,
		ColumnGap:     fallbackColumnGap,
	}

	if stats.MedianBoxWidth > 0 && cfg.ColumnGapFactor > 0 {
		th.ColumnGap = cfg.ColumnGapFactor * stats.MedianBoxWidth
	}

	if !cfg.AdaptiveThresholds || stats.BoxCount < adaptiveMinBoxes {
		return th
	}

	if lt := adaptiveLineTolerance(stats); lt > 0 {
		th.LineTolerance = lt
	}
	if stats.MedianCharWidth > 0 {
		th.JoinGap = stats.MedianCharWidth * 2.5
	}
	return th
}

// adaptiveLineTolerance keys off the tighter of the typical inter-line gap
// and half the typical box height, so tightly leaded pages do not merge
// across lines.
func adaptiveLineTolerance(stats SpacingStats) float64 {
	fromGaps := stats.VerticalGapP25 * 0.8
	fromHeight := stats.MedianBoxHeight * 0.5
	if fromGaps > fromHeight {
		return fromGaps
	}
	return fromHeight
}

// percentile returns the linearly interpolated q-quantile of values.
// It returns 0 for an empty slice. values is not modified.
func percentile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	frac := pos - float64(lo)
	if lo+1 >= len(sorted) {
		return sorted[lo]
	}
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
