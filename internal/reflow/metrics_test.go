package reflow

import (
	"math"
	"testing"

	"github.com/jackzampolin/reflow/internal/geometry"
)

func nb(x0, y0, x1, y1 float64) NormalizedBox {
	return NormalizedBox{Box: geometry.NewBox(x0, y0, x1, y1), BucketID: -1, ColumnID: -1}
}

func TestPercentile(t *testing.T) {
	cases := []struct {
		name   string
		values []float64
		q      float64
		want   float64
	}{
		{"empty", nil, 0.5, 0},
		{"single", []float64{7}, 0.5, 7},
		{"median even", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"median odd", []float64{5, 1, 3}, 0.5, 3},
		{"p25", []float64{0, 10, 20, 30, 40}, 0.25, 10},
		{"interpolated p25", []float64{0, 10}, 0.25, 2.5},
		{"q0 is min", []float64{9, 2, 5}, 0, 2},
		{"q1 is max", []float64{9, 2, 5}, 1, 9},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := percentile(tc.values, tc.q); math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("percentile(%v, %g) = %g, want %g", tc.values, tc.q, got, tc.want)
			}
		})
	}
}

func TestComputeStats(t *testing.T) {
	// Three stacked lines with gaps 2 and 4, widths 40/60/20, heights all 4.
	boxes := []NormalizedBox{
		nb(10, 10, 50, 14),
		nb(10, 16, 70, 20),
		nb(10, 24, 30, 28),
	}
	boxes[0].CharWidth = 1.0
	boxes[1].CharWidth = 2.0
	boxes[2].CharWidth = 3.0

	stats := ComputeStats(boxes)
	if stats.BoxCount != 3 {
		t.Errorf("BoxCount = %d, want 3", stats.BoxCount)
	}
	if stats.MedianBoxWidth != 40 {
		t.Errorf("MedianBoxWidth = %g, want 40", stats.MedianBoxWidth)
	}
	if stats.MedianBoxHeight != 4 {
		t.Errorf("MedianBoxHeight = %g, want 4", stats.MedianBoxHeight)
	}
	if stats.MedianCharWidth != 2 {
		t.Errorf("MedianCharWidth = %g, want 2", stats.MedianCharWidth)
	}
	if stats.MedianVerticalGap != 3 {
		t.Errorf("MedianVerticalGap = %g, want 3", stats.MedianVerticalGap)
	}
	if math.Abs(stats.VerticalGapP25-2.5) > 1e-9 {
		t.Errorf("VerticalGapP25 = %g, want 2.5", stats.VerticalGapP25)
	}
}

func TestComputeStatsIgnoresOverlapsAndEmpty(t *testing.T) {
	if stats := ComputeStats(nil); stats.BoxCount != 0 || stats.MedianBoxWidth != 0 {
		t.Fatalf("empty stats = %+v", stats)
	}

	// Overlapping boxes produce no positive vertical gaps.
	boxes := []NormalizedBox{
		nb(0, 10, 50, 20),
		nb(0, 15, 50, 25),
	}
	stats := ComputeStats(boxes)
	if stats.MedianVerticalGap != 0 || stats.VerticalGapP25 != 0 {
		t.Fatalf("overlap gaps = %+v, want zero", stats)
	}
}

func TestDeriveThresholdsDefaults(t *testing.T) {
	cfg := Config{ColumnGapFactor: 0.15, AdaptiveThresholds: true}

	// Under the sample minimum the fixed defaults hold.
	stats := SpacingStats{BoxCount: 5, MedianBoxWidth: 40}
	th := DeriveThresholds(stats, cfg)
	if th.LineTolerance != defaultLineTolerance {
		t.Errorf("LineTolerance = %g, want %g", th.LineTolerance, defaultLineTolerance)
	}
	if th.JoinGap != defaultJoinGap {
		t.Errorf("JoinGap = %g, want %g", th.JoinGap, defaultJoinGap)
	}
	if math.Abs(th.ColumnGap-6) > 1e-9 {
		t.Errorf("ColumnGap = %g, want 6", th.ColumnGap)
	}
}

func TestDeriveThresholdsAdaptive(t *testing.T) {
	cfg := Config{ColumnGapFactor: 0.15, AdaptiveThresholds: true}
	stats := SpacingStats{
		BoxCount:        20,
		MedianBoxWidth:  50,
		MedianBoxHeight: 3,
		MedianCharWidth: 0.8,
		VerticalGapP25:  2.5,
	}
	th := DeriveThresholds(stats, cfg)

	// max(2.5*0.8, 3*0.5) = 2.0
	if math.Abs(th.LineTolerance-2.0) > 1e-9 {
		t.Errorf("LineTolerance = %g, want 2.0", th.LineTolerance)
	}
	if math.Abs(th.JoinGap-2.0) > 1e-9 {
		t.Errorf("JoinGap = %g, want 2.0", th.JoinGap)
	}
	if math.Abs(th.ColumnGap-7.5) > 1e-9 {
		t.Errorf("ColumnGap = %g, want 7.5", th.ColumnGap)
	}
}

func TestDeriveThresholdsColumnGapFallback(t *testing.T) {
	cfg := Config{ColumnGapFactor: 0.15}
	th := DeriveThresholds(SpacingStats{BoxCount: 3}, cfg)
	if th.ColumnGap != fallbackColumnGap {
		t.Errorf("ColumnGap = %g, want fallback %g", th.ColumnGap, fallbackColumnGap)
	}

	// Adaptive mode off keeps defaults even with a large sample.
	stats := SpacingStats{BoxCount: 100, MedianBoxHeight: 8, VerticalGapP25: 10, MedianCharWidth: 2}
	th = DeriveThresholds(stats, Config{})
	if th.LineTolerance != defaultLineTolerance || th.JoinGap != defaultJoinGap {
		t.Errorf("non-adaptive thresholds = %+v, want defaults", th)
	}
}
