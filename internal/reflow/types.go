// Package reflow reconstructs reading order from spatially scattered OCR
// text boxes. The per-page transform is a strict forward pipeline: quadrant
// merge, coordinate normalization, spacing metrics, fragment merge, row
// bucketing, column stacking. Chunking is a separate phase (internal/chunk).
package reflow

import (
	"github.com/jackzampolin/reflow/internal/geometry"
)

// TextBox is one OCR record. Coordinates are quadrant-local pixels until
// MergeQuadrants translates them into page pixel space.
type TextBox struct {
	Text       string       `json:"text"`
	Box        geometry.Box `json:"bbox"`
	PageID     string       `json:"page_id"`
	QuadrantID string       `json:"quadrant_id"`
	Confidence float64      `json:"confidence"`
}

// NormalizedBox is a TextBox rescaled onto the page-relative [0,100] grid,
// annotated with derived metrics and, as later stages run, with its row
// bucket and column assignments.
type NormalizedBox struct {
	Text       string       `json:"text"`
	Box        geometry.Box `json:"bbox"`
	QuadrantID string       `json:"quadrant_id,omitempty"`
	Confidence float64      `json:"confidence"`

	// Metrics, set by AnnotateMetrics.
	CharWidth  float64    `json:"char_width,omitempty"`
	WidthClass WidthClass `json:"width_class,omitempty"`

	// Assignments. -1 until the corresponding stage has run.
	BucketID    int  `json:"bucket_id"`
	ColumnID    int  `json:"column_id"`
	CrossColumn bool `json:"cross_column,omitempty"`

	// Seq is the stable input ordinal, used to break sorting ties so the
	// pipeline is deterministic for identical input.
	Seq int `json:"-"`
}

// CenterY is the vertical midpoint of the box.
func (b NormalizedBox) CenterY() float64 { return b.Box.CenterY() }

// CenterX is the horizontal midpoint of the box.
func (b NormalizedBox) CenterX() float64 { return b.Box.CenterX() }

// readingKey approximates reading order: top-to-bottom with a small
// left-to-right bias so boxes on the same visual line sort left first.
func (b NormalizedBox) readingKey() float64 {
	return b.Box.CenterY() + b.Box.X0/50
}

// WidthClass buckets a box by its normalized width.
type WidthClass string

const (
	WidthNarrow WidthClass = "narrow" // width < 40 normalized units
	WidthMedium WidthClass = "medium" // 40 <= width < 70
	WidthWide   WidthClass = "wide"   // width >= 70
)

// ClassifyWidth returns the width class for a normalized width.
func ClassifyWidth(width float64) WidthClass {
	switch {
	case width < 40:
		return WidthNarrow
	case width < 70:
		return WidthMedium
	default:
		return WidthWide
	}
}

// RowBucket is a horizontal band of boxes at similar vertical position.
// Boxes are ordered left-to-right. IDs are ordinals top-to-bottom.
type RowBucket struct {
	ID    int             `json:"bucket_id"`
	Box   geometry.Box    `json:"bbox"`
	Boxes []NormalizedBox `json:"boxes"`
}

// ColumnStack is a vertical partition of the page's horizontal extent.
// Boxes are ordered top-to-bottom in reading order; columns left-to-right.
type ColumnStack struct {
	ID    int             `json:"column_id"`
	Left  float64         `json:"left"`
	Right float64         `json:"right"`
	Boxes []NormalizedBox `json:"boxes"`
}

// SeamConflict records two overlapping quadrant boxes whose text diverged.
// Both boxes are retained in the page; the conflict is surfaced for review.
type SeamConflict struct {
	QuadrantA  string       `json:"quadrant_a"`
	QuadrantB  string       `json:"quadrant_b"`
	TextA      string       `json:"text_a"`
	TextB      string       `json:"text_b"`
	BoxA       geometry.Box `json:"bbox_a"`
	BoxB       geometry.Box `json:"bbox_b"`
	IoU        float64      `json:"iou"`
	Similarity float64      `json:"similarity"`
}

// QuadrantOffset translates a quadrant's local origin into page pixels.
type QuadrantOffset struct {
	X float64 `json:"offset_x"`
	Y float64 `json:"offset_y"`
}

// PageInput is the fully materialized input for one page transform.
type PageInput struct {
	PageID  string
	Width   float64 // page width in pixels
	Height  float64 // page height in pixels
	Offsets map[string]QuadrantOffset
	Records []TextBox
}

// Config holds the reflow thresholds. All values are in normalized units
// unless noted. See config.DefaultConfig for the defaults.
type Config struct {
	RowTolerancePct             float64 // row bucket tolerance (percent of page height)
	SeamIoUThreshold            float64 // quadrant dedup: minimum IoU
	SeamTextSimilarityThreshold float64 // quadrant dedup: minimum text similarity
	MinConfidence               float64 // records below this are dropped
	ColumnGapFactor             float64 // column cut at gap > factor * median box width
	StackAlignTolerance         float64 // edge alignment for adjacency stacking
	StackGapTolerance           float64 // max vertical gap for adjacency stacking
	MergeGapCharFactor          float64 // fragment join at gap < factor * char width
	AdaptiveThresholds          bool    // derive merge thresholds from page statistics
}

// Result is the output of the reflow phase for one page: the reading order
// plus everything the chunker and the output writer need.
type Result struct {
	PageID  string
	Boxes   []NormalizedBox // final reading order
	Buckets []RowBucket
	Columns []ColumnStack
	Stats   SpacingStats

	Conflicts              []SeamConflict
	DroppedLowConfidence   int
	DroppedEmptyText       int
	DroppedUnknownQuadrant int
}

// Empty reports whether the page produced no boxes (a valid outcome that
// yields a zero-chunk page record downstream).
func (r *Result) Empty() bool { return len(r.Boxes) == 0 }
