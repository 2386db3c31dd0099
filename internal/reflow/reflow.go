package reflow

import "fmt"

// Stage names in execution order. Tracing and intermediate artifact files
// are keyed by these.
const (
	StageMerge     = "merge"
	StageNormalize = "normalize"
	StageFragments = "fragments"
	StageRows      = "rows"
	StageColumns   = "columns"
	StageOrder     = "order"
)

// Stages lists the per-page stages in execution order.
var Stages = []string{StageMerge, StageNormalize, StageFragments, StageRows, StageColumns, StageOrder}

// Tracer receives each stage's output as it completes, for intermediate
// artifact dumps. A nil Tracer skips tracing.
type Tracer func(stage string, payload any)

// Reflow runs the full per-page transform: quadrant merge, coordinate
// normalization, spacing metrics, fragment merge, row bucketing, column
// stacking, order assembly. The input is not modified.
//
// Invalid page dimensions fail the whole page with ErrInvalidDimension.
// An empty record set is not an error; it yields an empty Result.
func Reflow(in PageInput, cfg Config) (*Result, error) {
	return ReflowTraced(in, cfg, nil)
}

// ReflowTraced is Reflow with a stage observer attached.
func ReflowTraced(in PageInput, cfg Config, trace Tracer) (*Result, error) {
	if in.Width <= 0 || in.Height <= 0 {
		return nil, fmt.Errorf("%w: page %s is %gx%g", ErrInvalidDimension, in.PageID, in.Width, in.Height)
	}

	merged := MergeQuadrants(in.Records, in.Offsets, cfg)
	emit(trace, StageMerge, merged)

	normalized, err := Normalize(in.Width, in.Height, merged.Boxes)
	if err != nil {
		return nil, err
	}
	emit(trace, StageNormalize, normalized)

	stats := ComputeStats(normalized)
	th := DeriveThresholds(stats, cfg)

	lines := MergeFragments(normalized, th, cfg)
	emit(trace, StageFragments, lines)

	buckets := BucketRows(lines, cfg.RowTolerancePct)
	emit(trace, StageRows, buckets)

	columns := StackColumns(buckets, th)
	emit(trace, StageColumns, columns)

	order := AssembleOrder(columns, cfg)
	emit(trace, StageOrder, order)

	return &Result{
		PageID:                 in.PageID,
		Boxes:                  order,
		Buckets:                buckets,
		Columns:                columns,
		Stats:                  stats,
		Conflicts:              merged.Conflicts,
		DroppedLowConfidence:   merged.DroppedLowConfidence,
		DroppedEmptyText:       merged.DroppedEmptyText,
		DroppedUnknownQuadrant: merged.DroppedUnknownQuadrant,
	}, nil
}

func emit(trace Tracer, stage string, payload any) {
	if trace != nil {
		trace(stage, payload)
	}
}
