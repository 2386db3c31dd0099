package reflow

import "sort"

// crossColumnSlack is how far (normalized units) a box must extend past a
// column boundary on both sides before it is flagged as cross-column.
// Touching a gutter does not count as spanning it.
const crossColumnSlack = 2.0

// stage order within a column: top band first, then left to right.
func columnLess(a, b NormalizedBox) bool {
	if a.BucketID != b.BucketID {
		return a.BucketID < b.BucketID
	}
	if a.Box.X0 != b.Box.X0 {
		return a.Box.X0 < b.Box.X0
	}
	return a.Seq < b.Seq
}

// StackColumns partitions bucketed boxes into vertical columns found by
// horizontal gap analysis, assigns every box to the column holding its
// center, and orders each column top to bottom. Columns are returned left
// to right.
//
// Boxes that span a gutter by more than crossColumnSlack on both sides are
// flagged CrossColumn but still assigned whole by center; they are never
// split across columns.
func StackColumns(buckets []RowBucket, th Thresholds) []ColumnStack {
	var boxes []NormalizedBox
	for _, bucket := range buckets {
		boxes = append(boxes, bucket.Boxes...)
	}
	if len(boxes) == 0 {
		return nil
	}

	boundaries := columnBoundaries(boxes, th.ColumnGap)

	columns := make([]ColumnStack, len(boundaries)+1)
	for i := range columns {
		columns[i].ID = i
		columns[i].Left = 0
		columns[i].Right = 100
		if i > 0 {
			columns[i].Left = boundaries[i-1]
		}
		if i < len(boundaries) {
			columns[i].Right = boundaries[i]
		}
	}

	for _, b := range boxes {
		col := 0
		for _, bd := range boundaries {
			if bd < b.CenterX() {
				col++
			}
		}
		b.ColumnID = col
		b.CrossColumn = spansBoundary(b, boundaries)
		columns[col].Boxes = append(columns[col].Boxes, b)
	}

	for i := range columns {
		members := columns[i].Boxes
		sort.Slice(members, func(a, b int) bool { return columnLess(members[a], members[b]) })
	}
	return columns
}

// columnBoundaries scans left to right over the non-wide boxes, tracking the
// running right edge of coverage. A horizontal hole wider than minGap is a
// gutter; the boundary sits at its midpoint. Wide boxes are excluded since a
// full-width heading or table would bridge every gutter.
func columnBoundaries(boxes []NormalizedBox, minGap float64) []float64 {
	var xs []NormalizedBox
	for _, b := range boxes {
		if b.WidthClass != WidthWide {
			xs = append(xs, b)
		}
	}
	if len(xs) < 2 {
		return nil
	}
	sort.Slice(xs, func(a, b int) bool {
		if xs[a].Box.X0 != xs[b].Box.X0 {
			return xs[a].Box.X0 < xs[b].Box.X0
		}
		return xs[a].Seq < xs[b].Seq
	})

	var boundaries []float64
	coverRight := xs[0].Box.X1
	for _, b := range xs[1:] {
		if b.Box.X0-coverRight > minGap {
			boundaries = append(boundaries, (coverRight+b.Box.X0)/2)
		}
		if b.Box.X1 > coverRight {
			coverRight = b.Box.X1
		}
	}
	return boundaries
}

func spansBoundary(b NormalizedBox, boundaries []float64) bool {
	for _, bd := range boundaries {
		if b.Box.X0+crossColumnSlack < bd && b.Box.X1-crossColumnSlack > bd {
			return true
		}
	}
	return false
}

// AssembleOrder flattens columns left to right into the page reading order,
// then repairs stacking: a box that sits directly under another (near-zero
// vertical gap, left or right edges aligned) is pulled up to follow it
// immediately, so a paragraph split across buckets reads as one run.
func AssembleOrder(columns []ColumnStack, cfg Config) []NormalizedBox {
	var order []NormalizedBox
	for _, col := range columns {
		order = append(order, col.Boxes...)
	}

	for i := 0; i+1 < len(order); i++ {
		cur := order[i]
		for j := i + 1; j < len(order); j++ {
			if !stacksDirectlyUnder(cur, order[j], cfg) {
				continue
			}
			if j > i+1 {
				pulled := order[j]
				copy(order[i+2:j+1], order[i+1:j])
				order[i+1] = pulled
			}
			break
		}
	}
	return order
}

func stacksDirectlyUnder(top, bottom NormalizedBox, cfg Config) bool {
	gap := bottom.Box.Y0 - top.Box.Y1
	if gap < 0 || gap > cfg.StackGapTolerance {
		return false
	}
	dl := top.Box.X0 - bottom.Box.X0
	if dl < 0 {
		dl = -dl
	}
	dr := top.Box.X1 - bottom.Box.X1
	if dr < 0 {
		dr = -dr
	}
	return dl <= cfg.StackAlignTolerance || dr <= cfg.StackAlignTolerance
}
