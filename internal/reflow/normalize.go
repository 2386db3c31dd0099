package reflow

import (
	"fmt"
	"unicode/utf8"
)

// Normalize rescales page-pixel boxes onto the page-relative [0,100] grid.
// Downstream thresholds (row tolerance, column gaps, stack tolerances) are
// expressed in these units, so the same config works across page sizes and
// DPIs. Coordinates are clipped to the grid; boxes that lie fully outside
// the page collapse to a zero-area box on the edge rather than vanishing.
func Normalize(width, height float64, boxes []TextBox) ([]NormalizedBox, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %gx%g", ErrInvalidDimension, width, height)
	}

	sx := 100 / width
	sy := 100 / height

	out := make([]NormalizedBox, 0, len(boxes))
	for i, b := range boxes {
		nb := NormalizedBox{
			Text:       b.Text,
			Box:        b.Box.Scale(sx, sy).Clip(0, 0, 100, 100),
			QuadrantID: b.QuadrantID,
			Confidence: b.Confidence,
			BucketID:   -1,
			ColumnID:   -1,
			Seq:        i,
		}
		if n := utf8.RuneCountInString(b.Text); n > 0 {
			nb.CharWidth = nb.Box.Width() / float64(n)
		}
		nb.WidthClass = ClassifyWidth(nb.Box.Width())
		out = append(out, nb)
	}
	return out, nil
}
