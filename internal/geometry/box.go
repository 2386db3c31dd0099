// Package geometry provides the axis-aligned bounding box math used
// throughout the reflow pipeline. Boxes are immutable values; every
// operation returns a new Box.
package geometry

// Box is an axis-aligned rectangle in edge form. The JSON field names
// match the page output contract (left/top/right/bottom).
type Box struct {
	X0 float64 `json:"left"`
	Y0 float64 `json:"top"`
	X1 float64 `json:"right"`
	Y1 float64 `json:"bottom"`
}

// NewBox returns a Box with canonical edge ordering (X0 <= X1, Y0 <= Y1).
func NewBox(x0, y0, x1, y1 float64) Box {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	return Box{X0: x0, Y0: y0, X1: x1, Y1: y1}
}

// Width returns the horizontal extent.
func (b Box) Width() float64 { return b.X1 - b.X0 }

// Height returns the vertical extent.
func (b Box) Height() float64 { return b.Y1 - b.Y0 }

// Area returns width times height, zero for degenerate boxes.
func (b Box) Area() float64 {
	if b.IsEmpty() {
		return 0
	}
	return b.Width() * b.Height()
}

// CenterX returns the horizontal midpoint.
func (b Box) CenterX() float64 { return (b.X0 + b.X1) / 2 }

// CenterY returns the vertical midpoint.
func (b Box) CenterY() float64 { return (b.Y0 + b.Y1) / 2 }

// IsEmpty reports whether the box has no positive extent in either axis.
func (b Box) IsEmpty() bool { return b.X1 <= b.X0 || b.Y1 <= b.Y0 }

// Union returns the smallest box containing both b and o. Empty operands
// are ignored so a zero Box is a safe accumulator seed.
func (b Box) Union(o Box) Box {
	if b.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return b
	}
	return Box{
		X0: min(b.X0, o.X0),
		Y0: min(b.Y0, o.Y0),
		X1: max(b.X1, o.X1),
		Y1: max(b.Y1, o.Y1),
	}
}

// Intersect returns the overlapping region of b and o, or a zero Box
// when they are disjoint.
func (b Box) Intersect(o Box) Box {
	x0 := max(b.X0, o.X0)
	y0 := max(b.Y0, o.Y0)
	x1 := min(b.X1, o.X1)
	y1 := min(b.Y1, o.Y1)
	if x1 <= x0 || y1 <= y0 {
		return Box{}
	}
	return Box{X0: x0, Y0: y0, X1: x1, Y1: y1}
}

// Intersects reports whether b and o share any positive area.
func (b Box) Intersects(o Box) bool { return !b.Intersect(o).IsEmpty() }

// IoU returns intersection-over-union in [0,1]. Degenerate inputs
// yield 0.
func (b Box) IoU(o Box) float64 {
	inter := b.Intersect(o).Area()
	if inter == 0 {
		return 0
	}
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Translate returns b shifted by (dx, dy).
func (b Box) Translate(dx, dy float64) Box {
	return Box{X0: b.X0 + dx, Y0: b.Y0 + dy, X1: b.X1 + dx, Y1: b.Y1 + dy}
}

// Scale returns b with both edges multiplied by (sx, sy).
func (b Box) Scale(sx, sy float64) Box {
	return Box{X0: b.X0 * sx, Y0: b.Y0 * sy, X1: b.X1 * sx, Y1: b.Y1 * sy}
}

// Clip constrains b to the rectangle [minX,maxX]x[minY,maxY].
func (b Box) Clip(minX, minY, maxX, maxY float64) Box {
	clampf := func(v, lo, hi float64) float64 {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	}
	return Box{
		X0: clampf(b.X0, minX, maxX),
		Y0: clampf(b.Y0, minY, maxY),
		X1: clampf(b.X1, minX, maxX),
		Y1: clampf(b.Y1, minY, maxY),
	}
}

// ContainsPoint reports whether (x, y) lies inside b (edges inclusive).
func (b Box) ContainsPoint(x, y float64) bool {
	return x >= b.X0 && x <= b.X1 && y >= b.Y0 && y <= b.Y1
}
