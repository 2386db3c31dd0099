package reflow

import "sort"

// BucketRows groups boxes into horizontal bands by vertical center.
// Boxes are walked top to bottom; a new bucket opens when the gap from the
// previous box's center exceeds tolerance. A gap of exactly tolerance stays
// in the bucket. Linking is to the previous box, not the bucket centroid,
// so a gradual drift can chain distant boxes into one bucket.
//
// Bucket IDs are ordinals top to bottom starting at zero. Within a bucket,
// boxes are ordered left to right.
func BucketRows(boxes []NormalizedBox, tolerance float64) []RowBucket {
	if len(boxes) == 0 {
		return nil
	}

	sorted := make([]NormalizedBox, len(boxes))
	copy(sorted, boxes)
	sort.Slice(sorted, func(a, b int) bool {
		ca, cb := sorted[a].CenterY(), sorted[b].CenterY()
		if ca != cb {
			return ca < cb
		}
		if sorted[a].Box.X0 != sorted[b].Box.X0 {
			return sorted[a].Box.X0 < sorted[b].Box.X0
		}
		return sorted[a].Seq < sorted[b].Seq
	})

	var buckets []RowBucket
	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i < len(sorted) && sorted[i].CenterY()-sorted[i-1].CenterY() <= tolerance {
			continue
		}
		buckets = append(buckets, makeBucket(len(buckets), sorted[start:i]))
		start = i
	}
	return buckets
}

func makeBucket(id int, members []NormalizedBox) RowBucket {
	b := RowBucket{ID: id, Boxes: make([]NormalizedBox, len(members))}
	copy(b.Boxes, members)
	sort.Slice(b.Boxes, func(x, y int) bool {
		if b.Boxes[x].Box.X0 != b.Boxes[y].Box.X0 {
			return b.Boxes[x].Box.X0 < b.Boxes[y].Box.X0
		}
		return b.Boxes[x].Seq < b.Boxes[y].Seq
	})
	for i := range b.Boxes {
		b.Boxes[i].BucketID = id
		b.Box = b.Box.Union(b.Boxes[i].Box)
	}
	return b
}
