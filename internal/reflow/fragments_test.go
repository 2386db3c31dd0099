package reflow

import (
	"testing"
)

func fragTestThresholds() Thresholds {
	return Thresholds{LineTolerance: 2, JoinGap: 4, ColumnGap: 6}
}

func fragTestConfig() Config {
	return Config{MergeGapCharFactor: 3}
}

func TestMergeFragmentsJoinsSameLine(t *testing.T) {
	// "Pressure" and "relief valve" split by OCR, gap 1.0, char width ~1.
	a := nb(10, 10, 18, 13)
	a.Text = "Pressure"
	a.CharWidth = 1
	a.Seq = 0
	b := nb(19, 10, 31, 13)
	b.Text = "relief valve"
	b.CharWidth = 1
	b.Seq = 1

	got := MergeFragments([]NormalizedBox{a, b}, fragTestThresholds(), fragTestConfig())
	if len(got) != 1 {
		t.Fatalf("got %d boxes, want 1", len(got))
	}
	if got[0].Text != "Pressure relief valve" {
		t.Errorf("text = %q", got[0].Text)
	}
	if got[0].Box.X0 != 10 || got[0].Box.X1 != 31 {
		t.Errorf("union = %+v", got[0].Box)
	}
}

func TestMergeFragmentsChain(t *testing.T) {
	// Three fragments on one line fold into one box left to right.
	texts := []string{"annual", "inspection", "report"}
	var boxes []NormalizedBox
	x := 10.0
	for i, s := range texts {
		w := float64(len(s))
		b := nb(x, 20, x+w, 23)
		b.Text = s
		b.CharWidth = 1
		b.Seq = i
		boxes = append(boxes, b)
		x += w + 1.5
	}

	got := MergeFragments(boxes, fragTestThresholds(), fragTestConfig())
	if len(got) != 1 {
		t.Fatalf("got %d boxes, want 1", len(got))
	}
	if got[0].Text != "annual inspection report" {
		t.Errorf("text = %q", got[0].Text)
	}
}

func TestMergeFragmentsRespectsLineTolerance(t *testing.T) {
	a := nb(10, 10, 20, 13) // center y 11.5
	a.Text = "line one"
	a.CharWidth = 1
	b := nb(21, 16, 31, 19) // center y 17.5, well below tolerance
	b.Text = "line two"
	b.CharWidth = 1
	b.Seq = 1

	got := MergeFragments([]NormalizedBox{a, b}, fragTestThresholds(), fragTestConfig())
	if len(got) != 2 {
		t.Fatalf("got %d boxes, want 2 (different lines never join)", len(got))
	}
}

func TestMergeFragmentsRespectsGapLimit(t *testing.T) {
	// Gap 10 with char width 1 and factor 3 stays split: likely a column
	// gutter, not a word break.
	a := nb(10, 10, 20, 13)
	a.Text = "left col"
	a.CharWidth = 1
	b := nb(30, 10, 40, 13)
	b.Text = "right col"
	b.CharWidth = 1
	b.Seq = 1

	got := MergeFragments([]NormalizedBox{a, b}, fragTestThresholds(), fragTestConfig())
	if len(got) != 2 {
		t.Fatalf("got %d boxes, want 2 (gap beyond limit)", len(got))
	}
}

func TestMergeFragmentsFallsBackToJoinGap(t *testing.T) {
	// No char width on either box: the page-level JoinGap decides.
	a := nb(10, 10, 20, 13)
	a.Text = "alpha"
	b := nb(23, 10, 30, 13) // gap 3 <= JoinGap 4
	b.Text = "beta"
	b.Seq = 1

	got := MergeFragments([]NormalizedBox{a, b}, fragTestThresholds(), fragTestConfig())
	if len(got) != 1 {
		t.Fatalf("got %d boxes, want 1", len(got))
	}
	if got[0].Text != "alpha beta" {
		t.Errorf("text = %q", got[0].Text)
	}
}

func TestMergeFragmentsKeepsWeakestConfidence(t *testing.T) {
	a := nb(10, 10, 20, 13)
	a.Text = "strong"
	a.Confidence = 0.95
	a.CharWidth = 1
	b := nb(21, 10, 31, 13)
	b.Text = "weak"
	b.Confidence = 0.4
	b.CharWidth = 1
	b.Seq = 1

	got := MergeFragments([]NormalizedBox{a, b}, fragTestThresholds(), fragTestConfig())
	if len(got) != 1 {
		t.Fatalf("got %d boxes, want 1", len(got))
	}
	if got[0].Confidence != 0.4 {
		t.Errorf("confidence = %g, want 0.4", got[0].Confidence)
	}
}

func TestMergeFragmentsEmptyAndSingle(t *testing.T) {
	if got := MergeFragments(nil, fragTestThresholds(), fragTestConfig()); len(got) != 0 {
		t.Fatalf("empty input produced %d boxes", len(got))
	}
	one := nb(10, 10, 20, 13)
	one.Text = "solo"
	got := MergeFragments([]NormalizedBox{one}, fragTestThresholds(), fragTestConfig())
	if len(got) != 1 || got[0].Text != "solo" {
		t.Fatalf("single box changed: %+v", got)
	}
}
