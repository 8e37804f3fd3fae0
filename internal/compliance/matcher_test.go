package compliance

import (
	"errors"
	"reflect"
	"testing"

	"github.com/xelth-com/eckplanogram/internal/layout"
)

func buildLayout(t *testing.T, placements ...layout.Placement) layout.Layout {
	t.Helper()
	return layout.Layout{{ID: "row-1", Label: "Top", Placements: placements}}
}

func placement(id string, ref layout.ProductRef, facings int) layout.Placement {
	return layout.Placement{InstanceID: id, Product: ref, Facings: facings}
}

func detections(label string, n int) []Detection {
	out := make([]Detection, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Detection{Label: label, Confidence: 0.9})
	}
	return out
}

func TestMatchScenarioA(t *testing.T) {
	l := buildLayout(t, placement("i1", layout.Registered{ProductID: "A", Name: "A"}, 4))

	res, err := NewMatcher().Match(l, detections("a", 6))
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}

	d := res.Details[0]
	if d.ActualCount != 6 || d.Status != StatusCompliant {
		t.Errorf("Expected actual=6 compliant, got %d %s", d.ActualCount, d.Status)
	}
	if res.TotalExpected != 4 || res.TotalFound != 6 || res.Score != 100 {
		t.Errorf("Unexpected totals: %+v", res)
	}
	if res.TotalExtra != 0 {
		t.Errorf("Expected no extras, got %d", res.TotalExtra)
	}
}

func TestMatchScenarioB(t *testing.T) {
	l := buildLayout(t,
		placement("i1", layout.Registered{ProductID: "A", Name: "A"}, 4),
		placement("i2", layout.Registered{ProductID: "B", Name: "B"}, 2),
	)

	res, err := NewMatcher().Match(l, detections("a", 2))
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}

	if res.Details[0].Status != StatusPartial || res.Details[0].ActualCount != 2 {
		t.Errorf("A: expected partial with 2, got %+v", res.Details[0])
	}
	if res.Details[1].Status != StatusMissing || res.Details[1].ActualCount != 0 {
		t.Errorf("B: expected missing with 0, got %+v", res.Details[1])
	}
	if res.TotalExpected != 6 || res.TotalFound != 2 || res.TotalMissing != 2 || res.Score != 33 {
		t.Errorf("Unexpected totals: %+v", res)
	}
}

func TestMatchCapsOverDetection(t *testing.T) {
	l := buildLayout(t, placement("i1", layout.Registered{ProductID: "cola", Name: "Cola 0.5L"}, 3))

	res, err := NewMatcher().Match(l, detections("cola", 40))
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if got := res.Details[0].ActualCount; got != 5 {
		t.Errorf("Expected actual capped at 5, got %d", got)
	}
	if res.TotalExtra != 35 {
		t.Errorf("Expected 35 extras, got %d", res.TotalExtra)
	}
	if res.Score != 100 {
		t.Errorf("Score must be clamped to 100, got %d", res.Score)
	}
}

func TestMatchAggregatesFacingsAcrossRows(t *testing.T) {
	ref := layout.Registered{ProductID: "p1", Name: "Chips"}
	l := layout.Layout{
		{ID: "r1", Placements: []layout.Placement{placement("a", ref, 2), placement("b", ref, 1)}},
		{ID: "r2", Placements: []layout.Placement{placement("c", ref, 3)}},
		{ID: "r3", Placements: []layout.Placement{placement("d", layout.Unregistered{Name: "Chips"}, 5)}},
	}

	exp := Aggregate(l)
	if len(exp) != 1 || exp[0].Count != 6 {
		t.Fatalf("Expected one product with 6 facings, got %+v", exp)
	}
}

func TestMatchUnregisteredOnly(t *testing.T) {
	l := buildLayout(t, placement("i1", layout.Unregistered{Name: "Promo"}, 3))

	res, err := NewMatcher().Match(l, detections("promo", 3))
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if res.Score != 0 || res.TotalExpected != 0 || len(res.Details) != 0 {
		t.Errorf("Unregistered placements must be ignored, got %+v", res)
	}
	if res.TotalExtra != 3 {
		t.Errorf("Expected 3 extras, got %d", res.TotalExtra)
	}
}

func TestMatchNilDetections(t *testing.T) {
	l := buildLayout(t, placement("i1", layout.Registered{ProductID: "A", Name: "A"}, 1))

	if _, err := NewMatcher().Match(l, nil); !errors.Is(err, ErrNoDetections) {
		t.Errorf("Expected ErrNoDetections, got %v", err)
	}

	res, err := NewMatcher().Match(l, []Detection{})
	if err != nil {
		t.Fatalf("Empty detections are a valid result: %v", err)
	}
	if res.Details[0].Status != StatusMissing || res.Score != 0 {
		t.Errorf("Expected missing and score 0, got %+v", res)
	}
}

func TestMatchDeterministic(t *testing.T) {
	l := buildLayout(t,
		placement("i1", layout.Registered{ProductID: "A", Name: "Orange Juice"}, 2),
		placement("i2", layout.Registered{ProductID: "B", Name: "Apple Juice"}, 2),
	)
	dets := append(detections("juice", 3), detections("orange juice", 1)...)
	dets = append(dets, detections("apple", 2)...)

	m := NewMatcher()
	first, err := m.Match(l, dets)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, _ := m.Match(l, dets)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("Run %d differs: %+v vs %+v", i, first, again)
		}
	}

	if first.Details[0].MatchedLabel != "orange juice" {
		t.Errorf("Exact label should win the tie-break, got %q", first.Details[0].MatchedLabel)
	}
	if first.Details[1].MatchedLabel != "juice" {
		t.Errorf("Higher count should win among substring matches, got %q", first.Details[1].MatchedLabel)
	}
}

func TestStatusPartition(t *testing.T) {
	for expected := 1; expected <= 4; expected++ {
		for found := 0; found <= 10; found++ {
			l := buildLayout(t, placement("i", layout.Registered{ProductID: "x", Name: "Soda"}, expected))
			res, err := NewMatcher().Match(l, detections("SODA", found))
			if err != nil {
				t.Fatalf("Match failed: %v", err)
			}
			d := res.Details[0]
			if d.ActualCount > expected+OverDetectionAllowance {
				t.Errorf("Cap violated: expected=%d actual=%d", expected, d.ActualCount)
			}
			if (d.Status == StatusMissing) != (d.ActualCount == 0) {
				t.Errorf("missing <=> actual==0 violated: %+v", d)
			}
			if (d.Status == StatusCompliant) != (d.ActualCount >= expected) {
				t.Errorf("compliant <=> actual>=expected violated: %+v", d)
			}
			if res.Score < 0 || res.Score > 100 {
				t.Errorf("Score out of range: %d", res.Score)
			}
		}
	}
}

func TestScore(t *testing.T) {
	cases := []struct {
		found, expected, want int
	}{
		{0, 0, 0},
		{5, 0, 0},
		{2, 6, 33},
		{1, 2, 50},
		{1, 3, 33},
		{2, 3, 67},
		{6, 4, 100},
		{0, 7, 0},
	}
	for _, tc := range cases {
		if got := Score(tc.found, tc.expected); got != tc.want {
			t.Errorf("Score(%d, %d) = %d, want %d", tc.found, tc.expected, got, tc.want)
		}
	}
}
