package compliance

import (
	"errors"
	"math"
	"sort"

	"github.com/xelth-com/eckplanogram/internal/layout"
)

// ErrNoDetections means the detector produced no usable result. No scan may
// be built from it; an empty (non-nil) detection list is a valid empty shelf.
var ErrNoDetections = errors.New("no usable detection result")

// OverDetectionAllowance caps a matched count at expected + allowance
const OverDetectionAllowance = 2

// Status of one expected product
type Status string

const (
	StatusCompliant Status = "compliant"
	StatusPartial   Status = "partial"
	StatusMissing   Status = "missing"
)

// Detection is one raw detector prediction. Only Label is used for scoring.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	X          float64 `json:"x,omitempty"`
	Y          float64 `json:"y,omitempty"`
	Width      float64 `json:"width,omitempty"`
	Height     float64 `json:"height,omitempty"`
}

// Detail is the per-product verdict of a scan
type Detail struct {
	ProductID     string `json:"productId"`
	ProductName   string `json:"productName"`
	ExpectedCount int    `json:"expectedCount"`
	ActualCount   int    `json:"actualCount"`
	MatchedLabel  string `json:"matchedLabel,omitempty"`
	Status        Status `json:"status"`
}

// Result is an unpersisted compliance scan
type Result struct {
	Score         int      `json:"complianceScore"`
	TotalExpected int      `json:"totalExpected"`
	TotalFound    int      `json:"totalFound"`
	TotalMissing  int      `json:"totalMissing"`
	TotalExtra    int      `json:"totalExtra"`
	Details       []Detail `json:"details"`
}

// Expected is the aggregated expectation for one registered product
type Expected struct {
	ProductID string
	Name      string
	Count     int
}

// Matcher scores a layout against detector output
type Matcher struct {
	Resolver Resolver
}

// NewMatcher returns a matcher using the substring resolver
func NewMatcher() *Matcher {
	return &Matcher{Resolver: SubstringResolver{}}
}

// Aggregate sums facings per registered product in order of first appearance.
// Unregistered placements are skipped.
func Aggregate(l layout.Layout) []Expected {
	var out []Expected
	index := make(map[string]int)
	for _, row := range l {
		for _, p := range row.Placements {
			ref, ok := p.Product.(layout.Registered)
			if !ok {
				continue
			}
			if i, seen := index[ref.ProductID]; seen {
				out[i].Count += p.Facings
				continue
			}
			index[ref.ProductID] = len(out)
			out = append(out, Expected{ProductID: ref.ProductID, Name: ref.Name, Count: p.Facings})
		}
	}
	return out
}

// CountLabels groups detections by label, sorted by label
func CountLabels(detections []Detection) []LabelCount {
	counts := make(map[string]int)
	for _, d := range detections {
		counts[d.Label]++
	}
	out := make([]LabelCount, 0, len(counts))
	for label, n := range counts {
		out = append(out, LabelCount{Label: label, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// Match compares the expected layout with the detections
func (m *Matcher) Match(l layout.Layout, detections []Detection) (*Result, error) {
	if detections == nil {
		return nil, ErrNoDetections
	}
	resolver := m.Resolver
	if resolver == nil {
		resolver = SubstringResolver{}
	}

	labels := CountLabels(detections)
	counts := make(map[string]int, len(labels))
	for _, lc := range labels {
		counts[lc.Label] = lc.Count
	}

	res := &Result{Details: []Detail{}}
	for _, exp := range Aggregate(l) {
		d := Detail{
			ProductID:     exp.ProductID,
			ProductName:   exp.Name,
			ExpectedCount: exp.Count,
		}
		if label, ok := resolver.Resolve(exp.Name, labels); ok {
			d.MatchedLabel = label
			d.ActualCount = min(counts[label], exp.Count+OverDetectionAllowance)
		}
		d.Status = classify(d.ActualCount, d.ExpectedCount)

		res.TotalExpected += d.ExpectedCount
		res.TotalFound += d.ActualCount
		if d.Status == StatusMissing {
			res.TotalMissing += d.ExpectedCount
		}
		res.Details = append(res.Details, d)
	}

	res.TotalExtra = max(0, len(detections)-res.TotalFound)
	res.Score = Score(res.TotalFound, res.TotalExpected)
	return res, nil
}

func classify(actual, expected int) Status {
	switch {
	case actual <= 0:
		return StatusMissing
	case actual >= expected:
		return StatusCompliant
	default:
		return StatusPartial
	}
}

// Score returns round(100*found/expected) clamped to [0, 100], or 0 when nothing is expected
func Score(found, expected int) int {
	if expected <= 0 {
		return 0
	}
	s := int(math.Round(100 * float64(found) / float64(expected)))
	return max(0, min(100, s))
}
