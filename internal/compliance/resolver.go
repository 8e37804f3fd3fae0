package compliance

import (
	"sort"
	"strings"
)

// LabelCount is one detector label with the number of times it was seen
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Resolver picks the detected label that stands for an expected product.
// It returns false when no label matches.
type Resolver interface {
	Resolve(expectedName string, labels []LabelCount) (string, bool)
}

// SubstringResolver matches when either name contains the other, ignoring case.
// Empty names and labels never match.
//
// When several labels match, the winner is chosen by, in order:
// exact (case-insensitive) equality, higher count, longer label,
// lexicographically smaller label.
type SubstringResolver struct{}

// Resolve implements Resolver
func (SubstringResolver) Resolve(expectedName string, labels []LabelCount) (string, bool) {
	name := normalize(expectedName)
	if name == "" {
		return "", false
	}

	var candidates []LabelCount
	for _, lc := range labels {
		label := normalize(lc.Label)
		if label == "" {
			continue
		}
		if strings.Contains(name, label) || strings.Contains(label, name) {
			candidates = append(candidates, lc)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		ae, be := normalize(a.Label) == name, normalize(b.Label) == name
		if ae != be {
			return ae
		}
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if len(a.Label) != len(b.Label) {
			return len(a.Label) > len(b.Label)
		}
		return a.Label < b.Label
	})
	return candidates[0].Label, true
}

// ExactResolver only accepts a case-insensitive exact match. Use it once the
// detector emits canonical product names or ids.
type ExactResolver struct{}

// Resolve implements Resolver
func (ExactResolver) Resolve(expectedName string, labels []LabelCount) (string, bool) {
	name := normalize(expectedName)
	if name == "" {
		return "", false
	}
	for _, lc := range sortedLabels(labels) {
		if normalize(lc.Label) == name {
			return lc.Label, true
		}
	}
	return "", false
}

// normalize folds case only; whitespace is part of the name
func normalize(s string) string {
	return strings.ToLower(s)
}

func sortedLabels(labels []LabelCount) []LabelCount {
	out := append([]LabelCount(nil), labels...)
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}
