package detection

import (
	"context"
	"errors"

	"github.com/xelth-com/eckplanogram/internal/compliance"
)

// ErrEmptyResult is returned by providers that got an answer without a usable prediction list
var ErrEmptyResult = errors.New("detector returned no usable result")

// Image is the shelf photo sent to a detector
type Image struct {
	Data     []byte `json:"-"`
	MimeType string `json:"mimeType"`
	// Ref is the storage reference of the original upload, if any
	Ref string `json:"ref,omitempty"`
	// Hints lists the product names expected on the shelf
	Hints []string `json:"hints,omitempty"`
}

// Prediction is one object found by the detector
type Prediction struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
}

// Result contains the raw output of a detector call
type Result struct {
	Provider    string       `json:"provider"`
	Model       string       `json:"model,omitempty"`
	Predictions []Prediction `json:"predictions"`
	ImageWidth  int          `json:"imageWidth,omitempty"`
	ImageHeight int          `json:"imageHeight,omitempty"`
}

// ProviderInterface defines the contract for all detection providers
type ProviderInterface interface {
	// Code returns the unique code for this provider (e.g., "roboflow", "gemini")
	Code() string

	// Name returns the human-readable name of the provider
	Name() string

	// Detect runs product detection on a shelf photo. A nil Result or a
	// Result with nil Predictions is treated as a failed call.
	Detect(ctx context.Context, img Image) (*Result, error)
}

// Detections converts predictions to matcher input
func (r *Result) Detections() []compliance.Detection {
	if r == nil || r.Predictions == nil {
		return nil
	}
	out := make([]compliance.Detection, 0, len(r.Predictions))
	for _, p := range r.Predictions {
		out = append(out, compliance.Detection{
			Label:      p.Class,
			Confidence: p.Confidence,
			X:          p.X,
			Y:          p.Y,
			Width:      p.Width,
			Height:     p.Height,
		})
	}
	return out
}

// FilterForDisplay keeps predictions at or above the threshold. It only
// drives the overlay shown to users; scoring always uses every prediction.
func FilterForDisplay(preds []Prediction, threshold float64) []Prediction {
	out := make([]Prediction, 0, len(preds))
	for _, p := range preds {
		if p.Confidence >= threshold {
			out = append(out, p)
		}
	}
	return out
}
