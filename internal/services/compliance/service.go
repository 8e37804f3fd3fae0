package compliance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/xelth-com/eckplanogram/internal/compliance"
	"github.com/xelth-com/eckplanogram/internal/detection"
	"github.com/xelth-com/eckplanogram/internal/models"
)

var (
	ErrInvalidInput = errors.New("invalid scan request")
	// ErrScanFailed means the detector gave no usable answer; nothing is recorded
	ErrScanFailed = errors.New("shelf scan failed")
)

// TemplateSource loads committed templates
type TemplateSource interface {
	GetTemplate(ctx context.Context, templateID, tenantID string) (*models.PlanogramTemplate, error)
}

// EventPublisher receives scan.created notifications
type EventPublisher interface {
	Publish(tenantID, eventType string, payload interface{})
}

// Options tune the scan pipeline
type Options struct {
	DetectTimeout     time.Duration
	DisplayConfidence float64
	MaxImageSide      int
}

// Service runs photos through detection and matching and records the verdict
type Service struct {
	templates TemplateSource
	detectors *detection.Registry
	matcher   *compliance.Matcher
	recorder  *Recorder
	events    EventPublisher
	opts      Options
}

// NewService wires the scan pipeline
func NewService(templates TemplateSource, detectors *detection.Registry, recorder *Recorder, opts Options) *Service {
	if opts.DisplayConfidence <= 0 {
		opts.DisplayConfidence = 0.95
	}
	return &Service{
		templates: templates,
		detectors: detectors,
		matcher:   compliance.NewMatcher(),
		recorder:  recorder,
		opts:      opts,
	}
}

// SetEventPublisher attaches a publisher for scan.created events
func (s *Service) SetEventPublisher(p EventPublisher) {
	s.events = p
}

// SetResolver replaces the label resolution strategy
func (s *Service) SetResolver(r compliance.Resolver) {
	s.matcher = &compliance.Matcher{Resolver: r}
}

// Recorder exposes the scan store for read endpoints
func (s *Service) Recorder() *Recorder {
	return s.recorder
}

// ScanRequest is one shelf photo to check against a template
type ScanRequest struct {
	TenantID   string
	TemplateID string
	ImageRef   string
	ImageData  []byte
	MimeType   string
	// Provider selects the detector; empty uses the default
	Provider string
}

// ScanResult is the recorded scan plus the predictions confident enough to draw
type ScanResult struct {
	Scan    *models.ComplianceScan `json:"scan"`
	Overlay []detection.Prediction `json:"overlay"`
}

// RunScan checks a shelf photo against the template's committed layout
func (s *Service) RunScan(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	if req.TenantID == "" || req.TemplateID == "" {
		return nil, fmt.Errorf("%w: tenant and template are required", ErrInvalidInput)
	}
	if len(req.ImageData) == 0 {
		return nil, fmt.Errorf("%w: image is required", ErrInvalidInput)
	}

	tmpl, err := s.templates.GetTemplate(ctx, req.TemplateID, req.TenantID)
	if err != nil {
		return nil, err
	}
	committed := tmpl.CurrentLayout()

	provider, err := s.detectors.Get(req.Provider)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	img, width, height, err := detection.PrepareImage(detection.Image{
		Data:     req.ImageData,
		MimeType: req.MimeType,
		Ref:      req.ImageRef,
		Hints:    expectedNames(compliance.Aggregate(committed)),
	}, s.opts.MaxImageSide)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	detectCtx := ctx
	if s.opts.DetectTimeout > 0 {
		var cancel context.CancelFunc
		detectCtx, cancel = context.WithTimeout(ctx, s.opts.DetectTimeout)
		defer cancel()
	}

	res, err := provider.Detect(detectCtx, img)
	if err != nil {
		log.Printf("❌ Detection via %s failed for template %s: %v", provider.Code(), tmpl.ID, err)
		return nil, fmt.Errorf("%w: %v", ErrScanFailed, err)
	}

	verdict, err := s.matcher.Match(committed, res.Detections())
	if err != nil {
		log.Printf("❌ Detection via %s returned no usable result for template %s", provider.Code(), tmpl.ID)
		return nil, fmt.Errorf("%w: %v", ErrScanFailed, err)
	}

	scan, err := s.recorder.Record(ctx, RecordInput{
		TenantID:     req.TenantID,
		TemplateID:   tmpl.ID,
		TemplateName: tmpl.Name,
		ImageRef:     req.ImageRef,
		Detector:     provider.Code(),
		DetectorInfo: detectorInfo(res, width, height),
		Result:       verdict,
	})
	if err != nil {
		return nil, err
	}

	log.Printf("📸 Scan %s: template %s scored %d%% (%d/%d)", scan.ID, tmpl.Name, scan.ComplianceScore, scan.TotalFound, scan.TotalExpected)
	if s.events != nil {
		s.events.Publish(req.TenantID, "scan.created", scan)
	}

	return &ScanResult{
		Scan:    scan,
		Overlay: s.DisplayPredictions(res),
	}, nil
}

// DisplayPredictions returns the predictions shown as overlay boxes. Scoring
// never uses this filter.
func (s *Service) DisplayPredictions(res *detection.Result) []detection.Prediction {
	if res == nil {
		return []detection.Prediction{}
	}
	return detection.FilterForDisplay(res.Predictions, s.opts.DisplayConfidence)
}

func expectedNames(expected []compliance.Expected) []string {
	names := make([]string, 0, len(expected))
	for _, e := range expected {
		names = append(names, e.Name)
	}
	return names
}

func detectorInfo(res *detection.Result, width, height int) models.JSONB {
	info := models.JSONB{
		"provider":    res.Provider,
		"predictions": len(res.Predictions),
	}
	if res.Model != "" {
		info["model"] = res.Model
	}
	if res.ImageWidth > 0 {
		width, height = res.ImageWidth, res.ImageHeight
	}
	if width > 0 {
		info["imageWidth"] = width
		info["imageHeight"] = height
	}
	return info
}
