package compliance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xelth-com/eckplanogram/internal/compliance"
	"github.com/xelth-com/eckplanogram/internal/database"
	"github.com/xelth-com/eckplanogram/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultListLimit = 50

var ErrScanNotFound = errors.New("compliance scan not found")

// Recorder persists scan verdicts. Scans are only ever inserted.
type Recorder struct {
	db *database.DB
}

// NewRecorder creates a new scan recorder
func NewRecorder(db *database.DB) *Recorder {
	return &Recorder{db: db}
}

// RecordInput is one finished verdict
type RecordInput struct {
	TenantID     string
	TemplateID   string
	TemplateName string
	ImageRef     string
	Detector     string
	DetectorInfo models.JSONB
	Result       *compliance.Result
	// RecordedAt overrides the creation time, used when importing historic scans
	RecordedAt time.Time
}

// TrendEntry is one point of the cross-template compliance trend
type TrendEntry struct {
	ScanID          string    `json:"scanId"`
	TemplateID      string    `json:"templateId"`
	TemplateName    string    `json:"templateName"`
	ComplianceScore int       `json:"complianceScore"`
	TotalExpected   int       `json:"totalExpected"`
	TotalFound      int       `json:"totalFound"`
	TotalMissing    int       `json:"totalMissing"`
	TotalExtra      int       `json:"totalExtra"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Summary aggregates the scores of one template
type Summary struct {
	TemplateID   string     `json:"templateId"`
	Count        int        `json:"count"`
	AverageScore float64    `json:"averageScore"`
	MinScore     int        `json:"minScore"`
	MaxScore     int        `json:"maxScore"`
	LatestScore  *int       `json:"latestScore,omitempty"`
	LatestAt     *time.Time `json:"latestAt,omitempty"`
}

// Record inserts a new scan
func (r *Recorder) Record(ctx context.Context, in RecordInput) (*models.ComplianceScan, error) {
	if in.TenantID == "" || in.TemplateID == "" {
		return nil, fmt.Errorf("tenant and template are required")
	}
	if in.Result == nil {
		return nil, fmt.Errorf("result is required")
	}

	details := in.Result.Details
	if details == nil {
		details = []compliance.Detail{}
	}

	scan := &models.ComplianceScan{
		TenantID:        in.TenantID,
		TemplateID:      in.TemplateID,
		TemplateName:    in.TemplateName,
		Detector:        in.Detector,
		ComplianceScore: in.Result.Score,
		TotalExpected:   in.Result.TotalExpected,
		TotalFound:      in.Result.TotalFound,
		TotalMissing:    in.Result.TotalMissing,
		TotalExtra:      in.Result.TotalExtra,
		Details:         datatypes.NewJSONType(details),
		DetectorInfo:    in.DetectorInfo,
		CreatedAt:       in.RecordedAt,
	}
	if in.ImageRef != "" {
		ref := in.ImageRef
		scan.ImageRef = &ref
	}

	if err := r.db.WithContext(ctx).Create(scan).Error; err != nil {
		return nil, fmt.Errorf("failed to record scan: %w", err)
	}
	return scan, nil
}

// Get loads one scan of the tenant
func (r *Recorder) Get(ctx context.Context, tenantID, scanID string) (*models.ComplianceScan, error) {
	var scan models.ComplianceScan
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", scanID, tenantID).
		First(&scan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrScanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load scan: %w", err)
	}
	return &scan, nil
}

// ListByTemplate returns the scans of one template, newest first
func (r *Recorder) ListByTemplate(ctx context.Context, tenantID, templateID string, limit int) ([]models.ComplianceScan, error) {
	var scans []models.ComplianceScan
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND template_id = ?", tenantID, templateID).
		Order("created_at DESC").
		Limit(normalizeLimit(limit)).
		Find(&scans).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	return scans, nil
}

type trendRow struct {
	ScanID           string
	TemplateID       string
	ScanTemplateName string
	CurrentName      *string
	ComplianceScore  int
	TotalExpected    int
	TotalFound       int
	TotalMissing     int
	TotalExtra       int
	CreatedAt        time.Time
}

// ListTrend returns the tenant's scans across templates, newest first. The
// template name is taken from the template as it is now; scans whose template
// is gone keep the name captured at scan time, or "Unknown".
func (r *Recorder) ListTrend(ctx context.Context, tenantID string, since time.Time, limit int) ([]TrendEntry, error) {
	q := r.db.WithContext(ctx).
		Table("compliance_scans AS s").
		Select(`s.id AS scan_id, s.template_id, s.template_name AS scan_template_name,
			t.name AS current_name, s.compliance_score, s.total_expected, s.total_found,
			s.total_missing, s.total_extra, s.created_at`).
		Joins("LEFT JOIN planogram_templates t ON t.id = s.template_id").
		Where("s.tenant_id = ?", tenantID)
	if !since.IsZero() {
		q = q.Where("s.created_at >= ?", since)
	}

	var rows []trendRow
	if err := q.Order("s.created_at DESC").Limit(normalizeLimit(limit)).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list trend: %w", err)
	}

	entries := make([]TrendEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, TrendEntry{
			ScanID:          row.ScanID,
			TemplateID:      row.TemplateID,
			TemplateName:    trendName(row.CurrentName, row.ScanTemplateName),
			ComplianceScore: row.ComplianceScore,
			TotalExpected:   row.TotalExpected,
			TotalFound:      row.TotalFound,
			TotalMissing:    row.TotalMissing,
			TotalExtra:      row.TotalExtra,
			CreatedAt:       row.CreatedAt,
		})
	}
	return entries, nil
}

func trendName(current *string, atScan string) string {
	if current != nil && *current != "" {
		return *current
	}
	if atScan != "" {
		return atScan
	}
	return models.UnknownTemplateName
}

// Summary aggregates every scan of a template
func (r *Recorder) Summary(ctx context.Context, tenantID, templateID string) (*Summary, error) {
	var agg struct {
		Count int
		Avg   *float64
		Min   *int
		Max   *int
	}
	err := r.db.WithContext(ctx).
		Model(&models.ComplianceScan{}).
		Select("COUNT(*) AS count, AVG(compliance_score) AS avg, MIN(compliance_score) AS min, MAX(compliance_score) AS max").
		Where("tenant_id = ? AND template_id = ?", tenantID, templateID).
		Scan(&agg).Error
	if err != nil {
		return nil, fmt.Errorf("failed to summarize scans: %w", err)
	}

	summary := &Summary{TemplateID: templateID, Count: agg.Count}
	if agg.Count == 0 {
		return summary, nil
	}
	if agg.Avg != nil {
		summary.AverageScore = *agg.Avg
	}
	if agg.Min != nil {
		summary.MinScore = *agg.Min
	}
	if agg.Max != nil {
		summary.MaxScore = *agg.Max
	}

	latest, err := r.ListByTemplate(ctx, tenantID, templateID, 1)
	if err != nil {
		return nil, err
	}
	if len(latest) == 1 {
		summary.LatestScore = &latest[0].ComplianceScore
		summary.LatestAt = &latest[0].CreatedAt
	}
	return summary, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > 500 {
		return 500
	}
	return limit
}
