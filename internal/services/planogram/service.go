package planogram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/xelth-com/eckplanogram/internal/database"
	"github.com/xelth-com/eckplanogram/internal/layout"
	"github.com/xelth-com/eckplanogram/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const initialVersionNote = "Initial version"

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrTemplateNotFound = errors.New("planogram template not found")
	ErrVersionNotFound  = errors.New("planogram version not found")
	ErrVersionConflict  = errors.New("planogram was saved by someone else")
)

// EventPublisher receives notifications after successful commits
type EventPublisher interface {
	Publish(tenantID, eventType string, payload interface{})
}

// Service manages planogram templates and their version history
type Service struct {
	db     *database.DB
	events EventPublisher
}

// NewService creates a new planogram service
func NewService(db *database.DB) *Service {
	return &Service{db: db}
}

// SetEventPublisher attaches a publisher for template.saved events
func (s *Service) SetEventPublisher(p EventPublisher) {
	s.events = p
}

// CreateTemplateInput describes a new template
type CreateTemplateInput struct {
	TenantID    string
	Name        string
	Description string
	StoreRef    *string
	ShelfRef    *string
	Author      string
}

// CommitInput is a save of the working layout
type CommitInput struct {
	TemplateID string
	TenantID   string
	Layout     layout.Layout
	ChangeNote string
	Author     string
	// ExpectedVersion, when set, must equal the latest version number or the
	// commit fails with ErrVersionConflict
	ExpectedVersion *int
}

// UpdateTemplateInput carries the editable template metadata. Nil fields are left unchanged.
type UpdateTemplateInput struct {
	Name        *string
	Description *string
	Status      *models.PlanogramStatus
	StoreRef    *string
	ShelfRef    *string
}

// CreateTemplate inserts a template with an empty layout and version 1 in one transaction
func (s *Service) CreateTemplate(ctx context.Context, in CreateTemplateInput) (*models.PlanogramTemplate, error) {
	name := strings.TrimSpace(in.Name)
	if in.TenantID == "" {
		return nil, fmt.Errorf("%w: tenant is required", ErrInvalidInput)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	tmpl := &models.PlanogramTemplate{
		TenantID:    in.TenantID,
		Name:        name,
		Description: in.Description,
		StoreRef:    in.StoreRef,
		ShelfRef:    in.ShelfRef,
		Status:      models.PlanogramStatusDraft,
		Layout:      datatypes.NewJSONType(layout.Layout{}),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(tmpl).Error; err != nil {
			return fmt.Errorf("failed to create template: %w", err)
		}
		version := &models.PlanogramVersion{
			TemplateID:    tmpl.ID,
			VersionNumber: 1,
			Layout:        datatypes.NewJSONType(layout.Layout{}),
			ChangeNote:    initialVersionNote,
			Author:        in.Author,
		}
		if err := tx.Create(version).Error; err != nil {
			return fmt.Errorf("failed to create initial version: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("📐 Planogram created: %s (%s)", tmpl.Name, tmpl.ID)
	return tmpl, nil
}

// Commit makes the layout the template's current state and appends exactly one
// version. Both writes happen in one transaction.
func (s *Service) Commit(ctx context.Context, in CommitInput) (*models.PlanogramVersion, error) {
	if in.TemplateID == "" || in.TenantID == "" {
		return nil, fmt.Errorf("%w: template and tenant are required", ErrInvalidInput)
	}
	l := in.Layout.Clone()
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	var version *models.PlanogramVersion
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		version, err = commitTx(tx, in, l)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Printf("💾 Planogram %s saved as version %d", in.TemplateID, version.VersionNumber)
	s.publish(in.TenantID, "template.saved", version)
	return version, nil
}

func commitTx(tx *gorm.DB, in CommitInput, l layout.Layout) (*models.PlanogramVersion, error) {
	var tmpl models.PlanogramTemplate
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND tenant_id = ?", in.TemplateID, in.TenantID).
		First(&tmpl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}

	current, err := latestVersionNumber(tx, tmpl.ID)
	if err != nil {
		return nil, err
	}
	if in.ExpectedVersion != nil && *in.ExpectedVersion != current {
		return nil, fmt.Errorf("%w: expected version %d, latest is %d", ErrVersionConflict, *in.ExpectedVersion, current)
	}

	if err := tx.Model(&tmpl).Update("layout", datatypes.NewJSONType(l)).Error; err != nil {
		return nil, fmt.Errorf("failed to update template layout: %w", err)
	}

	version := &models.PlanogramVersion{
		TemplateID:    tmpl.ID,
		VersionNumber: current + 1,
		Layout:        datatypes.NewJSONType(l),
		ChangeNote:    in.ChangeNote,
		Author:        in.Author,
	}
	if err := tx.Create(version).Error; err != nil {
		return nil, fmt.Errorf("failed to append version: %w", err)
	}
	return version, nil
}

func latestVersionNumber(tx *gorm.DB, templateID string) (int, error) {
	var current int
	err := tx.Model(&models.PlanogramVersion{}).
		Where("template_id = ?", templateID).
		Select("COALESCE(MAX(version_number), 0)").
		Scan(&current).Error
	if err != nil {
		return 0, fmt.Errorf("failed to read latest version: %w", err)
	}
	return current, nil
}

// Restore commits the layout stored in version n as a new version
func (s *Service) Restore(ctx context.Context, templateID, tenantID string, n int, author string) (*models.PlanogramVersion, error) {
	old, err := s.GetVersion(ctx, templateID, tenantID, n)
	if err != nil {
		return nil, err
	}
	return s.Commit(ctx, CommitInput{
		TemplateID: templateID,
		TenantID:   tenantID,
		Layout:     old.Layout.Data(),
		ChangeNote: fmt.Sprintf("Restored from version %d", n),
		Author:     author,
	})
}

// GetTemplate loads one template of the tenant
func (s *Service) GetTemplate(ctx context.Context, templateID, tenantID string) (*models.PlanogramTemplate, error) {
	var tmpl models.PlanogramTemplate
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", templateID, tenantID).
		First(&tmpl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	return &tmpl, nil
}

// ListTemplates returns the tenant's templates, most recently updated first.
// An empty status lists every status.
func (s *Service) ListTemplates(ctx context.Context, tenantID string, status models.PlanogramStatus) ([]models.PlanogramTemplate, error) {
	q := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var templates []models.PlanogramTemplate
	if err := q.Order("updated_at DESC").Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	return templates, nil
}

// UpdateTemplate edits name, description, status and store/shelf references.
// The layout only changes through Commit.
func (s *Service) UpdateTemplate(ctx context.Context, templateID, tenantID string, in UpdateTemplateInput) (*models.PlanogramTemplate, error) {
	updates := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
		}
		updates["name"] = name
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *in.Status)
		}
		updates["status"] = *in.Status
	}
	if in.StoreRef != nil {
		updates["store_ref"] = nullable(*in.StoreRef)
	}
	if in.ShelfRef != nil {
		updates["shelf_ref"] = nullable(*in.ShelfRef)
	}

	tmpl, err := s.GetTemplate(ctx, templateID, tenantID)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return tmpl, nil
	}
	if err := s.db.WithContext(ctx).Model(tmpl).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update template: %w", err)
	}
	return s.GetTemplate(ctx, templateID, tenantID)
}

// DeleteTemplate removes a template together with its versions and scans
func (s *Service) DeleteTemplate(ctx context.Context, templateID, tenantID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tmpl models.PlanogramTemplate
		err := tx.Where("id = ? AND tenant_id = ?", templateID, tenantID).First(&tmpl).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTemplateNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load template: %w", err)
		}

		if err := tx.Where("template_id = ?", tmpl.ID).Delete(&models.ComplianceScan{}).Error; err != nil {
			return fmt.Errorf("failed to delete scans: %w", err)
		}
		if err := tx.Where("template_id = ?", tmpl.ID).Delete(&models.PlanogramVersion{}).Error; err != nil {
			return fmt.Errorf("failed to delete versions: %w", err)
		}
		if err := tx.Delete(&tmpl).Error; err != nil {
			return fmt.Errorf("failed to delete template: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Printf("🗑️ Planogram deleted: %s", templateID)
	return nil
}

// ListVersions returns the version history, newest first
func (s *Service) ListVersions(ctx context.Context, templateID, tenantID string) ([]models.PlanogramVersion, error) {
	if _, err := s.GetTemplate(ctx, templateID, tenantID); err != nil {
		return nil, err
	}
	var versions []models.PlanogramVersion
	err := s.db.WithContext(ctx).
		Where("template_id = ?", templateID).
		Order("version_number DESC").
		Find(&versions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	return versions, nil
}

// GetVersion loads version n of a template
func (s *Service) GetVersion(ctx context.Context, templateID, tenantID string, n int) (*models.PlanogramVersion, error) {
	if _, err := s.GetTemplate(ctx, templateID, tenantID); err != nil {
		return nil, err
	}
	var v models.PlanogramVersion
	err := s.db.WithContext(ctx).
		Where("template_id = ? AND version_number = ?", templateID, n).
		First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrVersionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load version: %w", err)
	}
	return &v, nil
}

// LatestVersion returns the highest version number of a template
func (s *Service) LatestVersion(ctx context.Context, templateID string) (int, error) {
	return latestVersionNumber(s.db.WithContext(ctx), templateID)
}

func (s *Service) publish(tenantID, eventType string, payload interface{}) {
	if s.events != nil {
		s.events.Publish(tenantID, eventType, payload)
	}
}

func nullable(v string) *string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return &v
}
