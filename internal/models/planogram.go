package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/xelth-com/eckplanogram/internal/layout"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PlanogramStatus is the lifecycle state of a template
type PlanogramStatus string

const (
	PlanogramStatusDraft    PlanogramStatus = "draft"
	PlanogramStatusActive   PlanogramStatus = "active"
	PlanogramStatusArchived PlanogramStatus = "archived"
)

// Valid reports whether s is a known status
func (s PlanogramStatus) Valid() bool {
	switch s {
	case PlanogramStatusDraft, PlanogramStatusActive, PlanogramStatusArchived:
		return true
	}
	return false
}

// PlanogramTemplate is the expected layout of one shelf.
// Layout always equals the layout of the highest version.
type PlanogramTemplate struct {
	ID          string                            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TenantID    string                            `gorm:"type:varchar(64);not null;index" json:"tenantId"`
	Name        string                            `gorm:"type:varchar(255);not null" json:"name"`
	Description string                            `gorm:"type:text" json:"description"`
	StoreRef    *string                           `gorm:"type:varchar(255)" json:"storeRef,omitempty"`
	ShelfRef    *string                           `gorm:"type:varchar(255)" json:"shelfRef,omitempty"`
	Status      PlanogramStatus                   `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	Layout      datatypes.JSONType[layout.Layout] `gorm:"not null" json:"layout"`
	CreatedAt   time.Time                         `json:"createdAt"`
	UpdatedAt   time.Time                         `json:"updatedAt"`

	Versions []PlanogramVersion `gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE" json:"versions,omitempty"`
	Scans    []ComplianceScan   `gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE" json:"scans,omitempty"`
}

func (PlanogramTemplate) TableName() string { return "planogram_templates" }

// BeforeCreate assigns a uuid when the caller did not
func (t *PlanogramTemplate) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = PlanogramStatusDraft
	}
	return nil
}

// CurrentLayout returns a copy of the committed layout
func (t *PlanogramTemplate) CurrentLayout() layout.Layout {
	return t.Layout.Data().Clone()
}

// PlanogramVersion is an immutable snapshot written on every save
type PlanogramVersion struct {
	ID            string                            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TemplateID    string                            `gorm:"type:varchar(36);not null;uniqueIndex:idx_template_version,priority:1" json:"templateId"`
	VersionNumber int                               `gorm:"not null;uniqueIndex:idx_template_version,priority:2" json:"versionNumber"`
	Layout        datatypes.JSONType[layout.Layout] `gorm:"not null" json:"layout"`
	ChangeNote    string                            `gorm:"type:text" json:"changeNote,omitempty"`
	Author        string                            `gorm:"type:varchar(255)" json:"author,omitempty"`
	CreatedAt     time.Time                         `json:"createdAt"`
}

func (PlanogramVersion) TableName() string { return "planogram_versions" }

// BeforeCreate assigns a uuid when the caller did not
func (v *PlanogramVersion) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}

// BeforeUpdate rejects every update; versions are append-only
func (v *PlanogramVersion) BeforeUpdate(tx *gorm.DB) error {
	return ErrImmutable
}
