package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/xelth-com/eckplanogram/internal/compliance"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UnknownTemplateName is shown for scans whose template name cannot be resolved
const UnknownTemplateName = "Unknown"

// ComplianceScan is the immutable verdict of one shelf photo.
// TemplateName is denormalized at scan time.
type ComplianceScan struct {
	ID              string                                  `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TenantID        string                                  `gorm:"type:varchar(64);not null;index" json:"tenantId"`
	TemplateID      string                                  `gorm:"type:varchar(36);not null;index" json:"templateId"`
	TemplateName    string                                  `gorm:"type:varchar(255)" json:"templateName"`
	ImageRef        *string                                 `gorm:"type:text" json:"imageRef,omitempty"`
	Detector        string                                  `gorm:"type:varchar(50)" json:"detector,omitempty"`
	ComplianceScore int                                     `gorm:"not null;default:0" json:"complianceScore"`
	TotalExpected   int                                     `gorm:"not null;default:0" json:"totalExpected"`
	TotalFound      int                                     `gorm:"not null;default:0" json:"totalFound"`
	TotalMissing    int                                     `gorm:"not null;default:0" json:"totalMissing"`
	TotalExtra      int                                     `gorm:"not null;default:0" json:"totalExtra"`
	Details         datatypes.JSONType[[]compliance.Detail] `json:"details"`
	DetectorInfo    JSONB                                   `json:"detectorInfo,omitempty"`
	CreatedAt       time.Time                               `gorm:"index" json:"createdAt"`
}

func (ComplianceScan) TableName() string { return "compliance_scans" }

// BeforeCreate assigns a uuid when the caller did not
func (s *ComplianceScan) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// BeforeUpdate rejects every update; scans are append-only
func (s *ComplianceScan) BeforeUpdate(tx *gorm.DB) error {
	return ErrImmutable
}
