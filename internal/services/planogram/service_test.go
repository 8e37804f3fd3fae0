package planogram

import (
	"context"
	"errors"
	"testing"

	"github.com/xelth-com/eckplanogram/internal/database"
	"github.com/xelth-com/eckplanogram/internal/layout"
	"github.com/xelth-com/eckplanogram/internal/models"
	"gorm.io/gorm"
)

const tenant = "tenant-a"

func newTestService(t *testing.T) (*Service, *database.DB) {
	t.Helper()
	db, err := database.ConnectSQLite(":memory:", true)
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewService(db), db
}

func createTemplate(t *testing.T, s *Service) *models.PlanogramTemplate {
	t.Helper()
	tmpl, err := s.CreateTemplate(context.Background(), CreateTemplateInput{
		TenantID: tenant,
		Name:     "Beverages aisle 3",
		Author:   "designer@example.com",
	})
	if err != nil {
		t.Fatalf("CreateTemplate failed: %v", err)
	}
	return tmpl
}

func oneProductLayout(t *testing.T, facings int) layout.Layout {
	t.Helper()
	l, rowID := layout.AddRow(nil, "Top")
	l, inst, err := layout.AddPlacement(l, rowID, layout.Registered{ProductID: "42", Name: "Cola"})
	if err != nil {
		t.Fatalf("AddPlacement failed: %v", err)
	}
	l, err = layout.SetFacings(l, rowID, inst, facings)
	if err != nil {
		t.Fatalf("SetFacings failed: %v", err)
	}
	return l
}

type recordingPublisher struct {
	events []string
}

func (p *recordingPublisher) Publish(tenantID, eventType string, payload interface{}) {
	p.events = append(p.events, tenantID+":"+eventType)
}

func TestCreateTemplateWritesInitialVersion(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	tmpl := createTemplate(t, s)

	if tmpl.Status != models.PlanogramStatusDraft {
		t.Errorf("Expected draft status, got %s", tmpl.Status)
	}
	if len(tmpl.CurrentLayout()) != 0 {
		t.Errorf("New template should have an empty layout")
	}

	versions, err := s.ListVersions(ctx, tmpl.ID, tenant)
	if err != nil {
		t.Fatalf("ListVersions failed: %v", err)
	}
	if len(versions) != 1 || versions[0].VersionNumber != 1 || versions[0].ChangeNote != "Initial version" {
		t.Fatalf("Expected exactly version 1 'Initial version', got %+v", versions)
	}
}

func TestCreateTemplateValidation(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	if _, err := s.CreateTemplate(ctx, CreateTemplateInput{TenantID: tenant, Name: "  "}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty name, got %v", err)
	}
	if _, err := s.CreateTemplate(ctx, CreateTemplateInput{Name: "Shelf"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for missing tenant, got %v", err)
	}
}

func TestCommitAppendsVersion(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	pub := &recordingPublisher{}
	s.SetEventPublisher(pub)
	tmpl := createTemplate(t, s)

	l := oneProductLayout(t, 3)
	v, err := s.Commit(ctx, CommitInput{TemplateID: tmpl.ID, TenantID: tenant, Layout: l, ChangeNote: "First draft"})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if v.VersionNumber != 2 {
		t.Errorf("Expected version 2, got %d", v.VersionNumber)
	}

	reloaded, err := s.GetTemplate(ctx, tmpl.ID, tenant)
	if err != nil {
		t.Fatalf("GetTemplate failed: %v", err)
	}
	current := reloaded.CurrentLayout()
	if len(current) != 1 || len(current[0].Placements) != 1 || current[0].Placements[0].Facings != 3 {
		t.Fatalf("Current layout does not match commit: %+v", current)
	}
	if _, ok := current[0].Placements[0].Product.(layout.Registered); !ok {
		t.Errorf("Product reference kind lost: %T", current[0].Placements[0].Product)
	}

	if len(pub.events) != 1 || pub.events[0] != tenant+":template.saved" {
		t.Errorf("Expected one template.saved event, got %v", pub.events)
	}
}

func TestFailedVersionAppendKeepsLayout(t *testing.T) {
	s, db := newTestService(t)
	ctx := context.Background()
	tmpl := createTemplate(t, s)

	err := db.Callback().Create().Before("gorm:create").Register("test:fail_version_insert", func(tx *gorm.DB) {
		if tx.Statement.Table == "planogram_versions" {
			tx.AddError(errors.New("disk full"))
		}
	})
	if err != nil {
		t.Fatalf("Failed to register callback: %v", err)
	}

	if _, err := s.Commit(ctx, CommitInput{TemplateID: tmpl.ID, TenantID: tenant, Layout: oneProductLayout(t, 2)}); err == nil {
		t.Fatal("Commit should fail when the version cannot be written")
	}

	reloaded, err := s.GetTemplate(ctx, tmpl.ID, tenant)
	if err != nil {
		t.Fatalf("GetTemplate failed: %v", err)
	}
	if len(reloaded.CurrentLayout()) != 0 {
		t.Errorf("Layout changed although the commit failed: %+v", reloaded.CurrentLayout())
	}

	versions, err := s.ListVersions(ctx, tmpl.ID, tenant)
	if err != nil {
		t.Fatalf("ListVersions failed: %v", err)
	}
	if len(versions) != 1 || versions[0].VersionNumber != 1 {
		t.Errorf("Expected only version 1, got %+v", versions)
	}
}

func TestVersionNumbersAreSequential(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	tmpl := createTemplate(t, s)

	for i := 1; i <= 4; i++ {
		if _, err := s.Commit(ctx, CommitInput{TemplateID: tmpl.ID, TenantID: tenant, Layout: oneProductLayout(t, i)}); err != nil {
			t.Fatalf("Commit %d failed: %v", i, err)
		}
	}

	versions, err := s.ListVersions(ctx, tmpl.ID, tenant)
	if err != nil {
		t.Fatalf("ListVersions failed: %v", err)
	}
	if len(versions) != 5 {
		t.Fatalf("Expected 5 versions, got %d", len(versions))
	}
	for i, v := range versions {
		if want := 5 - i; v.VersionNumber != want {
			t.Errorf("Position %d: expected version %d, got %d", i, want, v.VersionNumber)
		}
	}
}

func TestRestoreCreatesNewVersion(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	tmpl := createTemplate(t, s)

	first := oneProductLayout(t, 2)
	if _, err := s.Commit(ctx, CommitInput{TemplateID: tmpl.ID, TenantID: tenant, Layout: first}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if _, err := s.Commit(ctx, CommitInput{TemplateID: tmpl.ID, TenantID: tenant, Layout: oneProductLayout(t, 7)}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	v, err := s.Restore(ctx, tmpl.ID, tenant, 2, "manager")
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if v.VersionNumber != 4 {
		t.Errorf("Restore should create version 4, got %d", v.VersionNumber)
	}
	if v.ChangeNote != "Restored from version 2" {
		t.Errorf("Unexpected change note: %q", v.ChangeNote)
	}

	reloaded, _ := s.GetTemplate(ctx, tmpl.ID, tenant)
	current := reloaded.CurrentLayout()
	if current[0].Placements[0].Facings != 2 {
		t.Errorf("Current layout should equal version 2, got facings %d", current[0].Placements[0].Facings)
	}
	if current[0].Placements[0].InstanceID != first[0].Placements[0].InstanceID {
		t.Error("Restored layout should keep the original instance ids")
	}
}

func TestRestoreUnknownVersion(t *testing.T) {
	s, _ := newTestService(t)
	tmpl := createTemplate(t, s)

	if _, err := s.Restore(context.Background(), tmpl.ID, tenant, 9, ""); !errors.Is(err, ErrVersionNotFound) {
		t.Errorf("Expected ErrVersionNotFound, got %v", err)
	}
}

func TestCommitExpectedVersionConflict(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	tmpl := createTemplate(t, s)

	stale := 1
	if _, err := s.Commit(ctx, CommitInput{TemplateID: tmpl.ID, TenantID: tenant, Layout: oneProductLayout(t, 1), ExpectedVersion: &stale}); err != nil {
		t.Fatalf("First commit should pass: %v", err)
	}
	_, err := s.Commit(ctx, CommitInput{TemplateID: tmpl.ID, TenantID: tenant, Layout: oneProductLayout(t, 2), ExpectedVersion: &stale})
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("Expected ErrVersionConflict, got %v", err)
	}

	latest, _ := s.LatestVersion(ctx, tmpl.ID)
	if latest != 2 {
		t.Errorf("Conflicting commit must not add a version, latest is %d", latest)
	}
	reloaded, _ := s.GetTemplate(ctx, tmpl.ID, tenant)
	if reloaded.CurrentLayout()[0].Placements[0].Facings != 1 {
		t.Error("Conflicting commit must not change the current layout")
	}
}

func TestCommitRejectsInvalidLayout(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	tmpl := createTemplate(t, s)

	bad := layout.Layout{{ID: "r1", Placements: []layout.Placement{
		{InstanceID: "dup", Product: layout.Unregistered{Name: "x"}, Facings: 1},
		{InstanceID: "dup", Product: layout.Unregistered{Name: "y"}, Facings: 1},
	}}}
	if _, err := s.Commit(ctx, CommitInput{TemplateID: tmpl.ID, TenantID: tenant, Layout: bad}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}

	latest, _ := s.LatestVersion(ctx, tmpl.ID)
	if latest != 1 {
		t.Errorf("Rejected commit must not add a version, latest is %d", latest)
	}
}

func TestTenantIsolation(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	tmpl := createTemplate(t, s)

	if _, err := s.GetTemplate(ctx, tmpl.ID, "tenant-b"); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("Expected ErrTemplateNotFound for other tenant, got %v", err)
	}
	_, err := s.Commit(ctx, CommitInput{TemplateID: tmpl.ID, TenantID: "tenant-b", Layout: oneProductLayout(t, 1)})
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("Expected ErrTemplateNotFound on foreign commit, got %v", err)
	}
}

func TestUpdateAndDeleteTemplate(t *testing.T) {
	s, db := newTestService(t)
	ctx := context.Background()
	tmpl := createTemplate(t, s)

	name := "Beverages aisle 4"
	status := models.PlanogramStatusActive
	updated, err := s.UpdateTemplate(ctx, tmpl.ID, tenant, UpdateTemplateInput{Name: &name, Status: &status})
	if err != nil {
		t.Fatalf("UpdateTemplate failed: %v", err)
	}
	if updated.Name != name || updated.Status != status {
		t.Errorf("Update not applied: %+v", updated)
	}

	bogus := models.PlanogramStatus("deleted")
	if _, err := s.UpdateTemplate(ctx, tmpl.ID, tenant, UpdateTemplateInput{Status: &bogus}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for unknown status, got %v", err)
	}

	if err := s.DeleteTemplate(ctx, tmpl.ID, tenant); err != nil {
		t.Fatalf("DeleteTemplate failed: %v", err)
	}
	var count int64
	db.Model(&models.PlanogramVersion{}).Where("template_id = ?", tmpl.ID).Count(&count)
	if count != 0 {
		t.Errorf("Versions should be deleted with the template, %d left", count)
	}
	if err := s.DeleteTemplate(ctx, tmpl.ID, tenant); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("Expected ErrTemplateNotFound on second delete, got %v", err)
	}
}

func TestVersionsAreImmutable(t *testing.T) {
	s, db := newTestService(t)
	ctx := context.Background()
	tmpl := createTemplate(t, s)

	v, err := s.GetVersion(ctx, tmpl.ID, tenant, 1)
	if err != nil {
		t.Fatalf("GetVersion failed: %v", err)
	}
	err = db.Model(v).Update("change_note", "rewritten").Error
	if !errors.Is(err, models.ErrImmutable) {
		t.Errorf("Expected ErrImmutable, got %v", err)
	}
}

func TestSearchAndResolveProducts(t *testing.T) {
	s, db := newTestService(t)
	ctx := context.Background()

	products := []models.ProductProduct{
		{ID: 1, Name: "Cola 0.5L", DefaultCode: "COLA-05", Active: true},
		{ID: 2, Name: "Orange Juice", DefaultCode: "OJ-1", Barcode: "4000000000001", Active: true},
	}
	if err := db.Create(&products).Error; err != nil {
		t.Fatalf("Failed to seed products: %v", err)
	}

	found, err := s.SearchProducts(ctx, "cola", 10)
	if err != nil {
		t.Fatalf("SearchProducts failed: %v", err)
	}
	if len(found) != 1 || found[0].ID != 1 {
		t.Errorf("Expected Cola, got %+v", found)
	}

	ref, err := s.ResolveProduct(ctx, 2)
	if err != nil {
		t.Fatalf("ResolveProduct failed: %v", err)
	}
	if ref.ProductID != "2" || ref.Name != "Orange Juice" {
		t.Errorf("Unexpected ref: %+v", ref)
	}
	if _, err := s.ResolveProduct(ctx, 99); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("Expected ErrProductNotFound, got %v", err)
	}
}
