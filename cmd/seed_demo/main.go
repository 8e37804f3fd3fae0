package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/xelth-com/eckplanogram/internal/config"
	"github.com/xelth-com/eckplanogram/internal/database"
	"github.com/xelth-com/eckplanogram/internal/layout"
	"github.com/xelth-com/eckplanogram/internal/models"
	"github.com/xelth-com/eckplanogram/internal/services/planogram"
	"github.com/xelth-com/eckplanogram/internal/utils"
	"gorm.io/gorm/clause"
)

var demoProducts = []models.ProductProduct{
	{ID: 1001, Name: "Cola 0.5L", DefaultCode: "BEV-COLA-05", Barcode: "4000000000011", Active: true},
	{ID: 1002, Name: "Cola Zero 0.5L", DefaultCode: "BEV-COLAZ-05", Barcode: "4000000000028", Active: true},
	{ID: 1003, Name: "Orange Juice 1L", DefaultCode: "BEV-OJ-1", Barcode: "4000000000035", Active: true},
	{ID: 2001, Name: "Chips Paprika 175g", DefaultCode: "SNK-CHP-PAP", Barcode: "4000000000042", Active: true},
	{ID: 2002, Name: "Chips Salted 175g", DefaultCode: "SNK-CHP-SAL", Barcode: "4000000000059", Active: true},
}

func main() {
	tenant := flag.String("tenant", "demo-store", "tenant the demo template belongs to")
	ttl := flag.Duration("ttl", 24*time.Hour, "lifetime of the printed API token")
	flag.Parse()

	fmt.Println("🌱 Planogram Demo Data Seeder")
	fmt.Println(strings.Repeat("=", 60))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	fmt.Println("🔨 Running database migrations...")
	if err := db.Migrate(); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	ctx := context.Background()
	now := time.Now().UTC()

	fmt.Println("📦 Creating catalog products...")
	for _, p := range demoProducts {
		p.LastSyncedAt = now
		err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&p).Error
		if err != nil {
			log.Printf("⚠️  Failed to create product %s: %v", p.Name, err)
			continue
		}
		fmt.Printf("   ✓ [%s] %s\n", p.DefaultCode, p.Name)
	}

	svc := planogram.NewService(db)
	tmpl, err := svc.CreateTemplate(ctx, planogram.CreateTemplateInput{
		TenantID:    *tenant,
		Name:        "Beverage Cooler Demo",
		Description: "Two shelves of drinks and one of snacks",
		Author:      "seed_demo",
	})
	if err != nil {
		log.Fatalf("❌ Failed to create template: %v", err)
	}
	fmt.Printf("✅ Created template %s (%s)\n", tmpl.Name, tmpl.ID)

	l, err := demoLayout()
	if err != nil {
		log.Fatalf("❌ Failed to build layout: %v", err)
	}
	v, err := svc.Commit(ctx, planogram.CommitInput{
		TemplateID: tmpl.ID,
		TenantID:   *tenant,
		Layout:     l,
		ChangeNote: "Demo layout",
		Author:     "seed_demo",
	})
	if err != nil {
		log.Fatalf("❌ Failed to commit layout: %v", err)
	}
	fmt.Printf("✅ Committed version %d with %d rows and %d facings\n", v.VersionNumber, len(l), l.TotalFacings())

	token, err := utils.GenerateTenantToken(*tenant, "seed_demo", cfg.JWTSecret, *ttl)
	if err != nil {
		log.Fatalf("❌ Failed to sign token: %v", err)
	}

	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("🎉 Demo data created successfully!")
	fmt.Println()
	fmt.Printf("🔑 API token for tenant %s (valid %s):\n", *tenant, *ttl)
	fmt.Println("   " + token)
	fmt.Println()
	fmt.Println("🌐 Start the server and open the template:")
	fmt.Println("   go run ./cmd/api")
	fmt.Printf("   %s/api/planograms/%s\n", cfg.BaseURL, tmpl.ID)
}

// demoLayout builds the layout through an editing session like the designer does
func demoLayout() (layout.Layout, error) {
	session := layout.NewSession(nil)

	var top, middle, bottom string
	edits := []func(layout.Layout) (layout.Layout, error){
		func(l layout.Layout) (layout.Layout, error) {
			l, top = layout.AddRow(l, "Top shelf")
			return l, nil
		},
		func(l layout.Layout) (layout.Layout, error) {
			l, middle = layout.AddRow(l, "Middle shelf")
			return l, nil
		},
		func(l layout.Layout) (layout.Layout, error) {
			l, bottom = layout.AddRow(l, "Bottom shelf")
			return l, nil
		},
	}
	for _, edit := range edits {
		if err := session.Apply(edit); err != nil {
			return nil, err
		}
	}

	place := func(rowID string, p models.ProductProduct, facings int) error {
		return session.Apply(func(l layout.Layout) (layout.Layout, error) {
			l, id, err := layout.AddPlacement(l, rowID, p.Ref())
			if err != nil {
				return nil, err
			}
			return layout.SetFacings(l, rowID, id, facings)
		})
	}

	steps := []struct {
		row     string
		product models.ProductProduct
		facings int
	}{
		{top, demoProducts[0], 4},
		{top, demoProducts[1], 2},
		{middle, demoProducts[2], 3},
		{bottom, demoProducts[3], 3},
		{bottom, demoProducts[4], 2},
	}
	for _, s := range steps {
		if err := place(s.row, s.product, s.facings); err != nil {
			return nil, err
		}
	}

	// A seasonal item that is not in the catalog yet
	if err := session.Apply(func(l layout.Layout) (layout.Layout, error) {
		l, _, err := layout.AddPlacement(l, middle, layout.Unregistered{Name: "Iced Tea Peach"})
		return l, err
	}); err != nil {
		return nil, err
	}

	for _, row := range []string{top, middle, bottom} {
		rowID := row
		if err := session.Apply(func(l layout.Layout) (layout.Layout, error) {
			return layout.SetRowWidth(l, rowID, "1", "m")
		}); err != nil {
			return nil, err
		}
	}

	return session.Current(), nil
}
