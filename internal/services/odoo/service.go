package odoo

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/xelth-com/eckplanogram/internal/database"
	"github.com/xelth-com/eckplanogram/internal/models"
	"gorm.io/gorm/clause"
)

const productBatchSize = 500

var productFields = []string{"default_code", "barcode", "name", "write_date", "active"}

// Source is the part of the Odoo client the sync needs
type Source interface {
	Authenticate() (int, error)
	SearchRead(model string, domain []interface{}, fields []string, limit, offset int, order string, result interface{}) error
}

// SyncService keeps the local product catalog in step with Odoo
type SyncService struct {
	source   Source
	db       *database.DB
	cfg      Config
	stop     chan struct{}
	stopOnce sync.Once
	mu       sync.Mutex
}

// Config holds Odoo connection settings
type Config struct {
	URL          string
	Database     string
	Username     string
	Password     string
	SyncInterval int // in minutes
}

// NewSyncService creates a new synchronization service
func NewSyncService(db *database.DB, cfg Config) *SyncService {
	return NewSyncServiceWithSource(db, cfg, NewClient(cfg.URL, cfg.Database, cfg.Username, cfg.Password))
}

// NewSyncServiceWithSource uses an explicit source, mainly for tests
func NewSyncServiceWithSource(db *database.DB, cfg Config, source Source) *SyncService {
	return &SyncService{
		source: source,
		db:     db,
		cfg:    cfg,
		stop:   make(chan struct{}),
	}
}

// Start begins the background synchronization loop
func (s *SyncService) Start() {
	if s.cfg.URL == "" {
		log.Println("Odoo Sync disabled: ODOO_URL not configured")
		return
	}

	go func() {
		log.Println("📡 Odoo catalog sync started")

		if _, err := s.source.Authenticate(); err != nil {
			log.Printf("❌ Odoo authentication failed: %v", err)
			return
		}

		s.runSync()

		interval := time.Duration(s.cfg.SyncInterval) * time.Minute
		if s.cfg.SyncInterval <= 0 {
			interval = 15 * time.Minute
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runSync()
			case <-s.stop:
				log.Println("🛑 Odoo catalog sync stopped")
				return
			}
		}
	}()
}

// Stop halts the service
func (s *SyncService) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *SyncService) runSync() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	if _, err := s.SyncProducts(ctx); err != nil {
		log.Printf("❌ Odoo Sync Error (Products): %v", err)
	}
}

// SyncProducts pulls products changed since the newest local write_date and
// upserts them into product_product. It returns the number of saved rows.
func (s *SyncService) SyncProducts(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.Println("📦 Odoo: Syncing Products...")

	lastWriteDate := "2000-01-01 00:00:00"
	var lastProduct models.ProductProduct
	result := s.db.WithContext(ctx).Order("write_date DESC").Limit(1).Find(&lastProduct)
	if result.Error == nil && result.RowsAffected > 0 && !lastProduct.WriteDate.IsZero() {
		lastWriteDate = lastProduct.WriteDate.OdooFormat()
	}

	// Inactive products are fetched too so archived items disappear from the palette
	domain := []interface{}{
		[]interface{}{"write_date", ">=", lastWriteDate},
		"|",
		[]interface{}{"active", "=", true},
		[]interface{}{"active", "=", false},
	}

	count := 0
	for offset := 0; ; offset += productBatchSize {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		var products []models.ProductProduct
		if err := s.source.SearchRead("product.product", domain, productFields, productBatchSize, offset, "write_date asc, id asc", &products); err != nil {
			return count, err
		}

		now := time.Now().UTC()
		for i := range products {
			products[i].LastSyncedAt = now
			// Upsert logic based on ID (Primary Key is Odoo ID)
			if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				UpdateAll: true,
			}).Create(&products[i]).Error; err != nil {
				return count, fmt.Errorf("failed to save product %d: %w", products[i].ID, err)
			}
			count++
		}

		if len(products) < productBatchSize {
			break
		}
	}

	log.Printf("✅ Odoo: Updated %d products", count)
	return count, nil
}
