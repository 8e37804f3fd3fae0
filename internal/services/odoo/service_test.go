package odoo

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xelth-com/eckplanogram/internal/database"
	"github.com/xelth-com/eckplanogram/internal/models"
)

type fakeSource struct {
	pages   [][]map[string]interface{}
	domains [][]interface{}
}

func (f *fakeSource) Authenticate() (int, error) { return 2, nil }

func (f *fakeSource) SearchRead(model string, domain []interface{}, fields []string, limit, offset int, order string, result interface{}) error {
	f.domains = append(f.domains, domain)
	page := []map[string]interface{}{}
	if len(f.pages) > 0 {
		page, f.pages = f.pages[0], f.pages[1:]
	}
	data, _ := json.Marshal(page)
	return json.Unmarshal(data, result)
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.ConnectSQLite(":memory:", true)
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSyncProductsUpserts(t *testing.T) {
	db := newTestDB(t)
	src := &fakeSource{pages: [][]map[string]interface{}{{
		{"id": 7, "name": "Cola 0.5L", "default_code": "COLA-05", "barcode": false, "write_date": "2026-01-05 10:00:00", "active": true},
		{"id": 8, "name": "Chips", "default_code": false, "barcode": "4000000000008", "write_date": "2026-01-06 11:30:00", "active": true},
		{"id": 9, "name": "Old Lemonade", "default_code": "LEM-OLD", "barcode": false, "write_date": "2026-01-04 08:00:00", "active": false},
	}}}
	svc := NewSyncServiceWithSource(db, Config{}, src)

	n, err := svc.SyncProducts(context.Background())
	if err != nil {
		t.Fatalf("SyncProducts failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 saved products, got %d", n)
	}

	// Archived products must land inactive on first insert
	var lemonade models.ProductProduct
	if err := db.First(&lemonade, 9).Error; err != nil {
		t.Fatalf("product 9 not stored: %v", err)
	}
	if lemonade.Active {
		t.Errorf("Archived product stored as active: %+v", lemonade)
	}

	var chips models.ProductProduct
	if err := db.First(&chips, 8).Error; err != nil {
		t.Fatalf("product 8 not stored: %v", err)
	}
	if chips.DefaultCode != "" || chips.Barcode != "4000000000008" {
		t.Errorf("Odoo false values not normalized: %+v", chips)
	}
	if chips.LastSyncedAt.IsZero() {
		t.Error("LastSyncedAt not set")
	}

	// Second run starts from the newest write_date and updates in place
	src.pages = [][]map[string]interface{}{{
		{"id": 7, "name": "Cola Zero 0.5L", "default_code": "COLA-05", "barcode": false, "write_date": "2026-01-07 09:00:00", "active": false},
	}}
	if _, err := svc.SyncProducts(context.Background()); err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	first, _ := src.domains[1][0].([]interface{})
	if len(first) != 3 || first[2] != "2026-01-06 11:30:00" {
		t.Errorf("Expected incremental domain from last write_date, got %v", src.domains[1][0])
	}

	var cola models.ProductProduct
	db.First(&cola, 7)
	if cola.Name != "Cola Zero 0.5L" || cola.Active {
		t.Errorf("Product not updated: %+v", cola)
	}
	var total int64
	db.Model(&models.ProductProduct{}).Count(&total)
	if total != 3 {
		t.Errorf("Upsert should not duplicate rows, got %d", total)
	}

	var active int64
	db.Model(&models.ProductProduct{}).Where("active = ?", true).Count(&active)
	if active != 1 {
		t.Errorf("Expected only Chips to stay active, got %d active", active)
	}
}

func TestClientSearchReadOverXMLRPC(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "text/xml")
		switch r.URL.Path {
		case "/xmlrpc/2/common":
			if !strings.Contains(string(body), "authenticate") {
				t.Errorf("unexpected common call: %s", body)
			}
			io.WriteString(w, `<?xml version="1.0"?><methodResponse><params><param><value><int>2</int></value></param></params></methodResponse>`)
		case "/xmlrpc/2/object":
			if !strings.Contains(string(body), "search_read") {
				t.Errorf("unexpected object call: %s", body)
			}
			io.WriteString(w, `<?xml version="1.0"?><methodResponse><params><param><value><array><data>
<value><struct>
<member><name>id</name><value><int>7</int></value></member>
<member><name>name</name><value><string>Cola 0.5L</string></value></member>
<member><name>default_code</name><value><boolean>0</boolean></value></member>
<member><name>barcode</name><value><string>4000000000007</string></value></member>
<member><name>write_date</name><value><string>2026-01-05 10:00:00</string></value></member>
<member><name>active</name><value><boolean>1</boolean></value></member>
</struct></value>
</data></array></value></param></params></methodResponse>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "odoo", "admin", "secret")
	uid, err := c.Authenticate()
	if err != nil || uid != 2 {
		t.Fatalf("Authenticate: uid=%d err=%v", uid, err)
	}

	var products []models.ProductProduct
	if err := c.SearchRead("product.product", []interface{}{}, productFields, 10, 0, "id asc", &products); err != nil {
		t.Fatalf("SearchRead failed: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("Expected 1 product, got %d", len(products))
	}
	p := products[0]
	if p.ID != 7 || p.Name != "Cola 0.5L" || p.DefaultCode != "" || !p.Active {
		t.Errorf("Unexpected product: %+v", p)
	}
	if !p.WriteDate.Equal(time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected write date: %v", p.WriteDate)
	}
}

func TestStartWithoutURLIsNoop(t *testing.T) {
	svc := NewSyncServiceWithSource(newTestDB(t), Config{}, &fakeSource{})
	svc.Start()
	svc.Stop()
	svc.Stop()
}
