package models

import (
	"strconv"
	"time"

	"github.com/xelth-com/eckplanogram/internal/layout"
)

// ProductProduct mirrors Odoo 'product.product'. It is the catalog that
// registered shelf placements point at.
type ProductProduct struct {
	ID          int64      `gorm:"primaryKey;autoIncrement:false" json:"id" xmlrpc:"id"`
	DefaultCode OdooString `gorm:"index" json:"default_code" xmlrpc:"default_code"` // SKU
	Barcode     OdooString `gorm:"index" json:"barcode" xmlrpc:"barcode"`           // EAN13
	Name        string     `gorm:"index" json:"name" xmlrpc:"name"`
	Active      bool       `gorm:"not null;index" json:"active" xmlrpc:"active"`
	WriteDate   OdooTime   `json:"write_date" xmlrpc:"write_date"`

	LastSyncedAt time.Time `json:"last_synced_at"`
}

func (ProductProduct) TableName() string { return "product_product" }

// ProductID is the id used in layout references
func (p ProductProduct) ProductID() string { return strconv.FormatInt(p.ID, 10) }

// Ref builds a registered placement reference for this product
func (p ProductProduct) Ref() layout.Registered {
	return layout.Registered{ProductID: p.ProductID(), Name: p.Name}
}
