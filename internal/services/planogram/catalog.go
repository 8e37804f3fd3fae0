package planogram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xelth-com/eckplanogram/internal/layout"
	"github.com/xelth-com/eckplanogram/internal/models"
	"gorm.io/gorm"
)

var ErrProductNotFound = errors.New("product not found")

// SearchProducts finds active catalog products by name, SKU or barcode
func (s *Service) SearchProducts(ctx context.Context, query string, limit int) ([]models.ProductProduct, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := s.db.WithContext(ctx).Where("active = ?", true)
	if term := strings.TrimSpace(query); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(default_code) LIKE ? OR barcode = ?", like, like, term)
	}

	var products []models.ProductProduct
	if err := q.Order("name ASC").Limit(limit).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	return products, nil
}

// ResolveProduct builds a registered placement reference from a catalog id
func (s *Service) ResolveProduct(ctx context.Context, productID int64) (layout.Registered, error) {
	var p models.ProductProduct
	err := s.db.WithContext(ctx).First(&p, productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return layout.Registered{}, ErrProductNotFound
	}
	if err != nil {
		return layout.Registered{}, fmt.Errorf("failed to load product: %w", err)
	}
	return p.Ref(), nil
}
