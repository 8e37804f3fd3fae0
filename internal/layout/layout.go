package layout

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrRowNotFound       = errors.New("shelf row not found")
	ErrPlacementNotFound = errors.New("placement not found")
	ErrInvalidLayout     = errors.New("invalid layout")
)

// Layout is the ordered list of shelf rows, top to bottom
type Layout []ShelfRow

// ShelfRow is one physical shelf of a planogram
type ShelfRow struct {
	ID         string      `json:"id"`
	Label      string      `json:"label"`
	Placements []Placement `json:"placements"`
	Width      *Width      `json:"width,omitempty"`
}

// Width keeps the raw user input; use Centimeters for the canonical value
type Width struct {
	Value string `json:"value"`
	Unit  string `json:"unit"`
}

// Centimeters converts the width to cm. Non-positive or unparsable values are unset.
func (w *Width) Centimeters() (float64, bool) {
	if w == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(w.Value), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	if strings.EqualFold(strings.TrimSpace(w.Unit), "m") {
		return v * 100, true
	}
	return v, true
}

// Placement is one product slot in a row. InstanceID identifies the slot,
// not the product: the same product may appear several times in one row.
type Placement struct {
	InstanceID string
	Product    ProductRef
	Facings    int
}

type placementJSON struct {
	InstanceID string          `json:"instanceId"`
	Product    json.RawMessage `json:"product"`
	Facings    int             `json:"facings"`

	// flat fields written by older designer builds
	ProductID   *string `json:"productId,omitempty"`
	ProductName string  `json:"productName,omitempty"`
}

// MarshalJSON implements json.Marshaler
func (p Placement) MarshalJSON() ([]byte, error) {
	product, err := marshalProductRef(p.Product)
	if err != nil {
		return nil, err
	}
	return json.Marshal(placementJSON{
		InstanceID: p.InstanceID,
		Product:    product,
		Facings:    p.Facings,
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (p *Placement) UnmarshalJSON(data []byte) error {
	var raw placementJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.InstanceID = raw.InstanceID
	p.Facings = clampFacings(raw.Facings)

	if len(raw.Product) > 0 && string(raw.Product) != "null" {
		ref, err := unmarshalProductRef(raw.Product)
		if err != nil {
			return fmt.Errorf("placement %s: %w", raw.InstanceID, err)
		}
		p.Product = ref
		return nil
	}

	// Legacy shape: a nullable productId next to the display name
	if raw.ProductID != nil && *raw.ProductID != "" {
		p.Product = Registered{ProductID: *raw.ProductID, Name: raw.ProductName}
	} else {
		p.Product = Unregistered{Name: raw.ProductName}
	}
	return nil
}

func clampFacings(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// Clone returns a deep copy
func (l Layout) Clone() Layout {
	if l == nil {
		return Layout{}
	}
	out := make(Layout, len(l))
	for i, row := range l {
		out[i] = row.clone()
	}
	return out
}

func (r ShelfRow) clone() ShelfRow {
	c := r
	c.Placements = append([]Placement(nil), r.Placements...)
	if c.Placements == nil {
		c.Placements = []Placement{}
	}
	if r.Width != nil {
		w := *r.Width
		c.Width = &w
	}
	return c
}

// TotalFacings sums the facings of every placement
func (l Layout) TotalFacings() int {
	total := 0
	for _, row := range l {
		for _, p := range row.Placements {
			total += p.Facings
		}
	}
	return total
}

// InstanceIDs returns every placement instance id in layout order
func (l Layout) InstanceIDs() []string {
	var ids []string
	for _, row := range l {
		for _, p := range row.Placements {
			ids = append(ids, p.InstanceID)
		}
	}
	return ids
}

// Validate checks the structural invariants a layout must satisfy before commit
func (l Layout) Validate() error {
	rows := make(map[string]bool, len(l))
	instances := make(map[string]bool)
	for i, row := range l {
		if row.ID == "" {
			return fmt.Errorf("%w: row %d has no id", ErrInvalidLayout, i)
		}
		if rows[row.ID] {
			return fmt.Errorf("%w: duplicate row id %s", ErrInvalidLayout, row.ID)
		}
		rows[row.ID] = true

		for _, p := range row.Placements {
			if p.InstanceID == "" {
				return fmt.Errorf("%w: placement without instance id in row %s", ErrInvalidLayout, row.ID)
			}
			if instances[p.InstanceID] {
				return fmt.Errorf("%w: duplicate instance id %s", ErrInvalidLayout, p.InstanceID)
			}
			instances[p.InstanceID] = true
			if p.Product == nil {
				return fmt.Errorf("%w: placement %s has no product reference", ErrInvalidLayout, p.InstanceID)
			}
			if p.Facings < 1 {
				return fmt.Errorf("%w: placement %s has facings %d", ErrInvalidLayout, p.InstanceID, p.Facings)
			}
		}
	}
	return nil
}

// MarshalJSON encodes an empty layout as [] rather than null
func (l Layout) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]ShelfRow(l))
}
