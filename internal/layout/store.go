package layout

import (
	"fmt"

	"github.com/google/uuid"
)

// The functions below never modify their input. Each returns a fresh Layout
// so the designer can diff, undo or discard a working copy.

// newID is swapped in tests for deterministic ids
var newID = func() string { return uuid.NewString() }

// AddRow appends an empty row and returns the new layout and the row id
func AddRow(l Layout, label string) (Layout, string) {
	out := l.Clone()
	id := newID()
	if label == "" {
		label = fmt.Sprintf("Shelf %d", len(out)+1)
	}
	out = append(out, ShelfRow{ID: id, Label: label, Placements: []Placement{}})
	return out, id
}

// RemoveRow drops a row and all of its placements
func RemoveRow(l Layout, rowID string) (Layout, error) {
	idx := l.rowIndex(rowID)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrRowNotFound, rowID)
	}
	out := make(Layout, 0, len(l)-1)
	for i, row := range l {
		if i != idx {
			out = append(out, row.clone())
		}
	}
	return out, nil
}

// RenameRow changes the label of a row
func RenameRow(l Layout, rowID, label string) (Layout, error) {
	return updateRow(l, rowID, func(row *ShelfRow) error {
		row.Label = label
		return nil
	})
}

// AddPlacement appends a product to a row with a fresh instance id and one facing
func AddPlacement(l Layout, rowID string, ref ProductRef) (Layout, string, error) {
	if ref == nil {
		return nil, "", fmt.Errorf("%w: nil product reference", ErrInvalidLayout)
	}
	id := newID()
	out, err := updateRow(l, rowID, func(row *ShelfRow) error {
		row.Placements = append(row.Placements, Placement{InstanceID: id, Product: ref, Facings: 1})
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return out, id, nil
}

// RemovePlacement drops a single placement instance from a row
func RemovePlacement(l Layout, rowID, instanceID string) (Layout, error) {
	return updateRow(l, rowID, func(row *ShelfRow) error {
		idx := row.placementIndex(instanceID)
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrPlacementNotFound, instanceID)
		}
		row.Placements = append(row.Placements[:idx], row.Placements[idx+1:]...)
		return nil
	})
}

// SetFacings sets the facings of a placement, clamped to at least 1
func SetFacings(l Layout, rowID, instanceID string, n int) (Layout, error) {
	return updateRow(l, rowID, func(row *ShelfRow) error {
		idx := row.placementIndex(instanceID)
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrPlacementNotFound, instanceID)
		}
		row.Placements[idx].Facings = clampFacings(n)
		return nil
	})
}

// SetRowWidth stores the raw width input. Conversion happens in Width.Centimeters.
func SetRowWidth(l Layout, rowID, value, unit string) (Layout, error) {
	return updateRow(l, rowID, func(row *ShelfRow) error {
		if value == "" {
			row.Width = nil
			return nil
		}
		row.Width = &Width{Value: value, Unit: unit}
		return nil
	})
}

func updateRow(l Layout, rowID string, fn func(row *ShelfRow) error) (Layout, error) {
	idx := l.rowIndex(rowID)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrRowNotFound, rowID)
	}
	out := l.Clone()
	if err := fn(&out[idx]); err != nil {
		return nil, err
	}
	return out, nil
}

func (l Layout) rowIndex(rowID string) int {
	for i, row := range l {
		if row.ID == rowID {
			return i
		}
	}
	return -1
}

func (r *ShelfRow) placementIndex(instanceID string) int {
	for i, p := range r.Placements {
		if p.InstanceID == instanceID {
			return i
		}
	}
	return -1
}
