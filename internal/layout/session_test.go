package layout

import (
	"errors"
	"testing"
)

func TestSessionUndoAndDiscard(t *testing.T) {
	committed, rowID := AddRow(nil, "Top")
	s := NewSession(committed)

	err := s.Apply(func(l Layout) (Layout, error) {
		out, _, err := AddPlacement(l, rowID, Registered{ProductID: "p-1", Name: "Cola"})
		return out, err
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !s.Dirty() || s.Current().TotalFacings() != 1 {
		t.Fatalf("Expected one pending placement")
	}

	if !s.Undo() {
		t.Fatal("Undo should succeed")
	}
	if s.Current().TotalFacings() != 0 {
		t.Error("Undo should remove the placement")
	}
	if s.Undo() {
		t.Error("Nothing left to undo")
	}

	_ = s.Apply(func(l Layout) (Layout, error) { return RenameRow(l, rowID, "Eye level") })
	s.Discard()
	if s.Current()[0].Label != "Top" {
		t.Errorf("Discard should restore the committed layout, got %q", s.Current()[0].Label)
	}
}

func TestSessionFailedEditKeepsState(t *testing.T) {
	committed, _ := AddRow(nil, "Top")
	s := NewSession(committed)

	err := s.Apply(func(l Layout) (Layout, error) { return RemoveRow(l, "nope") })
	if !errors.Is(err, ErrRowNotFound) {
		t.Fatalf("Expected ErrRowNotFound, got %v", err)
	}
	if s.Dirty() || len(s.Current()) != 1 {
		t.Error("Failed edit must not change the session")
	}
}

func TestSessionMarkSaved(t *testing.T) {
	s := NewSession(nil)
	_ = s.Apply(func(l Layout) (Layout, error) {
		out, _ := AddRow(l, "A")
		return out, nil
	})
	s.MarkSaved()
	s.Discard()
	if len(s.Current()) != 1 {
		t.Errorf("Saved row should survive Discard, got %d rows", len(s.Current()))
	}
}
