package layout

// Session holds the working copy of one template's layout between saves.
// It is not safe for concurrent use; one designer edits one template.
type Session struct {
	base    Layout
	current Layout
	history []Layout
}

// NewSession starts editing from the committed layout
func NewSession(committed Layout) *Session {
	base := committed.Clone()
	return &Session{base: base, current: base.Clone()}
}

// Current returns a copy of the working layout
func (s *Session) Current() Layout {
	return s.current.Clone()
}

// Apply runs a layout edit and records the previous state for Undo.
// A failed edit leaves the session untouched.
func (s *Session) Apply(edit func(Layout) (Layout, error)) error {
	next, err := edit(s.current)
	if err != nil {
		return err
	}
	s.history = append(s.history, s.current)
	s.current = next
	return nil
}

// Undo reverts the last applied edit. It reports false when there is nothing to undo.
func (s *Session) Undo() bool {
	if len(s.history) == 0 {
		return false
	}
	s.current = s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]
	return true
}

// Dirty reports whether any edit is pending
func (s *Session) Dirty() bool {
	return len(s.history) > 0
}

// Discard drops all pending edits
func (s *Session) Discard() {
	s.current = s.base.Clone()
	s.history = nil
}

// MarkSaved makes the working layout the new base after a successful commit
func (s *Session) MarkSaved() {
	s.base = s.current.Clone()
	s.history = nil
}
