package update

import "github.com/japaniel/langsoft/pkg/decorate"

// Selection overlays the span the user last selected. It is independent of
// the dictionary decorations.
type Selection struct {
	class string
	doc   Document
	from  int
	to    int
	set   bool
}

// NewSelection returns an empty overlay drawing with class, or
// decorate.ClassSelection when class is empty.
func NewSelection(class string) *Selection {
	if class == "" {
		class = decorate.ClassSelection
	}
	return &Selection{class: class}
}

// Set stores [from, to). The span is not clamped to the document.
func (s *Selection) Set(from, to int) {
	s.from, s.to, s.set = from, to, true
}

// Clear removes the selection.
func (s *Selection) Clear() { s.set = false }

// Span returns the stored span and whether one is set.
func (s *Selection) Span() (from, to int, ok bool) { return s.from, s.to, s.set }

// SetDocument replaces the document the overlay is checked against.
func (s *Selection) SetDocument(doc Document) { s.doc = doc }

// Handle tracks the current document and reports whether the overlay must
// be redrawn. Dictionary mutations never affect it.
func (s *Selection) Handle(ev Event) bool {
	switch ev := ev.(type) {
	case DocumentChanged:
		if ev.Doc != nil {
			s.doc = ev.Doc
		}
		return true
	case ViewportChanged:
		if ev.Doc != nil {
			s.doc = ev.Doc
		}
		return true
	case ExternalTrigger:
		if ev.Doc != nil {
			s.doc = ev.Doc
		}
		return true
	}
	return false
}

// Decorations returns the overlay range, or nil when nothing is selected or
// the stored span ends past the current document.
func (s *Selection) Decorations() []decorate.Range {
	if !s.set || s.doc == nil {
		return nil
	}
	if s.to > s.doc.Len() || s.from < 0 || s.from >= s.to {
		return nil
	}
	return []decorate.Range{{From: s.from, To: s.to, Class: s.class}}
}
