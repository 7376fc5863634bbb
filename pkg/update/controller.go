// Package update keeps a document's decorations current as the document,
// the viewport and the dictionaries change, rebuilding as little as possible.
package update

import (
	"slices"

	"github.com/japaniel/langsoft/pkg/decorate"
	"github.com/japaniel/langsoft/pkg/log"
)

// Event is one of DocumentChanged, ViewportChanged, DictionaryMutated or
// ExternalTrigger.
type Event interface{ event() }

// Change is an edited region: [From, To) in the new document replaced
// [FromA, ToA) of the previous one. Events carrying more than one change must
// fill in FromA and ToA.
type Change struct {
	From  int
	To    int
	FromA int
	ToA   int
}

// DocumentChanged reports an edit. Visible may be nil when the viewport did not move.
// A controller that never received visible spans treats the whole document as visible.
type DocumentChanged struct {
	Doc     Document
	Changes []Change
	Visible []Span
}

// ViewportChanged reports that a different region became visible.
type ViewportChanged struct {
	Doc     Document
	Visible []Span
}

// DictionaryMutated is emitted after any store mutation.
type DictionaryMutated struct{}

// ExternalTrigger forces a rebuild. A non-nil Doc replaces the current
// document and makes the whole of it visible.
type ExternalTrigger struct {
	Doc Document
}

func (DocumentChanged) event()   {}
func (ViewportChanged) event()   {}
func (DictionaryMutated) event() {}
func (ExternalTrigger) event()   {}

// Decision is the scope the controller chose for an event.
type Decision int

const (
	// Noop means no cached line was rebuilt.
	Noop Decision = iota
	// LineUpdate means only the edited visible lines were rebuilt.
	LineUpdate
	FullRebuild
)

func (d Decision) String() string {
	switch d {
	case Noop:
		return "noop"
	case LineUpdate:
		return "line"
	case FullRebuild:
		return "full"
	default:
		return "unknown"
	}
}

// LineBuilder decorates one line of text with line-relative offsets.
// *decorate.Builder satisfies it.
type LineBuilder interface {
	BuildLine(text string) []decorate.Range
}

// LineDecorations holds one line's ranges relative to the line start. A value
// is never modified after it is cached, so pointer identity shows whether a
// line was rebuilt.
type LineDecorations struct {
	Line   int
	Ranges []decorate.Range
}

// Controller owns the decoration set of one document view.
// It is not safe for concurrent use.
type Controller struct {
	builder LineBuilder
	doc     Document
	visible []Span
	// visLines are the line numbers covered by visible, fixed when visible is set.
	visLines []int
	lines    map[int]*LineDecorations
	// rebuilt lists the lines built by the last Handle call.
	rebuilt []int
}

// NewController returns a controller with no document.
func NewController(b LineBuilder) *Controller {
	return &Controller{builder: b, lines: make(map[int]*LineDecorations)}
}

// Document returns the current document, or nil.
func (c *Controller) Document() Document { return c.doc }

// Visible returns the current visible spans; nil means the whole document.
func (c *Controller) Visible() []Span { return slices.Clone(c.visible) }

// Rebuilt returns the line numbers built by the most recent event.
func (c *Controller) Rebuilt() []int { return slices.Clone(c.rebuilt) }

// Handle applies ev and reports the scope of the resulting rebuild.
func (c *Controller) Handle(ev Event) Decision {
	c.rebuilt = c.rebuilt[:0]
	var d Decision
	switch ev := ev.(type) {
	case DocumentChanged:
		d = c.documentChanged(ev)
	case ViewportChanged:
		if ev.Doc != nil {
			c.doc = ev.Doc
		}
		visible := ev.Visible
		if visible == nil {
			visible = c.visible
		}
		c.setVisible(visible)
		d = c.full()
	case DictionaryMutated:
		d = c.full()
	case ExternalTrigger:
		if ev.Doc != nil {
			c.doc = ev.Doc
			c.setVisible(nil)
		}
		d = c.full()
	}
	log.Debug(log.CatUpdate, "Handled event", "decision", d.String(), "rebuilt", len(c.rebuilt))
	return d
}

func (c *Controller) documentChanged(ev DocumentChanged) Decision {
	if ev.Doc == nil {
		return Noop
	}
	prev := c.doc
	c.doc = ev.Doc
	if prev == nil || prev.Lines() != ev.Doc.Lines() || !keepsLineNumbers(prev, ev.Doc, ev.Changes) {
		visible := ev.Visible
		if visible == nil {
			visible = c.visible
		}
		c.setVisible(visible)
		return c.full()
	}
	if ev.Visible != nil {
		// Offsets shift with every edit; compare by line instead.
		moved := !slices.Equal(c.visLines, visibleLines(ev.Doc, ev.Visible))
		c.setVisible(ev.Visible)
		if moved {
			return c.full()
		}
	}
	if len(ev.Changes) == 0 {
		return Noop
	}

	for _, n := range changedLines(c.doc, ev.Changes) {
		if _, ok := slices.BinarySearch(c.visLines, n); ok {
			c.buildLine(n)
		}
	}
	if len(c.rebuilt) == 0 {
		return Noop
	}
	return LineUpdate
}

// keepsLineNumbers reports whether every line outside the changes kept its
// number. With one change an unchanged line count is enough; with several,
// each change must remove as many newlines as it inserts, or the lines
// between two changes shift.
func keepsLineNumbers(prev, doc Document, changes []Change) bool {
	if len(changes) <= 1 {
		return true
	}
	for _, ch := range changes {
		removed := prev.LineAt(ch.ToA).Number - prev.LineAt(ch.FromA).Number
		inserted := doc.LineAt(ch.To).Number - doc.LineAt(ch.From).Number
		if removed != inserted {
			return false
		}
	}
	return true
}

// setVisible records the visible spans. Nil spans mean the whole document.
func (c *Controller) setVisible(spans []Span) {
	c.visible = slices.Clone(spans)
	if spans == nil {
		c.visLines = visibleLines(c.doc, WholeDocument(c.doc))
		return
	}
	c.visLines = visibleLines(c.doc, spans)
}

func changedLines(doc Document, changes []Change) []int {
	var out []int
	for _, ch := range changes {
		first := doc.LineAt(ch.From).Number
		last := doc.LineAt(max(ch.From, ch.To)).Number
		for n := first; n <= last; n++ {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// full drops every cached line and decorates all visible lines again.
func (c *Controller) full() Decision {
	if c.doc == nil {
		return Noop
	}
	clear(c.lines)
	for _, n := range c.visLines {
		c.buildLine(n)
	}
	return FullRebuild
}

func (c *Controller) buildLine(n int) {
	line := c.doc.Line(n)
	c.lines[n] = &LineDecorations{Line: n, Ranges: c.builder.BuildLine(line.Text)}
	c.rebuilt = append(c.rebuilt, n)
}

// LineDecorations returns the cached decorations of line n, or nil.
func (c *Controller) LineDecorations(n int) *LineDecorations { return c.lines[n] }

// Decorations returns every range in absolute document offsets, sorted.
func (c *Controller) Decorations() []decorate.Range {
	if c.doc == nil {
		return nil
	}
	nums := make([]int, 0, len(c.lines))
	for n := range c.lines {
		nums = append(nums, n)
	}
	slices.Sort(nums)

	var out []decorate.Range
	for _, n := range nums {
		start := c.doc.Line(n).From
		for _, r := range c.lines[n].Ranges {
			r.From += start
			r.To += start
			out = append(out, r)
		}
	}
	return out
}
