package update

import (
	"slices"
	"strings"
)

// Line is one line of a document. Number is 1-based; From and To are the
// absolute byte offsets of the line's text, excluding the newline.
type Line struct {
	Number int
	From   int
	To     int
	Text   string
}

// Document is the host's text buffer as seen by the controller.
type Document interface {
	// Len is the document length in bytes.
	Len() int
	// Lines is the number of lines, at least 1.
	Lines() int
	// Line returns line n, 1-based. Out-of-range numbers are clamped.
	Line(n int) Line
	// LineAt returns the line containing pos. Out-of-range positions are clamped.
	LineAt(pos int) Line
}

// Span is a visible region [From, To) of the document.
type Span struct {
	From int
	To   int
}

// Text is an immutable in-memory Document.
type Text struct {
	s      string
	starts []int
}

// NewText indexes the line starts of s.
func NewText(s string) *Text {
	starts := []int{0}
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &Text{s: s, starts: starts}
}

func (t *Text) String() string { return t.s }

func (t *Text) Len() int { return len(t.s) }

func (t *Text) Lines() int { return len(t.starts) }

func (t *Text) Line(n int) Line {
	n = max(1, min(n, len(t.starts)))
	from := t.starts[n-1]
	to := len(t.s)
	if n < len(t.starts) {
		to = t.starts[n] - 1
	}
	return Line{Number: n, From: from, To: to, Text: t.s[from:to]}
}

func (t *Text) LineAt(pos int) Line {
	pos = max(0, min(pos, len(t.s)))
	i, found := slices.BinarySearch(t.starts, pos)
	if !found {
		i--
	}
	return t.Line(i + 1)
}

// Edit returns a new Text with [from, to) replaced by insert, together with
// the change descriptor for the edit.
func (t *Text) Edit(from, to int, insert string) (*Text, Change) {
	from = max(0, min(from, len(t.s)))
	to = max(from, min(to, len(t.s)))
	var b strings.Builder
	b.Grow(len(t.s) - (to - from) + len(insert))
	b.WriteString(t.s[:from])
	b.WriteString(insert)
	b.WriteString(t.s[to:])
	return NewText(b.String()), Change{From: from, To: from + len(insert), FromA: from, ToA: to}
}

// WholeDocument returns the span covering all of doc.
func WholeDocument(doc Document) []Span {
	if doc == nil {
		return nil
	}
	return []Span{{From: 0, To: doc.Len()}}
}

// visibleLines returns the sorted line numbers intersecting spans.
func visibleLines(doc Document, spans []Span) []int {
	if doc == nil {
		return nil
	}
	seen := make(map[int]bool)
	var out []int
	for _, s := range spans {
		if s.To < s.From {
			continue
		}
		first := doc.LineAt(s.From).Number
		last := doc.LineAt(max(s.From, s.To-1)).Number
		for n := first; n <= last; n++ {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	slices.Sort(out)
	return out
}
