package update

import (
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/japaniel/langsoft/pkg/decorate"
	"github.com/japaniel/langsoft/pkg/dictionary"
)

// countingBuilder decorates every occurrence of "ben" and records each line it builds.
type countingBuilder struct {
	built []string
}

func (b *countingBuilder) BuildLine(text string) []decorate.Range {
	b.built = append(b.built, text)
	var out []decorate.Range
	for i := 0; ; {
		j := strings.Index(text[i:], "ben")
		if j < 0 {
			return out
		}
		out = append(out, decorate.Range{From: i + j, To: i + j + 3, Class: "known", Term: "ben"})
		i += j + 3
	}
}

func tenLines() *Text {
	lines := make([]string, 10)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d ben", i+1)
	}
	return NewText(strings.Join(lines, "\n"))
}

func TestTextLines(t *testing.T) {
	doc := NewText("ab\ncde\n\nf")
	require.Equal(t, 4, doc.Lines())
	assert.Equal(t, Line{Number: 2, From: 3, To: 6, Text: "cde"}, doc.Line(2))
	assert.Equal(t, Line{Number: 3, From: 7, To: 7, Text: ""}, doc.Line(3))
	assert.Equal(t, 2, doc.LineAt(3).Number)
	assert.Equal(t, 2, doc.LineAt(6).Number, "newline belongs to its line")
	assert.Equal(t, 4, doc.LineAt(99).Number)
	assert.Equal(t, 1, doc.LineAt(-5).Number)
	assert.Equal(t, 4, doc.Line(40).Number)
}

func TestTextEdit(t *testing.T) {
	doc, ch := NewText("hello world").Edit(6, 11, "there")
	assert.Equal(t, "hello there", doc.String())
	assert.Equal(t, Change{From: 6, To: 11, FromA: 6, ToA: 11}, ch)
}

func TestFirstDocumentIsFullRebuild(t *testing.T) {
	b := &countingBuilder{}
	c := NewController(b)
	doc := tenLines()

	d := c.Handle(DocumentChanged{Doc: doc, Changes: []Change{{From: 0, To: 0}}})
	assert.Equal(t, FullRebuild, d)
	assert.Len(t, b.built, 10)
	assert.Len(t, c.Decorations(), 10)
}

func TestLineScopedUpdate(t *testing.T) {
	b := &countingBuilder{}
	c := NewController(b)
	doc := tenLines()
	require.Equal(t, FullRebuild, c.Handle(ExternalTrigger{Doc: doc}))

	before := make(map[int]*LineDecorations)
	for n := 1; n <= 10; n++ {
		before[n] = c.LineDecorations(n)
		require.NotNil(t, before[n])
	}

	line5 := doc.Line(5)
	edited, ch := doc.Edit(line5.From, line5.From, "ben and ")
	b.built = nil
	d := c.Handle(DocumentChanged{Doc: edited, Changes: []Change{ch}})

	assert.Equal(t, LineUpdate, d)
	assert.Equal(t, []string{"ben and line 5 ben"}, b.built, "only line 5 is re-tokenized")
	assert.Equal(t, []int{5}, c.Rebuilt())
	for n := 1; n <= 10; n++ {
		if n == 5 {
			assert.NotSame(t, before[n], c.LineDecorations(n))
			continue
		}
		assert.Same(t, before[n], c.LineDecorations(n), "line %d", n)
	}

	// Offsets of later lines follow the shifted line starts.
	got := c.Decorations()
	require.Len(t, got, 11)
	last := edited.Line(10)
	assert.Equal(t, last.From+len("line 10 "), got[10].From)
	assert.Equal(t, "ben", edited.String()[got[10].From:got[10].To])
}

func TestLineCountChangeIsFullRebuild(t *testing.T) {
	b := &countingBuilder{}
	c := NewController(b)
	doc := tenLines()
	c.Handle(ExternalTrigger{Doc: doc})

	edited, ch := doc.Edit(3, 3, "\n")
	b.built = nil
	assert.Equal(t, FullRebuild, c.Handle(DocumentChanged{Doc: edited, Changes: []Change{ch}}))
	assert.Len(t, b.built, 11)
}

func TestViewportAndDictionaryTriggerFullRebuild(t *testing.T) {
	b := &countingBuilder{}
	c := NewController(b)
	doc := tenLines()

	d := c.Handle(ViewportChanged{Doc: doc, Visible: []Span{{From: doc.Line(2).From, To: doc.Line(3).To}}})
	assert.Equal(t, FullRebuild, d)
	assert.Equal(t, []int{2, 3}, c.Rebuilt())
	assert.Nil(t, c.LineDecorations(1))

	assert.Equal(t, FullRebuild, c.Handle(DictionaryMutated{}))
	assert.Equal(t, []int{2, 3}, c.Rebuilt())
}

func TestEditOutsideViewportBuildsNothing(t *testing.T) {
	b := &countingBuilder{}
	c := NewController(b)
	doc := tenLines()
	c.Handle(ViewportChanged{Doc: doc, Visible: []Span{{From: 0, To: doc.Line(2).To}}})

	line8 := doc.Line(8)
	edited, ch := doc.Edit(line8.From, line8.From, "x")
	b.built = nil
	assert.Equal(t, Noop, c.Handle(DocumentChanged{Doc: edited, Changes: []Change{ch}}))
	assert.Empty(t, b.built)
	assert.Empty(t, c.Rebuilt())
}

func TestScrollDuringEditIsFullRebuild(t *testing.T) {
	b := &countingBuilder{}
	c := NewController(b)
	doc := tenLines()
	c.Handle(ViewportChanged{Doc: doc, Visible: []Span{{From: 0, To: doc.Line(2).To}}})

	edited, ch := doc.Edit(0, 0, "x")
	d := c.Handle(DocumentChanged{Doc: edited, Changes: []Change{ch}, Visible: []Span{{From: edited.Line(4).From, To: edited.Line(5).To}}})
	assert.Equal(t, FullRebuild, d)
	assert.Equal(t, []int{4, 5}, c.Rebuilt())
}

func TestNoopCases(t *testing.T) {
	c := NewController(&countingBuilder{})
	assert.Equal(t, Noop, c.Handle(DictionaryMutated{}), "no document yet")
	assert.Equal(t, Noop, c.Handle(DocumentChanged{}))

	doc := tenLines()
	c.Handle(ExternalTrigger{Doc: doc})
	assert.Equal(t, Noop, c.Handle(DocumentChanged{Doc: doc}))
}

func TestRebuildIsIdempotent(t *testing.T) {
	c := NewController(&countingBuilder{})
	c.Handle(ExternalTrigger{Doc: tenLines()})
	first := c.Decorations()
	c.Handle(ExternalTrigger{})
	assert.Equal(t, first, c.Decorations())
}

func TestControllerWithRealBuilder(t *testing.T) {
	s := dictionary.NewStore()
	_, err := s.AddDefinition("tabea", dictionary.TierUnknown, "a name", dictionary.Context{})
	require.NoError(t, err)

	c := NewController(decorate.NewBuilder(s, nil, nil))
	doc := NewText("Hello\nBen and Tabea went home.")
	c.Handle(ExternalTrigger{Doc: doc})
	assert.Equal(t, []decorate.Range{{From: 14, To: 19, Class: "unknown", Term: "tabea"}}, c.Decorations())
}

type edit struct {
	from, to int
	insert string
}

// applyEdits applies non-overlapping edits, given in ascending order of the
// original offsets, as one transaction and returns the change descriptors.
func applyEdits(doc *Text, edits []edit) (*Text, []Change) {
	out := doc
	for i := len(edits) - 1; i >= 0; i-- {
		out, _ = out.Edit(edits[i].from, edits[i].to, edits[i].insert)
	}
	changes := make([]Change, len(edits))
	shift := 0
	for i, e := range edits {
		changes[i] = Change{From: e.from + shift, To: e.from + shift + len(e.insert), FromA: e.from, ToA: e.to}
		shift += len(e.insert) - (e.to - e.from)
	}
	return out, changes
}

// fresh decorates doc from scratch.
func fresh(doc Document) []decorate.Range {
	c := NewController(&countingBuilder{})
	c.Handle(ExternalTrigger{Doc: doc})
	return c.Decorations()
}

func TestMultipleChangesThatShiftLinesRebuildEverything(t *testing.T) {
	c := NewController(&countingBuilder{})
	doc := NewText("a\nben\nx\ny\nz\nqq")
	c.Handle(ExternalTrigger{Doc: doc})

	// Join lines 1 and 2, split the last line: the line count stays at 6
	// but the lines in between move up.
	edited, changes := applyEdits(doc, []edit{{1, 2, ""}, {13, 13, "\n"}})
	require.Equal(t, "aben\nx\ny\nz\nq\nq", edited.String())
	require.Equal(t, doc.Lines(), edited.Lines())

	assert.Equal(t, FullRebuild, c.Handle(DocumentChanged{Doc: edited, Changes: changes}))
	assert.Equal(t, []decorate.Range{{From: 1, To: 4, Class: "known", Term: "ben"}}, c.Decorations())
	assert.Equal(t, fresh(edited), c.Decorations())
}

func TestMultipleLinePreservingChangesAreLineScoped(t *testing.T) {
	b := &countingBuilder{}
	c := NewController(b)
	doc := tenLines()
	c.Handle(ExternalTrigger{Doc: doc})

	edited, changes := applyEdits(doc, []edit{
		{doc.Line(2).From, doc.Line(2).From, "ben "},
		{doc.Line(7).From, doc.Line(7).From + 4, "ben"},
	})
	b.built = nil
	assert.Equal(t, LineUpdate, c.Handle(DocumentChanged{Doc: edited, Changes: changes}))
	assert.Equal(t, []int{2, 7}, c.Rebuilt())
	assert.Equal(t, fresh(edited), c.Decorations())
}

func TestNewDocumentResetsViewport(t *testing.T) {
	c := NewController(&countingBuilder{})
	doc := tenLines()
	c.Handle(ViewportChanged{Doc: doc, Visible: []Span{{From: 0, To: doc.Line(2).To}}})

	next := NewText("ben\nben\nben\nben")
	assert.Equal(t, FullRebuild, c.Handle(ExternalTrigger{Doc: next}))
	assert.Nil(t, c.Visible())
	assert.Len(t, c.Decorations(), 4)
}

func TestIncrementalMatchesFullRebuild(t *testing.T) {
	pieces := []string{"", "ben", "x", "\n", "be", "n\n", "ben\nben"}
	rapid.Check(t, func(t *rapid.T) {
		lines := rapid.SliceOfN(rapid.SampledFrom([]string{"", "ben", "a ben b", "xyz", "benben"}), 1, 8).Draw(t, "lines")
		doc := NewText(strings.Join(lines, "\n"))

		k := rapid.IntRange(1, 3).Draw(t, "edits")
		cuts := rapid.SliceOfN(rapid.IntRange(0, doc.Len()), 2*k, 2*k).Draw(t, "cuts")
		slices.Sort(cuts)
		edits := make([]edit, k)
		for i := range edits {
			edits[i] = edit{cuts[2*i], cuts[2*i+1], rapid.SampledFrom(pieces).Draw(t, "insert")}
		}

		c := NewController(&countingBuilder{})
		c.Handle(ExternalTrigger{Doc: doc})
		edited, changes := applyEdits(doc, edits)
		c.Handle(DocumentChanged{Doc: edited, Changes: changes})

		if got, want := c.Decorations(), fresh(edited); !slices.Equal(got, want) {
			t.Fatalf("incremental %v, full rebuild %v (doc %q)", got, want, edited.String())
		}
	})
}
