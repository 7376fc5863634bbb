package decorate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/langsoft/pkg/dictionary"
	"github.com/japaniel/langsoft/pkg/phrase"
)

func clock() func() time.Time {
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newStore(t *testing.T) *dictionary.Store {
	t.Helper()
	return dictionary.NewStore(dictionary.WithClock(clock()))
}

func define(t *testing.T, s *dictionary.Store, term string, tier dictionary.Tier) {
	t.Helper()
	_, err := s.AddDefinition(term, tier, "meaning of "+term, dictionary.Context{})
	require.NoError(t, err)
}

func classes(rs []Range) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Class
	}
	return out
}

func TestBenAndTabeaScenario(t *testing.T) {
	s := newStore(t)
	define(t, s, "ben", dictionary.TierKnown)
	define(t, s, "tabea", dictionary.TierUnknown)

	got := NewBuilder(s, nil, nil).BuildLine("Ben and Tabea went home.")
	assert.Equal(t, []Range{
		{From: 0, To: 3, Class: "known", Term: "ben"},
		{From: 8, To: 13, Class: "unknown", Term: "tabea"},
	}, got)
}

func TestPhrasePrecedence(t *testing.T) {
	s := newStore(t)
	define(t, s, "well", dictionary.TierKnown)
	define(t, s, "well known", dictionary.TierSemiKnown)

	got := NewBuilder(s, nil, nil).BuildLine("well known")
	assert.Equal(t, []Range{
		{From: 0, To: 4, Class: "known", Term: "well"},
		{From: 0, To: 10, Class: "semiknownunderline", Term: "well known"},
	}, got)
}

func TestPhraseThroughAnchor(t *testing.T) {
	s := newStore(t)
	define(t, s, "New York", dictionary.TierKnown)

	got := NewBuilder(s, nil, nil).BuildLine("I love new york and new things.")
	assert.Equal(t, []Range{
		{From: 7, To: 15, Class: "knownunderline", Term: "new york"},
	}, got)
}

func TestOverlappingPhrases(t *testing.T) {
	s := newStore(t)
	define(t, s, "new york", dictionary.TierKnown)
	define(t, s, "new york city", dictionary.TierUnknown)
	text := "new york city"

	longest := NewBuilder(s, nil, nil).BuildLine(text)
	assert.Equal(t, []string{"unknownunderline"}, classes(longest))

	layered := NewBuilder(s, nil, phrase.NewMatcher(nil, phrase.OverlapLayered)).BuildLine(text)
	assert.Equal(t, []string{"knownunderline", "unknownunderline"}, classes(layered))
}

func TestCollaboratorFallback(t *testing.T) {
	s := newStore(t)
	alice := dictionary.NewStore(dictionary.WithClock(clock()))
	define(t, alice, "xyzzy", dictionary.TierKnown)
	define(t, alice, "xyzzy plugh", dictionary.TierUnknown)
	s.AddCollaborator("alice", exportOf(t, alice))

	got := NewBuilder(s, nil, nil).BuildLine("say xyzzy plugh")
	assert.Equal(t, []Range{
		{From: 4, To: 9, Class: ClassCollaborator, Term: "xyzzy", Source: "alice"},
		{From: 4, To: 15, Class: ClassCollaboratorPhrase, Term: "xyzzy plugh", Source: "alice"},
	}, got)
}

func TestCollaboratorPhraseThroughAnchor(t *testing.T) {
	s := newStore(t)
	alice := dictionary.NewStore(dictionary.WithClock(clock()))
	define(t, alice, "new york", dictionary.TierKnown)
	s.AddCollaborator("alice", exportOf(t, alice))

	got := NewBuilder(s, nil, nil).BuildLine("new york")
	assert.Equal(t, []Range{
		{From: 0, To: 8, Class: ClassCollaboratorPhrase, Term: "new york", Source: "alice"},
	}, got)
}

func TestCollaboratorAnchorWithoutMatchFallsThrough(t *testing.T) {
	s := newStore(t)
	alice := dictionary.NewStore(dictionary.WithClock(clock()))
	define(t, alice, "new jersey", dictionary.TierKnown)
	s.AddCollaborator("alice", exportOf(t, alice))
	bob := dictionary.NewStore(dictionary.WithClock(clock()))
	define(t, bob, "new york", dictionary.TierSemiKnown)
	s.AddCollaborator("bob", exportOf(t, bob))

	got := NewBuilder(s, nil, nil).BuildLine("new york")
	assert.Equal(t, []Range{
		{From: 0, To: 8, Class: ClassCollaboratorPhrase, Term: "new york", Source: "bob"},
	}, got)
}

func TestPrimaryWinsOverCollaborator(t *testing.T) {
	s := newStore(t)
	define(t, s, "xyzzy", dictionary.TierSemiKnown)
	alice := dictionary.NewStore(dictionary.WithClock(clock()))
	define(t, alice, "xyzzy", dictionary.TierKnown)
	s.AddCollaborator("alice", exportOf(t, alice))

	got := NewBuilder(s, nil, nil).BuildLine("xyzzy")
	assert.Equal(t, []string{"semiknown"}, classes(got))
}

func TestFirstCollaboratorWins(t *testing.T) {
	s := newStore(t)
	for _, name := range []string{"alice", "bob"} {
		c := dictionary.NewStore(dictionary.WithClock(clock()))
		define(t, c, "xyzzy", dictionary.TierKnown)
		s.AddCollaborator(name, exportOf(t, c))
	}

	got := NewBuilder(s, nil, nil).BuildLine("xyzzy")
	require.Len(t, got, 1)
	assert.Equal(t, "alice", got[0].Source)
}

func TestDeletedPrimaryFallsBackToCollaborator(t *testing.T) {
	s := newStore(t)
	define(t, s, "cat", dictionary.TierKnown)
	_, err := s.MarkDefinitionDeleted("cat", "meaning of cat")
	require.NoError(t, err)

	assert.Empty(t, NewBuilder(s, nil, nil).BuildLine("cat"))

	alice := dictionary.NewStore(dictionary.WithClock(clock()))
	define(t, alice, "cat", dictionary.TierKnown)
	s.AddCollaborator("alice", exportOf(t, alice))
	assert.Equal(t, []string{ClassCollaborator}, classes(NewBuilder(s, nil, nil).BuildLine("cat")))
}

func TestBuildSpansUseAbsoluteOffsets(t *testing.T) {
	s := newStore(t)
	define(t, s, "home", dictionary.TierSemiKnown)

	got := NewBuilder(s, nil, nil).Build([]Span{
		{From: 100, Text: "go home"},
		{From: 10, Text: "home"},
	})
	assert.Equal(t, []Range{
		{From: 10, To: 14, Class: "semiknown", Term: "home"},
		{From: 103, To: 107, Class: "semiknown", Term: "home"},
	}, got)
}

func TestBuildIsIdempotent(t *testing.T) {
	s := newStore(t)
	define(t, s, "ben", dictionary.TierKnown)
	define(t, s, "went home", dictionary.TierUnknown)
	b := NewBuilder(s, nil, nil)
	spans := []Span{{From: 0, Text: "Ben and Tabea went home."}}
	assert.Equal(t, b.Build(spans), b.Build(spans))
}

func TestNilDictionariesDecoratesNothing(t *testing.T) {
	assert.Empty(t, NewBuilder(nil, nil, nil).BuildLine("anything at all"))
}

type panicky struct{ Dictionaries }

func (p panicky) Lookup(term string) (dictionary.Entry, bool) {
	if term == "boom" {
		panic("corrupt entry")
	}
	return p.Dictionaries.Lookup(term)
}

func TestPanicInOneTokenKeepsOthers(t *testing.T) {
	s := newStore(t)
	define(t, s, "ben", dictionary.TierKnown)
	define(t, s, "home", dictionary.TierKnown)

	got := NewBuilder(panicky{s}, nil, nil).BuildLine("ben boom home")
	assert.Equal(t, []Range{
		{From: 0, To: 3, Class: "known", Term: "ben"},
		{From: 9, To: 13, Class: "known", Term: "home"},
	}, got)
}

// exportOf round-trips a store through the file format, the way collaborator
// dictionaries reach the primary store.
func exportOf(t *testing.T, s *dictionary.Store) *dictionary.Dictionary {
	t.Helper()
	data, err := s.Export()
	require.NoError(t, err)
	d, err := dictionary.Decode(data, nil)
	require.NoError(t, err)
	return d
}
