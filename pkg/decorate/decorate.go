// Package decorate turns visible text into styled ranges by classifying every
// token against the primary and collaborator dictionaries.
package decorate

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/japaniel/langsoft/pkg/dictionary"
	"github.com/japaniel/langsoft/pkg/log"
	"github.com/japaniel/langsoft/pkg/phrase"
	"github.com/japaniel/langsoft/pkg/tokenize"
)

// Range classes besides the tier names.
const (
	ClassCollaborator       = "collaborator"
	ClassCollaboratorPhrase = "collaborator-phrase"
	ClassSelection          = "selection"
	phraseSuffix            = "underline"
)

// TierClass is the class for a single term of the given tier.
func TierClass(t dictionary.Tier) string { return string(t) }

// PhraseClass is the class for a phrase of the given tier, e.g. "knownunderline".
func PhraseClass(t dictionary.Tier) string { return string(t) + phraseSuffix }

// Range is one decoration. From and To are absolute byte offsets with From < To.
type Range struct {
	From  int
	To    int
	Class string
	// Term is the dictionary key that produced the range.
	Term string
	// Source is the collaborator name for collaborator classes, empty otherwise.
	Source string
}

// Compare orders ranges by From, then To, then Class.
func Compare(a, b Range) int {
	if c := cmp.Compare(a.From, b.From); c != 0 {
		return c
	}
	if c := cmp.Compare(a.To, b.To); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Class, b.Class); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Term, b.Term); c != 0 {
		return c
	}
	return cmp.Compare(a.Source, b.Source)
}

// Sort orders ranges with Compare.
func Sort(rs []Range) { slices.SortFunc(rs, Compare) }

// Span is a visible piece of the document starting at absolute offset From.
type Span struct {
	From int
	Text string
}

// Dictionaries is the read-only view of the store the builder needs.
// *dictionary.Store satisfies it.
type Dictionaries interface {
	Lookup(term string) (dictionary.Entry, bool)
	Collaborators() []string
	LookupCollaborator(name, term string) (dictionary.Entry, bool)
}

// Builder classifies tokens. It never mutates the dictionaries.
type Builder struct {
	dicts   Dictionaries
	tk      *tokenize.Tokenizer
	matcher *phrase.Matcher
}

// NewBuilder returns a Builder. tk and matcher may be nil to use the defaults.
func NewBuilder(dicts Dictionaries, tk *tokenize.Tokenizer, matcher *phrase.Matcher) *Builder {
	if tk == nil {
		tk = tokenize.Default
	}
	if matcher == nil {
		matcher = phrase.NewMatcher(tk, phrase.OverlapLongest)
	}
	return &Builder{dicts: dicts, tk: tk, matcher: matcher}
}

// Tokenizer returns the tokenizer used for document text.
func (b *Builder) Tokenizer() *tokenize.Tokenizer { return b.tk }

// Build decorates every span and returns the ranges sorted.
func (b *Builder) Build(spans []Span) []Range {
	var out []Range
	for _, s := range spans {
		out = b.appendSpan(out, s)
	}
	Sort(out)
	return out
}

// BuildLine decorates a single piece of text with offsets relative to its start.
func (b *Builder) BuildLine(text string) []Range {
	return b.Build([]Span{{Text: text}})
}

func (b *Builder) appendSpan(out []Range, s Span) []Range {
	if b.dicts == nil {
		// The store has not loaded yet: nothing is classified.
		return out
	}
	tokens := b.tk.Tokenize(s.Text, s.From)
	var collaborators []string
	for i := range tokens {
		if collaborators == nil {
			collaborators = b.dicts.Collaborators()
		}
		out = b.appendToken(out, tokens, i, collaborators)
	}
	return out
}

// appendToken classifies tokens[i]. A panic while classifying one token is
// logged and the token is left undecorated.
func (b *Builder) appendToken(out []Range, tokens []tokenize.Token, i int, collaborators []string) (res []Range) {
	tok := tokens[i]
	defer func() {
		if r := recover(); r != nil {
			log.Error(log.CatDecorate, "Recovered while classifying token", "token", tok.Text, "from", tok.From, "panic", fmt.Sprint(r))
			res = out
		}
	}()

	var local []Range
	term := dictionary.NormalizeTerm(tok.Text)
	primaryRange := false

	if e, ok := b.dicts.Lookup(term); ok {
		if e.Live() {
			if tier := e.CurrentTier(); tier != dictionary.TierNone {
				local = appendRange(local, Range{From: tok.From, To: tok.To, Class: TierClass(tier), Term: term})
				primaryRange = true
			}
		}
		// Anchors resolve to none but still carry phrases.
		for _, m := range b.matcher.Match(tokens, i, e.FirstWordOfPhrase, b.dicts.Lookup) {
			local = appendRange(local, Range{From: m.From, To: m.To, Class: PhraseClass(m.Tier), Term: m.Phrase})
		}
	}

	if !primaryRange {
		local = b.appendCollaborator(local, tokens, i, term, collaborators)
	}
	return append(out, local...)
}

// appendCollaborator decorates tokens[i] from the first collaborator whose
// dictionary yields a range for it, either the word itself or a phrase
// starting at it.
func (b *Builder) appendCollaborator(out []Range, tokens []tokenize.Token, i int, term string, collaborators []string) []Range {
	tok := tokens[i]
	for _, name := range collaborators {
		e, ok := b.dicts.LookupCollaborator(name, term)
		if !ok || !e.Live() {
			continue
		}
		var local []Range
		if e.CurrentTier() != dictionary.TierNone {
			local = appendRange(local, Range{From: tok.From, To: tok.To, Class: ClassCollaborator, Term: term, Source: name})
		}
		resolve := func(p string) (dictionary.Entry, bool) { return b.dicts.LookupCollaborator(name, p) }
		for _, m := range b.matcher.Match(tokens, i, e.FirstWordOfPhrase, resolve) {
			local = appendRange(local, Range{From: m.From, To: m.To, Class: ClassCollaboratorPhrase, Term: m.Phrase, Source: name})
		}
		if len(local) > 0 {
			return append(out, local...)
		}
	}
	return out
}

func appendRange(out []Range, r Range) []Range {
	if r.From >= r.To {
		return out
	}
	return append(out, r)
}
