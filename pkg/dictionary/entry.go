// Package dictionary holds the per-user term dictionaries: familiarity tiers,
// user-authored definitions and tier history, persisted as one JSON document per user.
package dictionary

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Tier is a familiarity classification.
type Tier string

const (
	TierUnknown   Tier = "unknown"
	TierSemiKnown Tier = "semiknown"
	TierKnown     Tier = "known"
	// TierNone marks a neutral entry, e.g. the anchor word of a phrase that has
	// no meaning of its own.
	TierNone Tier = "none"
)

// Valid reports whether t is one of the four tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierUnknown, TierSemiKnown, TierKnown, TierNone:
		return true
	}
	return false
}

// ParseTier accepts the tier names case-insensitively, plus the "semi-known"
// and "semiKnown" spellings used by older settings.
func ParseTier(s string) (Tier, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "-", "")
	norm = strings.ReplaceAll(norm, "_", "")
	t := Tier(norm)
	if !t.Valid() {
		return "", ErrInvalidTier
	}
	return t, nil
}

// NormalizeTerm trims, collapses inner whitespace and lowercases s.
func NormalizeTerm(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	return cases.Lower(language.Und).String(s)
}

// foldDefinition is the comparison key for definition text. Unlike terms,
// inner whitespace is kept as written.
func foldDefinition(s string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(s))
}

// Context records where a definition was first captured. Immutable once created.
type Context struct {
	Timestamp time.Time `json:"timestamp"`
	File      string    `json:"file,omitempty"`
	Sentence  string    `json:"sentence,omitempty"`
}

// Definition is one user-authored meaning of a term.
type Definition struct {
	Text    string  `json:"text"`
	Deleted bool    `json:"deleted,omitempty"`
	Context Context `json:"context"`
}

// TierRecord is one entry of a term's tier history.
type TierRecord struct {
	Tier      Tier      `json:"tier"`
	Timestamp time.Time `json:"timestamp"`
}

// Entry is the record for one term.
//
// Entries are copy-on-write: the store never modifies an Entry that has been
// handed out, so values returned by Lookup stay consistent.
type Entry struct {
	Deleted           bool         `json:"deleted,omitempty"`
	Definitions       []Definition `json:"definitions"`
	TierHistory       []TierRecord `json:"tierHistory"`
	FirstWordOfPhrase []string     `json:"firstWordOfPhrase,omitempty"`
}

// CurrentTier resolves the tier with the latest timestamp. Ties go to the
// record appended last. An empty history resolves to TierUnknown so that
// unclassified terms lean towards review.
func (e Entry) CurrentTier() Tier {
	if len(e.TierHistory) == 0 {
		return TierUnknown
	}
	best := 0
	for i := 1; i < len(e.TierHistory); i++ {
		if !e.TierHistory[i].Timestamp.Before(e.TierHistory[best].Timestamp) {
			best = i
		}
	}
	return e.TierHistory[best].Tier
}

// Live reports whether the entry takes part in lookups and highlighting.
func (e Entry) Live() bool { return !e.Deleted }

// LiveDefinitions returns the definitions that are not soft-deleted.
func (e Entry) LiveDefinitions() []Definition {
	var out []Definition
	for _, d := range e.Definitions {
		if !d.Deleted {
			out = append(out, d)
		}
	}
	return out
}

func (e *Entry) liveDefinitionIndex(text string) int {
	key := foldDefinition(text)
	for i, d := range e.Definitions {
		if !d.Deleted && foldDefinition(d.Text) == key {
			return i
		}
	}
	return -1
}

func (e *Entry) hasLiveDefinition() bool {
	for _, d := range e.Definitions {
		if !d.Deleted {
			return true
		}
	}
	return false
}

func (e *Entry) addPhrase(phrase string) bool {
	i, found := slices.BinarySearch(e.FirstWordOfPhrase, phrase)
	if found {
		return false
	}
	e.FirstWordOfPhrase = slices.Insert(e.FirstWordOfPhrase, i, phrase)
	return true
}

func (e *Entry) clone() *Entry {
	c := *e
	c.Definitions = slices.Clone(e.Definitions)
	c.TierHistory = slices.Clone(e.TierHistory)
	c.FirstWordOfPhrase = slices.Clone(e.FirstWordOfPhrase)
	return &c
}
