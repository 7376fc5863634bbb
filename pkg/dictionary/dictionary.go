package dictionary

import (
	"slices"
	"strings"
	"time"

	"github.com/japaniel/langsoft/pkg/tokenize"
)

// Dictionary maps normalized terms to entries. It is not safe for concurrent
// use on its own; Store adds the locking.
type Dictionary struct {
	entries map[string]*Entry
}

// New returns an empty dictionary.
func New() *Dictionary {
	return &Dictionary{entries: make(map[string]*Entry)}
}

// Lookup returns the entry for term. The term is normalized first.
func (d *Dictionary) Lookup(term string) (Entry, bool) {
	if d == nil {
		return Entry{}, false
	}
	e, ok := d.entries[NormalizeTerm(term)]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Len returns the number of entries, deleted ones included.
func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}

// Terms returns all keys in sorted order.
func (d *Dictionary) Terms() []string {
	if d == nil {
		return nil
	}
	out := make([]string, 0, len(d.entries))
	for k := range d.entries {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// phraseTokens returns the tokens of key when it spans more than one token.
func phraseTokens(tk *tokenize.Tokenizer, key string) []tokenize.Token {
	tokens := tk.Tokenize(key, 0)
	if len(tokens) < 2 {
		return nil
	}
	return tokens
}

// pending collects cloned entries so a mutation commits all or nothing.
type pending map[string]*Entry

func (d *Dictionary) edit(p pending, key string) (*Entry, bool) {
	if e, ok := p[key]; ok {
		return e, true
	}
	cur, ok := d.entries[key]
	if !ok {
		return nil, false
	}
	e := cur.clone()
	p[key] = e
	return e, true
}

func (d *Dictionary) commit(p pending) {
	for k, e := range p {
		d.entries[k] = e
	}
}

// registerAnchor makes sure the first token of a phrase has an entry listing it.
func (d *Dictionary) registerAnchor(p pending, tk *tokenize.Tokenizer, key string, now time.Time) {
	tokens := phraseTokens(tk, key)
	if tokens == nil {
		return
	}
	anchorKey := NormalizeTerm(tokens[0].Text)
	if anchorKey == "" || anchorKey == key {
		return
	}
	anchor, ok := d.edit(p, anchorKey)
	if !ok {
		anchor = &Entry{TierHistory: []TierRecord{{Tier: TierNone, Timestamp: now}}}
		p[anchorKey] = anchor
	}
	anchor.addPhrase(key)
}

func (d *Dictionary) addDefinition(tk *tokenize.Tokenizer, term string, tier Tier, text string, ctx Context, now time.Time) (bool, error) {
	key := NormalizeTerm(term)
	if key == "" {
		return false, ErrEmptyTerm
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return false, ErrEmptyDefinition
	}
	if !tier.Valid() || tier == TierNone {
		return false, ErrInvalidTier
	}

	p := pending{}
	e, ok := d.edit(p, key)
	if !ok {
		e = &Entry{}
		p[key] = e
	}
	if e.liveDefinitionIndex(text) >= 0 {
		return false, nil
	}
	if ctx.Timestamp.IsZero() {
		ctx.Timestamp = now
	}
	e.Deleted = false
	e.Definitions = append(e.Definitions, Definition{Text: text, Context: ctx})
	e.TierHistory = append(e.TierHistory, TierRecord{Tier: tier, Timestamp: now})
	d.registerAnchor(p, tk, key, now)
	d.commit(p)
	return true, nil
}

func (d *Dictionary) markDefinitionDeleted(term, text string, now time.Time) bool {
	key := NormalizeTerm(term)
	p := pending{}
	e, ok := d.edit(p, key)
	if !ok {
		return false
	}
	i := e.liveDefinitionIndex(text)
	if i < 0 {
		return false
	}
	e.Definitions[i].Deleted = true
	if !e.hasLiveDefinition() {
		e.Deleted = true
		e.TierHistory = append(e.TierHistory, TierRecord{Tier: TierNone, Timestamp: now})
	}
	d.commit(p)
	return true
}

func (d *Dictionary) recordTierChange(tk *tokenize.Tokenizer, term string, tier Tier, now time.Time) (bool, error) {
	key := NormalizeTerm(term)
	if key == "" {
		return false, ErrEmptyTerm
	}
	if !tier.Valid() {
		return false, ErrInvalidTier
	}

	p := pending{}
	e, ok := d.edit(p, key)
	if !ok {
		if tier == TierNone {
			return false, nil
		}
		e = &Entry{}
		p[key] = e
		d.registerAnchor(p, tk, key, now)
	}
	if (tier == TierKnown || tier == TierSemiKnown) && !e.hasLiveDefinition() {
		return false, ErrNoLiveDefinitions
	}
	if tier == TierUnknown {
		e.Deleted = false
	}
	e.TierHistory = append(e.TierHistory, TierRecord{Tier: tier, Timestamp: now})
	d.commit(p)
	return true, nil
}

// repair restores the phrase anchor invariant and keeps phrase lists sorted.
// It runs after loading files written by older versions or by hand.
func (d *Dictionary) repair(tk *tokenize.Tokenizer, now time.Time) {
	p := pending{}
	for _, key := range d.Terms() {
		e := d.entries[key]
		if !slices.IsSorted(e.FirstWordOfPhrase) || len(slices.Compact(slices.Clone(e.FirstWordOfPhrase))) != len(e.FirstWordOfPhrase) {
			ed, _ := d.edit(p, key)
			slices.Sort(ed.FirstWordOfPhrase)
			ed.FirstWordOfPhrase = slices.Compact(ed.FirstWordOfPhrase)
		}
		d.registerAnchor(p, tk, key, now)
	}
	d.commit(p)
}
