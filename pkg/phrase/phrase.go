// Package phrase finds multi-word dictionary terms in a token stream.
package phrase

import (
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/japaniel/langsoft/pkg/dictionary"
	"github.com/japaniel/langsoft/pkg/tokenize"
)

// Overlap decides what happens when several phrases match at one token.
type Overlap string

const (
	// OverlapLayered reports every matching phrase as its own layer.
	OverlapLayered Overlap = "layered"
	// OverlapLongest reports only the longest match per start token.
	OverlapLongest Overlap = "longest"
)

// ParseOverlap validates a config value. Empty means longest.
func ParseOverlap(s string) (Overlap, error) {
	switch o := Overlap(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return OverlapLongest, nil
	case OverlapLayered, OverlapLongest:
		return o, nil
	default:
		return "", fmt.Errorf("unknown phrase overlap policy %q", s)
	}
}

const (
	cacheExpiration = 10 * time.Minute
	cacheCleanup    = 30 * time.Minute
)

// Match is one phrase found in the token stream.
type Match struct {
	From   int
	To     int
	Phrase string
	Tier   dictionary.Tier
}

// Resolver finds the entry for a phrase key in the dictionary that listed it.
type Resolver func(phrase string) (dictionary.Entry, bool)

// Matcher tests candidate phrases against a token stream.
// Phrase tokenizations are memoized; a Matcher is safe for concurrent use.
type Matcher struct {
	tk      *tokenize.Tokenizer
	overlap Overlap
	cache   *gocache.Cache
}

// NewMatcher returns a Matcher that tokenizes phrases with tk, which must be
// the tokenizer used for the document.
func NewMatcher(tk *tokenize.Tokenizer, overlap Overlap) *Matcher {
	if tk == nil {
		tk = tokenize.Default
	}
	if overlap == "" {
		overlap = OverlapLongest
	}
	return &Matcher{
		tk:      tk,
		overlap: overlap,
		cache:   gocache.New(cacheExpiration, cacheCleanup),
	}
}

// Overlap returns the matcher's overlap policy.
func (m *Matcher) Overlap() Overlap { return m.overlap }

// Match tries each candidate phrase starting at tokens[i]. Phrases whose entry
// is missing, deleted or has tier none produce no match.
func (m *Matcher) Match(tokens []tokenize.Token, i int, candidates []string, resolve Resolver) []Match {
	if i < 0 || i >= len(tokens) || len(candidates) == 0 {
		return nil
	}
	var out []Match
	for _, p := range candidates {
		n, ok := m.matchLen(tokens, i, p)
		if !ok {
			continue
		}
		e, found := resolve(p)
		if !found || !e.Live() {
			continue
		}
		tier := e.CurrentTier()
		if tier == dictionary.TierNone {
			continue
		}
		out = append(out, Match{
			From:   tokens[i].From,
			To:     tokens[i+n-1].To,
			Phrase: p,
			Tier:   tier,
		})
	}
	if m.overlap == OverlapLongest && len(out) > 1 {
		best := out[0]
		for _, c := range out[1:] {
			if c.To > best.To {
				best = c
			}
		}
		out = []Match{best}
	}
	return out
}

// matchLen reports how many document tokens the phrase covers when it matches.
func (m *Matcher) matchLen(tokens []tokenize.Token, i int, phrase string) (int, bool) {
	words := m.words(phrase)
	if len(words) == 0 || i+len(words) > len(tokens) {
		return 0, false
	}
	for k, w := range words {
		if !strings.EqualFold(tokens[i+k].Text, w) {
			return 0, false
		}
	}
	return len(words), true
}

func (m *Matcher) words(phrase string) []string {
	if v, ok := m.cache.Get(phrase); ok {
		if words, ok := v.([]string); ok {
			return words
		}
	}
	tokens := m.tk.Tokenize(phrase, 0)
	words := make([]string, len(tokens))
	for i, t := range tokens {
		words[i] = t.Text
	}
	m.cache.SetDefault(phrase, words)
	return words
}
