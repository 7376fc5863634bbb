package reference

import (
	"sort"
	"sync"

	"github.com/japaniel/langsoft/pkg/db"
	"github.com/japaniel/langsoft/pkg/dictionary"
	"github.com/japaniel/langsoft/pkg/log"
)

// Index is an in-memory lookup over reference entries, keyed by every written
// form and reading.
type Index struct {
	mu    sync.RWMutex
	index map[string][]JMdictEntry
	size  int
}

// NewIndex builds an index of entries.
func NewIndex(entries []JMdictEntry) *Index {
	idx := make(map[string][]JMdictEntry)
	for _, e := range entries {
		for _, k := range e.Kanji {
			key := dictionary.NormalizeTerm(k.Text)
			idx[key] = append(idx[key], e)
		}
		for _, k := range e.Kana {
			key := dictionary.NormalizeTerm(k.Text)
			idx[key] = append(idx[key], e)
		}
	}
	return &Index{index: idx, size: len(entries)}
}

// Len returns the number of indexed entries.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return ix.size
}

// Lookup finds entries written as word or lemma. When pronunciation is set,
// only entries with a matching reading are kept. Results are ordered by id.
func (ix *Index) Lookup(word, lemma, pronunciation string) []JMdictEntry {
	if ix == nil {
		return nil
	}
	word = dictionary.NormalizeTerm(word)
	lemma = dictionary.NormalizeTerm(lemma)

	candidates := make(map[string]JMdictEntry)
	search := func(term string) {
		if term == "" {
			return
		}
		ix.mu.RLock()
		entries := ix.index[term]
		ix.mu.RUnlock()
		for _, e := range entries {
			candidates[e.Id] = e
		}
	}
	search(word)
	search(lemma)

	var results []JMdictEntry
	for _, entry := range candidates {
		if isMatch(entry, word, lemma, pronunciation) {
			results = append(results, entry)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Id < results[j].Id
	})
	return results
}

// Suggest returns flattened meanings for term, or nil when nothing matches.
func (ix *Index) Suggest(term string) []Suggestion {
	matches := ix.Lookup(term, "", "")
	if len(matches) == 0 {
		return nil
	}
	return Suggestions(matches)
}

// Reading returns the preferred reading of word in hiragana: the first common
// kana form of the first match, else its first kana form.
func (ix *Index) Reading(word string) string {
	matches := ix.Lookup(word, word, "")
	if len(matches) == 0 || len(matches[0].Kana) == 0 {
		return ""
	}
	for _, k := range matches[0].Kana {
		if k.Common {
			return ToHiragana(k.Text)
		}
	}
	return ToHiragana(matches[0].Kana[0].Text)
}

func isMatch(entry JMdictEntry, word, lemma, pronunciation string) bool {
	hasText := false
	for _, els := range [][]JMdictElement{entry.Kanji, entry.Kana} {
		for _, k := range els {
			t := dictionary.NormalizeTerm(k.Text)
			if t == word || t == lemma {
				hasText = true
				break
			}
		}
	}
	if !hasText {
		return false
	}
	if pronunciation == "" {
		return true
	}

	normalizedPron := ToHiragana(pronunciation)
	for _, k := range entry.Kana {
		if ToHiragana(k.Text) == normalizedPron {
			return true
		}
	}
	return false
}

// FillSuggestions stores reference meanings for every recorded term that has
// none yet and returns how many terms were updated.
func (ix *Index) FillSuggestions(conn db.DBExecutor) (int, error) {
	terms, err := db.TermsWithoutSuggestions(conn)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, t := range terms {
		matches := ix.Lookup(t.Term, t.Lemma, t.Pronunciation)
		if len(matches) == 0 {
			continue
		}
		js, err := FormatDefinitions(matches)
		if err != nil {
			log.WarnErr(log.CatDB, "Formatting suggestions failed", err, "term", t.Term)
			continue
		}
		if err := db.UpdateTermSuggestions(conn, t.ID, js); err != nil {
			log.WarnErr(log.CatDB, "Failed to update term", err, "id", t.ID)
			continue
		}
		updated++
	}
	return updated, nil
}
