// Package reference loads read-only reference dictionaries (jmdict-simplified
// or WordNet-style JSON) and suggests meanings for terms the user has not
// defined yet.
package reference

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// JMdictEntry matches the structure of jmdict-simplified entries.
type JMdictEntry struct {
	Id    string          `json:"id"`
	Kanji []JMdictElement `json:"kanji"`
	Kana  []JMdictElement `json:"kana"`
	Sense []JMdictSense   `json:"sense"`
}

type JMdictElement struct {
	Text   string   `json:"text"`
	Common bool     `json:"common"`
	Tags   []string `json:"tags"`
}

type JMdictSense struct {
	PartOfSpeech []string      `json:"partOfSpeech"`
	Gloss        []JMdictGloss `json:"gloss"`
}

type JMdictGloss struct {
	Text string `json:"text"`
	Lang string `json:"lang"`
}

// wordNetEntry is one item of a dict-WordNet.json style file.
type wordNetEntry struct {
	Term       string `json:"Term"`
	Definition string `json:"Definition"`
}

// Suggestion is a flattened reference meaning: glosses and parts of speech
// of one matching entry.
type Suggestion struct {
	Senses []string `json:"senses"`
	POS    []string `json:"pos"`
}

// Parse reads a reference dictionary. Accepted shapes:
//
//	{"words": [JMdictEntry...]}
//	[JMdictEntry...]
//	[{"Term": ..., "Definition": ...}...]
//
// WordNet items become entries whose only written form is the term.
func Parse(data []byte) ([]JMdictEntry, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	if data[0] == '{' {
		var wrapper struct {
			Words []JMdictEntry `json:"words"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("parse reference dictionary: %w", err)
		}
		return wrapper.Words, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse reference dictionary as object or array: %w", err)
	}
	out := make([]JMdictEntry, 0, len(items))
	for i, raw := range items {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("reference entry %d: %w", i, err)
		}
		if _, ok := fields["Term"]; ok {
			var wn wordNetEntry
			if err := json.Unmarshal(raw, &wn); err != nil {
				return nil, fmt.Errorf("reference entry %d: %w", i, err)
			}
			if wn.Term == "" {
				continue
			}
			out = append(out, fromWordNet(i, wn))
			continue
		}
		var e JMdictEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("reference entry %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func fromWordNet(i int, wn wordNetEntry) JMdictEntry {
	e := JMdictEntry{
		Id:    "wn" + strconv.Itoa(i),
		Kanji: []JMdictElement{{Text: wn.Term}},
	}
	if wn.Definition != "" {
		e.Sense = []JMdictSense{{Gloss: []JMdictGloss{{Text: wn.Definition, Lang: "eng"}}}}
	}
	return e
}

// Load reads and parses the reference dictionary at path.
// Real files are large; the whole file is held in memory while parsing.
func Load(path string) ([]JMdictEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// FormatDefinitions flattens entries into the JSON stored alongside terms in
// the encounter database.
func FormatDefinitions(entries []JMdictEntry) (string, error) {
	bytes, err := json.Marshal(Suggestions(entries))
	return string(bytes), err
}

// Suggestions flattens every entry into its glosses and parts of speech.
func Suggestions(entries []JMdictEntry) []Suggestion {
	var defs []Suggestion
	for _, e := range entries {
		var senses, poses []string
		for _, s := range e.Sense {
			for _, g := range s.Gloss {
				senses = append(senses, g.Text)
			}
			poses = append(poses, s.PartOfSpeech...)
		}
		defs = append(defs, Suggestion{Senses: senses, POS: poses})
	}
	return defs
}

// ToHiragana converts Katakana to Hiragana.
func ToHiragana(s string) string {
	runes := []rune(s)
	for i, r := range runes {
		if r >= 0x30A1 && r <= 0x30F6 {
			runes[i] = r - 0x60
		}
	}
	return string(runes)
}
