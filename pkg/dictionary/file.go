package dictionary

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/japaniel/langsoft/pkg/tokenize"
)

// SchemaVersion is the version written by Encode.
const SchemaVersion = 2

// document is the on-disk shape of schema version 2.
type document struct {
	Version int               `json:"version"`
	Terms   map[string]*Entry `json:"terms"`
}

// Encode renders d as a version 2 JSON document. Keys come out sorted, so
// encoding the same dictionary twice gives identical bytes.
func Encode(d *Dictionary) ([]byte, error) {
	doc := document{Version: SchemaVersion, Terms: map[string]*Entry{}}
	if d != nil {
		doc.Terms = d.entries
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Decode parses any known dictionary shape and upgrades it to the current
// schema:
//
//	v0: [{"term": ..., "definitions": [{"definition": ..., "contexts": [...]}]}]
//	v1: {"<term>": {"highlightTier": ..., "definitions": ...}}
//	v2: {"version": 2, "terms": {"<term>": Entry}}
//
// Versions newer than SchemaVersion are rejected.
func Decode(data []byte, tk *tokenize.Tokenizer) (*Dictionary, error) {
	if tk == nil {
		tk = tokenize.Default
	}
	data = bytes.TrimSpace(data)
	d := New()
	if len(data) == 0 {
		return d, nil
	}

	var err error
	switch data[0] {
	case '[':
		err = decodeV0(data, d)
	case '{':
		err = decodeObject(data, d)
	default:
		err = fmt.Errorf("unexpected dictionary content starting with %q", data[0])
	}
	if err != nil {
		return nil, err
	}
	d.repair(tk, time.Now())
	return d, nil
}

func decodeObject(data []byte, d *Dictionary) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse dictionary: %w", err)
	}
	v, hasVersion := raw["version"]
	_, hasTerms := raw["terms"]
	if !hasVersion || !hasTerms {
		return decodeV1(raw, d)
	}

	var version int
	if err := json.Unmarshal(v, &version); err != nil {
		return fmt.Errorf("parse dictionary version: %w", err)
	}
	if version > SchemaVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse dictionary: %w", err)
	}
	for term, e := range doc.Terms {
		if e == nil {
			continue
		}
		if key := NormalizeTerm(term); key != "" {
			d.entries[key] = e
		}
	}
	return nil
}

// flexTime accepts RFC 3339 strings, epoch milliseconds as a number, or epoch
// milliseconds as a string. Anything else decodes to the zero time.
type flexTime struct{ time.Time }

func (f *flexTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		f.Time = time.UnixMilli(ms).UTC()
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		f.Time = t
	}
	return nil
}

type legacyContext struct {
	Level     string   `json:"level"`
	TimeStamp flexTime `json:"timeStamp"`
	Timestamp flexTime `json:"timestamp"`
	File      string   `json:"file"`
	Sentence  string   `json:"sentence"`
}

func (c legacyContext) when() time.Time {
	if !c.Timestamp.IsZero() {
		return c.Timestamp.Time
	}
	return c.TimeStamp.Time
}

type legacyDefinition struct {
	Definition string          `json:"definition"`
	Text       string          `json:"text"`
	Deleted    bool            `json:"deleted"`
	Context    *legacyContext  `json:"context"`
	Contexts   []legacyContext `json:"contexts"`
}

func (ld legacyDefinition) text() string {
	if ld.Text != "" {
		return ld.Text
	}
	return ld.Definition
}

func (ld legacyDefinition) firstContext() (legacyContext, bool) {
	if ld.Context != nil {
		return *ld.Context, true
	}
	if len(ld.Contexts) > 0 {
		return ld.Contexts[0], true
	}
	return legacyContext{}, false
}

func decodeV0(data []byte, d *Dictionary) error {
	var items []struct {
		Term        string             `json:"term"`
		Definitions []legacyDefinition `json:"definitions"`
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("parse legacy dictionary: %w", err)
	}
	for _, it := range items {
		key := NormalizeTerm(it.Term)
		if key == "" {
			continue
		}
		e, ok := d.entries[key]
		if !ok {
			e = &Entry{}
			d.entries[key] = e
		}
		for _, ld := range it.Definitions {
			appendLegacyDefinition(e, ld)
			for _, c := range ld.Contexts {
				tier, err := ParseTier(c.Level)
				if err != nil {
					tier = TierUnknown
				}
				e.TierHistory = append(e.TierHistory, TierRecord{Tier: tier, Timestamp: c.when()})
			}
		}
	}
	return nil
}

func appendLegacyDefinition(e *Entry, ld legacyDefinition) {
	text := strings.TrimSpace(ld.text())
	if text == "" {
		return
	}
	def := Definition{Text: text, Deleted: ld.Deleted}
	if c, ok := ld.firstContext(); ok {
		def.Context = Context{Timestamp: c.when(), File: c.File, Sentence: c.Sentence}
	}
	e.Definitions = append(e.Definitions, def)
}

type legacyTierRecord struct {
	Tier          string   `json:"tier"`
	HighlightTier string   `json:"highlightTier"`
	Timestamp     flexTime `json:"timestamp"`
	TimeStamp     flexTime `json:"timeStamp"`
}

type legacyEntry struct {
	HighlightTier     string             `json:"highlightTier"`
	Deleted           bool               `json:"deleted"`
	Definitions       json.RawMessage    `json:"definitions"`
	TierHistory       []legacyTierRecord `json:"tierHistory"`
	FirstWordOfPhrase []string           `json:"firstWordOfPhrase"`
}

func decodeV1(raw map[string]json.RawMessage, d *Dictionary) error {
	for term, msg := range raw {
		key := NormalizeTerm(term)
		if key == "" {
			continue
		}
		var le legacyEntry
		if err := json.Unmarshal(msg, &le); err != nil {
			return fmt.Errorf("parse entry %q: %w", term, err)
		}
		e := &Entry{Deleted: le.Deleted}
		if err := decodeLegacyDefinitions(le.Definitions, e); err != nil {
			return fmt.Errorf("parse definitions of %q: %w", term, err)
		}
		for _, r := range le.TierHistory {
			name := r.Tier
			if name == "" {
				name = r.HighlightTier
			}
			tier, err := ParseTier(name)
			if err != nil {
				continue
			}
			ts := r.Timestamp.Time
			if ts.IsZero() {
				ts = r.TimeStamp.Time
			}
			e.TierHistory = append(e.TierHistory, TierRecord{Tier: tier, Timestamp: ts})
		}
		if len(e.TierHistory) == 0 && le.HighlightTier != "" {
			if tier, err := ParseTier(le.HighlightTier); err == nil {
				e.TierHistory = []TierRecord{{Tier: tier}}
			}
		}
		for _, p := range le.FirstWordOfPhrase {
			if pk := NormalizeTerm(p); pk != "" {
				e.addPhrase(pk)
			}
		}
		d.entries[key] = e
	}
	return nil
}

// decodeLegacyDefinitions accepts both an array of definitions and an object
// keyed by definition text.
func decodeLegacyDefinitions(raw json.RawMessage, e *Entry) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if raw[0] == '{' {
		var byText map[string]legacyDefinition
		if err := json.Unmarshal(raw, &byText); err != nil {
			return err
		}
		keys := make([]string, 0, len(byText))
		for k := range byText {
			keys = append(keys, k)
		}
		// Map order is random; sort by capture time, then text, to keep output stable.
		sortLegacyKeys(keys, byText)
		for _, k := range keys {
			ld := byText[k]
			if ld.text() == "" {
				ld.Text = k
			}
			appendLegacyDefinition(e, ld)
		}
		return nil
	}
	var list []legacyDefinition
	if err := json.Unmarshal(raw, &list); err != nil {
		return err
	}
	for _, ld := range list {
		appendLegacyDefinition(e, ld)
	}
	return nil
}

func sortLegacyKeys(keys []string, byText map[string]legacyDefinition) {
	when := func(k string) time.Time {
		c, _ := byText[k].firstContext()
		return c.when()
	}
	slices.SortFunc(keys, func(a, b string) int {
		if c := when(a).Compare(when(b)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
}

// LoadFile reads and decodes the dictionary at path.
func LoadFile(path string, tk *tokenize.Tokenizer) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	d, err := Decode(data, tk)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return d, nil
}

// writeFileAtomic replaces path with data via a temp file in the same directory.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName) // no-op after a successful rename
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
