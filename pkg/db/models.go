package db

import "time"

// Term is a recorded word, keyed by surface form, lemma and language.
type Term struct {
	ID            int64
	Term          string
	Lemma         string
	Language      string
	Pronunciation string
	// Suggestions holds reference meanings as JSON, empty until filled.
	Suggestions string
}

// Document is a provenance record for where terms were seen.
type Document struct {
	ID         int64
	SourceType string
	Title      string
	Author     string
	URL        string
	Path       string
	AddedAt    time.Time
}

// Encounter is a term as seen in one document.
type Encounter struct {
	Term
	Tier            string
	OccurrenceCount int
	FirstSeenAt     time.Time
}
