package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// maxContextsPerEncounter bounds the sentences kept for one term in one document.
const maxContextsPerEncounter = 5

// isUniqueConstraintErr returns true when the error indicates a unique/constraint violation
func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unique") || strings.Contains(s, "constraint failed")
}

// CreateOrGetTerm returns the existing term id or inserts a new term and returns its id.
// A non-empty pronunciation replaces the stored one.
func CreateOrGetTerm(db DBExecutor, term, lemma, pronunciation, language string) (int64, error) {
	trimmed := strings.TrimSpace(term)
	if trimmed == "" {
		return 0, fmt.Errorf("term must be non-empty")
	}

	var id int64
	query := `INSERT INTO terms (term, lemma, pronunciation, language)
			  VALUES (?, ?, ?, ?)
			  ON CONFLICT(term, lemma, language)
			  DO UPDATE SET
			    pronunciation = COALESCE(NULLIF(excluded.pronunciation, ''), terms.pronunciation)
			  RETURNING id`

	err := db.QueryRow(query, trimmed, lemma, pronunciation, language).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert term: %w", err)
	}
	return id, nil
}

// CreateOrGetDocument returns the existing document id or inserts a new
// document and returns its id. Documents are identified by url, path, title
// and author.
func CreateOrGetDocument(db DBExecutor, sourceType, title, author, url, path string) (int64, error) {
	trimmedSourceType := strings.TrimSpace(sourceType)
	if trimmedSourceType == "" {
		return 0, fmt.Errorf("sourceType must be non-empty")
	}

	const maxRetries = 3

	var id int64
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := db.QueryRow(
			`SELECT id FROM documents WHERE IFNULL(url, '') = ? AND IFNULL(path, '') = ? AND IFNULL(title, '') = ? AND IFNULL(author, '') = ?`,
			url, path, title, author,
		).Scan(&id)
		if err == nil {
			return id, nil
		}
		if err != sql.ErrNoRows {
			return 0, err
		}

		res, err := db.Exec(
			`INSERT INTO documents (source_type, title, author, url, path) VALUES (?, ?, ?, ?, ?)`,
			trimmedSourceType, title, author, url, path,
		)
		if err != nil {
			// Another writer inserted the same document; select again.
			if isUniqueConstraintErr(err) {
				continue
			}
			return 0, err
		}
		return res.LastInsertId()
	}

	return 0, fmt.Errorf("could not create or get document after %d retries", maxRetries)
}

// GetDocument loads one document by id.
func GetDocument(db DBExecutor, id int64) (Document, error) {
	var d Document
	var title, author, url, path sql.NullString
	var added sql.NullTime
	err := db.QueryRow(
		`SELECT id, source_type, title, author, url, path, added_at FROM documents WHERE id = ?`, id,
	).Scan(&d.ID, &d.SourceType, &title, &author, &url, &path, &added)
	if err != nil {
		return Document{}, err
	}
	d.Title, d.Author, d.URL, d.Path = title.String, author.String, url.String, path.String
	if added.Valid {
		d.AddedAt = added.Time
	}
	return d, nil
}

func getOrCreateSentence(db DBExecutor, text string) (int64, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, nil
	}
	var id int64
	if err := db.QueryRow(`SELECT id FROM sentences WHERE text = ?`, trimmed).Scan(&id); err == nil {
		return id, nil
	} else if err != sql.ErrNoRows {
		return 0, err
	}
	if _, err := db.Exec(`INSERT OR IGNORE INTO sentences (text) VALUES (?)`, trimmed); err != nil {
		return 0, err
	}
	if err := db.QueryRow(`SELECT id FROM sentences WHERE text = ?`, trimmed).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// RecordEncounter adds count occurrences of a term in a document. The tier is
// the term's tier at the time of the scan and replaces the stored one. A
// non-empty sentence is kept as context, up to five per term and document.
func RecordEncounter(db DBExecutor, termID, documentID int64, tier, sentence string, count int) error {
	if termID <= 0 {
		return fmt.Errorf("termID must be positive")
	}
	if documentID <= 0 {
		return fmt.Errorf("documentID must be positive")
	}
	if count < 1 {
		return fmt.Errorf("count must be positive, got %d", count)
	}

	sentenceID, err := getOrCreateSentence(db, sentence)
	if err != nil {
		return fmt.Errorf("get/create sentence: %w", err)
	}

	var encounterID int64
	err = db.QueryRow(`INSERT INTO term_documents (term_id, document_id, tier, occurrence_count, first_seen_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(term_id, document_id) DO UPDATE SET
	  occurrence_count = term_documents.occurrence_count + excluded.occurrence_count,
	  tier = excluded.tier
	RETURNING id`, termID, documentID, tier, count, time.Now()).Scan(&encounterID)
	if err != nil {
		return fmt.Errorf("upsert encounter: %w", err)
	}

	if sentenceID == 0 {
		return nil
	}
	_, err = db.Exec(`
		INSERT INTO term_contexts (term_document_id, sentence_id)
		SELECT ?, ?
		WHERE (SELECT COUNT(*) FROM term_contexts WHERE term_document_id = ?) < ?
		ON CONFLICT DO NOTHING`,
		encounterID, sentenceID, encounterID, maxContextsPerEncounter)
	return err
}

// UpdateTermSuggestions stores reference meanings (JSON) for a term.
func UpdateTermSuggestions(db DBExecutor, termID int64, suggestions string) error {
	if termID <= 0 {
		return fmt.Errorf("termID must be positive")
	}
	_, err := db.Exec(`UPDATE terms SET suggestions = ? WHERE id = ?`, suggestions, termID)
	return err
}

func scanTerm(rows *sql.Rows, dest ...any) (Term, error) {
	var t Term
	var lemma, lang, pron, sugg sql.NullString
	args := append([]any{&t.ID, &t.Term, &lemma, &lang, &pron, &sugg}, dest...)
	if err := rows.Scan(args...); err != nil {
		return Term{}, err
	}
	t.Lemma, t.Language, t.Pronunciation, t.Suggestions = lemma.String, lang.String, pron.String, sugg.String
	return t, nil
}

// TermsWithoutSuggestions returns every term with no stored suggestions.
func TermsWithoutSuggestions(db DBExecutor) ([]Term, error) {
	rows, err := db.Query(`SELECT id, term, lemma, language, pronunciation, suggestions FROM terms
		WHERE suggestions IS NULL OR suggestions = '' ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Term
	for rows.Next() {
		t, err := scanTerm(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetEncountersByDocument returns the terms seen in a document, most frequent first.
func GetEncountersByDocument(db DBExecutor, documentID int64) ([]Encounter, error) {
	rows, err := db.Query(`SELECT t.id, t.term, t.lemma, t.language, t.pronunciation, t.suggestions,
			td.tier, td.occurrence_count, td.first_seen_at
		FROM terms t JOIN term_documents td ON td.term_id = t.id
		WHERE td.document_id = ?
		ORDER BY td.occurrence_count DESC, t.term`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Encounter
	for rows.Next() {
		var e Encounter
		var seen sql.NullTime
		t, err := scanTerm(rows, &e.Tier, &e.OccurrenceCount, &seen)
		if err != nil {
			return nil, err
		}
		e.Term = t
		if seen.Valid {
			e.FirstSeenAt = seen.Time
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetContexts returns the sentences recorded for a term in a document.
func GetContexts(db DBExecutor, termID, documentID int64) ([]string, error) {
	rows, err := db.Query(`SELECT s.text FROM term_contexts tc
		JOIN term_documents td ON td.id = tc.term_document_id
		JOIN sentences s ON s.id = tc.sentence_id
		WHERE td.term_id = ? AND td.document_id = ?
		ORDER BY s.id`, termID, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// TierCounts returns the number of distinct terms per tier in a document.
func TierCounts(db DBExecutor, documentID int64) (map[string]int, error) {
	rows, err := db.Query(`SELECT tier, COUNT(*) FROM term_documents WHERE document_id = ? GROUP BY tier`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var tier string
		var n int
		if err := rows.Scan(&tier, &n); err != nil {
			return nil, err
		}
		out[tier] = n
	}
	return out, rows.Err()
}

// GetDocumentProgress returns the last processed sentence index for a document,
// -1 when nothing was processed yet.
func GetDocumentProgress(db DBExecutor, documentID int64) (int, error) {
	var index int
	err := db.QueryRow("SELECT last_processed_sentence FROM documents WHERE id = ?", documentID).Scan(&index)
	if err != nil {
		return 0, err
	}
	return index, nil
}

// UpdateDocumentProgress updates the last processed sentence index.
func UpdateDocumentProgress(db DBExecutor, documentID int64, index int) error {
	_, err := db.Exec("UPDATE documents SET last_processed_sentence = ? WHERE id = ?", index, documentID)
	return err
}
