package db

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func columns(t *testing.T, conn *sql.DB, table string) map[string]bool {
	t.Helper()
	rows, err := conn.Query("PRAGMA table_info(" + table + ")")
	require.NoError(t, err)
	defer rows.Close()
	cols := map[string]bool{}
	for rows.Next() {
		var cid int
		var colName, ctype string
		var notnull, pk int
		var dfltVal interface{}
		require.NoError(t, rows.Scan(&cid, &colName, &ctype, &notnull, &dfltVal, &pk))
		cols[colName] = true
	}
	return cols
}

func TestInitDBCreatesSchema(t *testing.T) {
	conn := setupTestDB(t)

	for _, table := range []string{"terms", "documents", "sentences", "term_documents", "term_contexts"} {
		var name string
		err := conn.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "table %s missing", table)
	}
	assert.True(t, columns(t, conn, "term_documents")["tier"])
	assert.True(t, columns(t, conn, "term_contexts")["sentence_id"])
	assert.True(t, columns(t, conn, "terms")["suggestions"])

	// Running it again is harmless.
	require.NoError(t, InitDB(conn))
}

func TestCreateOrGetTerm(t *testing.T) {
	conn := setupTestDB(t)
	id1, err := CreateOrGetTerm(conn, "犬", "犬", "", "ja")
	require.NoError(t, err)
	id2, err := CreateOrGetTerm(conn, " 犬 ", "犬", "いぬ", "ja")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	var pron string
	require.NoError(t, conn.QueryRow(`SELECT pronunciation FROM terms WHERE id = ?`, id1).Scan(&pron))
	assert.Equal(t, "いぬ", pron)

	_, err = CreateOrGetTerm(conn, "  ", "", "", "ja")
	assert.Error(t, err)
}

func TestCreateOrGetDocument(t *testing.T) {
	conn := setupTestDB(t)
	id1, err := CreateOrGetDocument(conn, "url", "A", "", "https://example.com/a", "")
	require.NoError(t, err)
	id2, err := CreateOrGetDocument(conn, "url", "A", "", "https://example.com/a", "")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	id3, err := CreateOrGetDocument(conn, "file", "", "", "", "/notes/a.md")
	require.NoError(t, err)
	assert.NotEqual(t, id1, id3)

	doc, err := GetDocument(conn, id3)
	require.NoError(t, err)
	assert.Equal(t, "file", doc.SourceType)
	assert.Equal(t, "/notes/a.md", doc.Path)

	_, err = CreateOrGetDocument(conn, "", "", "", "", "")
	assert.Error(t, err)
}

func TestRecordEncounter(t *testing.T) {
	conn := setupTestDB(t)
	termID, err := CreateOrGetTerm(conn, "tabea", "tabea", "", "en")
	require.NoError(t, err)
	docID, err := CreateOrGetDocument(conn, "file", "", "", "", "story.md")
	require.NoError(t, err)

	require.NoError(t, RecordEncounter(conn, termID, docID, "unknown", "Ben and Tabea went home.", 1))
	require.NoError(t, RecordEncounter(conn, termID, docID, "known", "Ben and Tabea went home.", 2))
	require.NoError(t, RecordEncounter(conn, termID, docID, "known", "", 1))

	encounters, err := GetEncountersByDocument(conn, docID)
	require.NoError(t, err)
	require.Len(t, encounters, 1)
	assert.Equal(t, "tabea", encounters[0].Term.Term)
	assert.Equal(t, "known", encounters[0].Tier, "latest scan tier wins")
	assert.Equal(t, 4, encounters[0].OccurrenceCount)
	assert.False(t, encounters[0].FirstSeenAt.IsZero())

	contexts, err := GetContexts(conn, termID, docID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ben and Tabea went home."}, contexts)
}

func TestRecordEncounterKeepsFiveContexts(t *testing.T) {
	conn := setupTestDB(t)
	termID, err := CreateOrGetTerm(conn, "猫", "猫", "", "ja")
	require.NoError(t, err)
	docID, err := CreateOrGetDocument(conn, "file", "", "", "", "cats.txt")
	require.NoError(t, err)

	for _, s := range []string{"一匹目の猫。", "二匹目の猫。", "三匹目の猫。", "四匹目の猫。", "五匹目の猫。", "六匹目の猫。"} {
		require.NoError(t, RecordEncounter(conn, termID, docID, "unknown", s, 1))
	}
	contexts, err := GetContexts(conn, termID, docID)
	require.NoError(t, err)
	assert.Len(t, contexts, maxContextsPerEncounter)
}

func TestRecordEncounterValidation(t *testing.T) {
	conn := setupTestDB(t)
	assert.Error(t, RecordEncounter(conn, 0, 1, "", "", 1))
	assert.Error(t, RecordEncounter(conn, 1, 0, "", "", 1))
	assert.Error(t, RecordEncounter(conn, 1, 1, "", "", 0))
}

func TestTierCounts(t *testing.T) {
	conn := setupTestDB(t)
	docID, err := CreateOrGetDocument(conn, "file", "", "", "", "story.md")
	require.NoError(t, err)
	for term, tier := range map[string]string{"ben": "known", "tabea": "unknown", "went": "", "home": ""} {
		id, err := CreateOrGetTerm(conn, term, term, "", "en")
		require.NoError(t, err)
		require.NoError(t, RecordEncounter(conn, id, docID, tier, "", 1))
	}

	counts, err := TierCounts(conn, docID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"known": 1, "unknown": 1, "": 2}, counts)
}

func TestSuggestions(t *testing.T) {
	conn := setupTestDB(t)
	id, err := CreateOrGetTerm(conn, "犬", "犬", "", "ja")
	require.NoError(t, err)
	other, err := CreateOrGetTerm(conn, "猫", "猫", "", "ja")
	require.NoError(t, err)

	terms, err := TermsWithoutSuggestions(conn)
	require.NoError(t, err)
	assert.Len(t, terms, 2)

	require.NoError(t, UpdateTermSuggestions(conn, id, `[{"senses":["dog"]}]`))
	terms, err = TermsWithoutSuggestions(conn)
	require.NoError(t, err)
	require.Len(t, terms, 1)
	assert.Equal(t, other, terms[0].ID)

	assert.Error(t, UpdateTermSuggestions(conn, 0, "x"))
}

func TestDocumentProgress(t *testing.T) {
	conn := setupTestDB(t)
	docID, err := CreateOrGetDocument(conn, "file", "", "", "", "story.md")
	require.NoError(t, err)

	idx, err := GetDocumentProgress(conn, docID)
	require.NoError(t, err)
	assert.Equal(t, -1, idx, "new documents have no progress")

	require.NoError(t, UpdateDocumentProgress(conn, docID, 7))
	idx, err = GetDocumentProgress(conn, docID)
	require.NoError(t, err)
	assert.Equal(t, 7, idx)

	_, err = GetDocumentProgress(conn, docID+100)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
