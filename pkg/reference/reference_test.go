package reference

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/langsoft/pkg/db"
)

const jmdictFixture = `
{
  "words": [
    {
      "id": "1",
      "kanji": [{"text": "犬", "common": true}],
      "kana": [{"text": "いぬ", "common": true}],
      "sense": [{"gloss": [{"text": "dog"}], "partOfSpeech": ["n"]}]
    },
    {
      "id": "2",
      "kanji": [{"text": "走る", "common": true}],
      "kana": [{"text": "はしる", "common": true}],
      "sense": [{"gloss": [{"text": "to run"}], "partOfSpeech": ["v5r"]}]
    },
    {
      "id": "3",
      "kanji": [{"text": "猫", "common": true}],
      "kana": [{"text": "ねこ", "common": true}],
      "sense": [{"gloss": [{"text": "cat"}], "partOfSpeech": ["n"]}]
    },
    {
      "id": "4",
      "kanji": [],
      "kana": [{"text": "テスト", "common": true}],
      "sense": [{"gloss": [{"text": "test"}], "partOfSpeech": ["n", "vs"]}]
    }
  ]
}
`

const wordnetFixture = `[
  {"Term": "tabea", "Definition": "a given name"},
  {"Term": "Home", "Definition": "where one lives"},
  {"Term": "", "Definition": "skipped"}
]`

func TestParseShapes(t *testing.T) {
	wrapped, err := Parse([]byte(jmdictFixture))
	require.NoError(t, err)
	assert.Len(t, wrapped, 4)

	var arr []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(jmdictFixture), &struct {
		Words *[]json.RawMessage `json:"words"`
	}{&arr}))
	bare, err := json.Marshal(arr)
	require.NoError(t, err)
	asArray, err := Parse(bare)
	require.NoError(t, err)
	assert.Equal(t, wrapped, asArray)

	wn, err := Parse([]byte(wordnetFixture))
	require.NoError(t, err)
	require.Len(t, wn, 2)
	assert.Equal(t, "tabea", wn[0].Kanji[0].Text)
	assert.Equal(t, "a given name", wn[0].Sense[0].Gloss[0].Text)

	empty, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = Parse([]byte("not json"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dict-WordNet.json")
	require.NoError(t, os.WriteFile(path, []byte(wordnetFixture), 0o644))
	entries, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestIndexLookup(t *testing.T) {
	entries, err := Parse([]byte(jmdictFixture))
	require.NoError(t, err)
	ix := NewIndex(entries)
	assert.Equal(t, 4, ix.Len())

	tests := []struct {
		word, lemma, pron string
		wantIDs           []string
	}{
		{"犬", "犬", "イヌ", []string{"1"}},
		{"走っ", "走る", "", []string{"2"}},
		{"猫", "", "イヌ", nil},
		{"テスト", "", "テスト", []string{"4"}},
		{"未知", "未知", "", nil},
	}
	for _, tt := range tests {
		var ids []string
		for _, e := range ix.Lookup(tt.word, tt.lemma, tt.pron) {
			ids = append(ids, e.Id)
		}
		assert.Equal(t, tt.wantIDs, ids, "lookup %s/%s/%s", tt.word, tt.lemma, tt.pron)
	}
}

func TestSuggestAndReading(t *testing.T) {
	jm, err := Parse([]byte(jmdictFixture))
	require.NoError(t, err)
	wn, err := Parse([]byte(wordnetFixture))
	require.NoError(t, err)
	ix := NewIndex(append(jm, wn...))

	assert.Equal(t, []Suggestion{{Senses: []string{"where one lives"}}}, ix.Suggest("HOME"))
	assert.Equal(t, []Suggestion{{Senses: []string{"dog"}, POS: []string{"n"}}}, ix.Suggest("犬"))
	assert.Nil(t, ix.Suggest("xyzzy"))

	assert.Equal(t, "ねこ", ix.Reading("猫"))
	assert.Equal(t, "てすと", ix.Reading("テスト"))
	assert.Empty(t, ix.Reading("tabea"))

	var nilIndex *Index
	assert.Nil(t, nilIndex.Suggest("犬"))
	assert.Zero(t, nilIndex.Len())
}

func TestToHiragana(t *testing.T) {
	assert.Equal(t, "いぬ", ToHiragana("イヌ"))
	assert.Equal(t, "ねこ犬", ToHiragana("ネコ犬"))
	assert.Equal(t, "abc", ToHiragana("abc"))
}

func TestFillSuggestions(t *testing.T) {
	conn, err := db.Open(":memory:")
	require.NoError(t, err)
	defer conn.Close()

	words := []struct{ word, lemma, reading string }{
		{"犬", "犬", "イヌ"},
		{"走る", "走る", "ハシル"},
		{"未知", "未知", "ミチ"},
		{"猫", "猫", "ネコ"},
		{"テスト", "テスト", "テスト"},
	}
	for _, w := range words {
		_, err := db.CreateOrGetTerm(conn, w.word, w.lemma, w.reading, "ja")
		require.NoError(t, err)
	}

	entries, err := Parse([]byte(jmdictFixture))
	require.NoError(t, err)
	ix := NewIndex(entries)

	n, err := ix.FillSuggestions(conn)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	var js string
	require.NoError(t, conn.QueryRow(`SELECT suggestions FROM terms WHERE term = '犬'`).Scan(&js))
	var got []Suggestion
	require.NoError(t, json.Unmarshal([]byte(js), &got))
	assert.Equal(t, []Suggestion{{Senses: []string{"dog"}, POS: []string{"n"}}}, got)

	remaining, err := db.TermsWithoutSuggestions(conn)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "未知", remaining[0].Term)

	// Already filled terms are left alone.
	n, err = ix.FillSuggestions(conn)
	require.NoError(t, err)
	assert.Zero(t, n)
}
