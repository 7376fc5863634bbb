package tokenize

import (
	"strings"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

// JapaneseSegmenter splits Japanese clusters into morphemes using kagome and
// the IPA dictionary.
type JapaneseSegmenter struct {
	t *tokenizer.Tokenizer
}

// NewJapaneseSegmenter loads the IPA dictionary. Loading takes a moment, so
// callers should build one segmenter and share it.
func NewJapaneseSegmenter() (*JapaneseSegmenter, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, err
	}
	return &JapaneseSegmenter{t: t}, nil
}

// Segment returns the surface form of every morpheme in cluster, in order.
func (s *JapaneseSegmenter) Segment(cluster string) []string {
	tokens := s.t.Tokenize(cluster)
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if token.Class == tokenizer.DUMMY {
			continue
		}
		if strings.TrimSpace(token.Surface) == "" {
			continue
		}
		out = append(out, token.Surface)
	}
	return out
}
