// Package tokenize splits text into word tokens with absolute byte offsets.
package tokenize

import (
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Token is one word-like run of text.
// From and To are absolute byte offsets: the token's position inside the
// tokenized slice plus the base passed by the caller.
type Token struct {
	Text string
	From int
	To   int
}

// Segmenter splits a single word cluster into smaller words. It is used for
// scripts that do not separate words with spaces.
type Segmenter interface {
	Segment(cluster string) []string
}

// Tokenizer extracts tokens. The zero value is ready to use and performs no
// segmentation beyond the cluster rules.
type Tokenizer struct {
	seg Segmenter
}

// New returns a Tokenizer that hands clusters containing Japanese script to seg.
// A nil seg behaves like the zero Tokenizer.
func New(seg Segmenter) *Tokenizer {
	return &Tokenizer{seg: seg}
}

// Default is the tokenizer used by the package-level helpers.
var Default = &Tokenizer{}

// Tokenize collects every token of text using the Default tokenizer.
func Tokenize(text string, base int) []Token {
	return Default.Tokenize(text, base)
}

// Tokenize collects every token of text in position order.
func (tk *Tokenizer) Tokenize(text string, base int) []Token {
	var out []Token
	for t := range tk.All(text, base) {
		out = append(out, t)
	}
	return out
}

// All yields tokens lazily. The sequence can be ranged over any number of times.
func (tk *Tokenizer) All(text string, base int) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		i := 0
		for i < len(text) {
			r, size := utf8.DecodeRuneInString(text[i:])
			if !isWordRune(r) {
				i += size
				continue
			}
			start := i
			i += size
			end := i
			for i < len(text) {
				r, size = utf8.DecodeRuneInString(text[i:])
				if isWordRune(r) {
					i += size
					end = i
					continue
				}
				// A single joiner glues two clusters: can't, well-known.
				if isJoiner(r) && i+size < len(text) {
					next, nsize := utf8.DecodeRuneInString(text[i+size:])
					if isWordRune(next) {
						i += size + nsize
						end = i
						continue
					}
				}
				break
			}
			if !tk.emit(text[start:end], base+start, yield) {
				return
			}
		}
	}
}

func (tk *Tokenizer) emit(cluster string, from int, yield func(Token) bool) bool {
	if tk == nil || tk.seg == nil || !containsJapanese(cluster) {
		return yield(Token{Text: cluster, From: from, To: from + len(cluster)})
	}

	parts := tk.split(cluster, from)
	if parts == nil {
		return yield(Token{Text: cluster, From: from, To: from + len(cluster)})
	}
	for _, p := range parts {
		if !yield(p) {
			return false
		}
	}
	return true
}

// split locates each segment inside cluster. It returns nil when the segmenter
// output cannot be aligned with the input, in which case the whole cluster is
// kept as one token.
func (tk *Tokenizer) split(cluster string, from int) []Token {
	segments := tk.seg.Segment(cluster)
	if len(segments) == 0 {
		return nil
	}
	out := make([]Token, 0, len(segments))
	cursor := 0
	for _, s := range segments {
		idx := strings.Index(cluster[cursor:], s)
		if s == "" || idx < 0 {
			return nil
		}
		start := cursor + idx
		cursor = start + len(s)
		if !strings.ContainsFunc(s, isWordRune) {
			continue
		}
		out = append(out, Token{Text: s, From: from + start, To: from + cursor})
	}
	return out
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r)
}

func isJoiner(r rune) bool {
	return r == '\'' || r == '’' || r == '-'
}

func containsJapanese(s string) bool {
	for _, r := range s {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana) {
			return true
		}
	}
	return false
}
