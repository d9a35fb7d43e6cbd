// Package tokenizer turns extracted text into the exact-match terms stored in
// the inverted index. Text is NFC-normalized, lower-cased and split on
// anything that is not a letter or digit. Terms shorter than MinTermLength
// runes are dropped and repeated terms collapse into one Token carrying every
// position.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MinTermLength is the shortest content term kept, counted in runes.
const MinTermLength = 3

// Token is a normalized term and the word offsets at which it occurred.
// Positions are informational; nothing downstream depends on them.
type Token struct {
	Value     string
	Positions []int
}

// Normalize applies the canonical form shared by indexing and querying.
func Normalize(s string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(s)))
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// Tokenize splits text into unique normalized terms in first-seen order.
func Tokenize(text string) []Token {
	if text == "" {
		return nil
	}
	words := strings.FieldsFunc(Normalize(text), isSeparator)
	tokens := make([]Token, 0, len(words)/2)
	seen := make(map[string]int, len(words)/2)
	for pos, word := range words {
		if utf8.RuneCountInString(word) < MinTermLength {
			continue
		}
		if i, ok := seen[word]; ok {
			tokens[i].Positions = append(tokens[i].Positions, pos)
			continue
		}
		seen[word] = len(tokens)
		tokens = append(tokens, Token{Value: word, Positions: []int{pos}})
	}
	return tokens
}

// Tokenizer combines tokenization with a stemming step.
type Tokenizer struct {
	stemmer Stemmer
}

// New returns a Tokenizer; a nil stemmer means Identity.
func New(stemmer Stemmer) *Tokenizer {
	if stemmer == nil {
		stemmer = Identity{}
	}
	return &Tokenizer{stemmer: stemmer}
}

// Tokenize is the package-level Tokenize followed by the stemmer.
func (t *Tokenizer) Tokenize(text string) []Token {
	return t.stemmer.Stem(Tokenize(text))
}

// DocumentTokens tokenizes content and additionally emits the normalized
// display name as a position-0 token, so every document is findable by its
// full name regardless of length or punctuation.
func (t *Tokenizer) DocumentTokens(docName, text string) []Token {
	tokens := Tokenize(text)
	name := Normalize(docName)
	if name != "" {
		found := false
		for i := range tokens {
			if tokens[i].Value == name {
				if tokens[i].Positions[0] != 0 {
					tokens[i].Positions = append([]int{0}, tokens[i].Positions...)
				}
				found = true
				break
			}
		}
		if !found {
			tokens = append([]Token{{Value: name, Positions: []int{0}}}, tokens...)
		}
	}
	return t.stemmer.Stem(tokens)
}

// NormalizeQuery maps a query term onto the form stored at index time. No
// length filter applies: short terms can still hit name tokens.
func (t *Tokenizer) NormalizeQuery(term string) string {
	term = Normalize(term)
	if term == "" {
		return ""
	}
	stemmed := t.stemmer.Stem([]Token{{Value: term}})
	if len(stemmed) == 0 {
		return ""
	}
	return stemmed[0].Value
}

// ExpandName builds synthetic content for items that have none of their own:
// the name itself followed by its word parts, with underscores treated as
// separators.
func ExpandName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || isSeparator(r)
	})
	if len(parts) == 0 {
		return name
	}
	return name + " " + strings.Join(parts, " ")
}
