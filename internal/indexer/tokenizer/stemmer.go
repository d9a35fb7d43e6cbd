package tokenizer

import (
	"fmt"
	"sort"
	"strings"
)

// Stemmer rewrites a token list. Implementations must be deterministic so
// that queries normalize to the same terms that were indexed.
type Stemmer interface {
	Stem(tokens []Token) []Token
}

// Identity passes tokens through unchanged.
type Identity struct{}

func (Identity) Stem(tokens []Token) []Token { return tokens }

// Suffix strips common English suffixes. Tokens that collapse onto the same
// stem are merged and their positions combined.
type Suffix struct{}

func (Suffix) Stem(tokens []Token) []Token {
	out := make([]Token, 0, len(tokens))
	seen := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		v := stem(tok.Value)
		if i, ok := seen[v]; ok {
			out[i].Positions = append(out[i].Positions, tok.Positions...)
			sort.Ints(out[i].Positions)
			continue
		}
		seen[v] = len(out)
		out = append(out, Token{Value: v, Positions: append([]int(nil), tok.Positions...)})
	}
	return out
}

// StemmerByName resolves the tokenizer.stemmer configuration value.
func StemmerByName(name string) (Stemmer, error) {
	switch name {
	case "", "none", "identity":
		return Identity{}, nil
	case "suffix":
		return Suffix{}, nil
	default:
		return nil, fmt.Errorf("unknown stemmer %q", name)
	}
}

var suffixRules = []struct {
	suffix      string
	replacement string
	minLen      int
}{
	{"ational", "ate", 2},
	{"tional", "tion", 2},
	{"encies", "ence", 2},
	{"ances", "ance", 2},
	{"ments", "ment", 2},
	{"izing", "ize", 2},
	{"ating", "ate", 2},
	{"iness", "y", 2},
	{"ously", "ous", 2},
	{"ively", "ive", 2},
	{"tion", "t", 3},
	{"sion", "s", 3},
	{"ying", "y", 2},
	{"ies", "y", 2},
	{"ing", "", 3},
	{"ers", "er", 2},
	{"ed", "", 3},
	{"ly", "", 3},
	{"es", "", 3},
	{"ss", "ss", 2},
	{"s", "", 3},
}

// stem applies the first matching rule whose result keeps at least minLen
// bytes; words that match nothing are returned as is.
func stem(word string) string {
	for _, rule := range suffixRules {
		if strings.HasSuffix(word, rule.suffix) {
			stemmed := word[:len(word)-len(rule.suffix)] + rule.replacement
			if len(stemmed) >= rule.minLen {
				return stemmed
			}
		}
	}
	return word
}
