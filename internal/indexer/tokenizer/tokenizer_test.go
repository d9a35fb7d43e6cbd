package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func values(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Value
	}
	return out
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", nil},
		{"only short words", "a an og", []string{}},
		{"punctuation splits", "Saft, suse! og løk", []string{"saft", "suse", "løk"}},
		{"lowercases unicode", "RØDGRØT med fløde", []string{"rødgrøt", "med", "fløde"}},
		{"digits are word chars", "report 2024 v2", []string{"report", "2024"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.text)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, values(got))
		})
	}
}

func TestTokenizeDeduplicatesAndKeepsPositions(t *testing.T) {
	got := Tokenize("alpha beta alpha ab alpha")
	require.Len(t, got, 2)
	assert.Equal(t, Token{Value: "alpha", Positions: []int{0, 2, 4}}, got[0])
	assert.Equal(t, Token{Value: "beta", Positions: []int{1}}, got[1])
}

func TestNormalizeComposesUnicode(t *testing.T) {
	decomposed := "E\u0301cole"
	assert.Equal(t, "école", Normalize(decomposed))
	assert.Equal(t, values(Tokenize("école")), values(Tokenize(decomposed)))
}

func TestMinLengthCountsRunes(t *testing.T) {
	assert.Equal(t, []string{"løk"}, values(Tokenize("løk")))
}

func TestDocumentTokensAddsName(t *testing.T) {
	tk := New(nil)

	got := tk.DocumentTokens("ab", "hello world")
	assert.Equal(t, []string{"ab", "hello", "world"}, values(got))
	assert.Equal(t, []int{0}, got[0].Positions)

	got = tk.DocumentTokens("notes.txt", "")
	assert.Equal(t, []Token{{Value: "notes.txt", Positions: []int{0}}}, got)

	got = tk.DocumentTokens("Hello", "hello again hello")
	assert.Equal(t, []string{"hello", "again"}, values(got))
	assert.Equal(t, []int{0, 2}, got[0].Positions)

	assert.Empty(t, tk.DocumentTokens("", ""))
}

func TestExpandName(t *testing.T) {
	assert.Equal(t, "my_report-2024.pdf my report 2024 pdf", ExpandName("my_report-2024.pdf"))
	assert.Equal(t, "...", ExpandName("..."))

	tokens := New(nil).DocumentTokens("my_report-2024.pdf", ExpandName("my_report-2024.pdf"))
	assert.Equal(t, []string{"my_report-2024.pdf", "report", "2024", "pdf"}, values(tokens))
}

func TestSuffixStemmerMergesCollisions(t *testing.T) {
	tk := New(Suffix{})
	got := tk.Tokenize("indexing indexes")
	require.Len(t, got, 1)
	assert.Equal(t, Token{Value: "index", Positions: []int{0, 1}}, got[0])
	assert.Equal(t, "index", tk.NormalizeQuery("  Indexing "))
}

func TestNormalizeQuery(t *testing.T) {
	tk := New(nil)
	assert.Equal(t, "løk", tk.NormalizeQuery("LØK"))
	assert.Equal(t, "ab", tk.NormalizeQuery("ab"))
	assert.Equal(t, "", tk.NormalizeQuery("   "))
}

func TestStemmerByName(t *testing.T) {
	for _, name := range []string{"", "none", "identity"} {
		s, err := StemmerByName(name)
		require.NoError(t, err, name)
		assert.IsType(t, Identity{}, s)
	}
	s, err := StemmerByName("suffix")
	require.NoError(t, err)
	assert.IsType(t, Suffix{}, s)
	_, err = StemmerByName("porter")
	assert.Error(t, err)
}
