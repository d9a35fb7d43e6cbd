package extract

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/hugin/pkg/errors"
)

func newParser() *Parser {
	return NewParser(config.ExtractConfig{MaxChars: 1 << 16})
}

func TestDetect(t *testing.T) {
	p := newParser()
	tests := []struct {
		name    string
		file    string
		content []byte
		want    MediaType
	}{
		{"empty", "a.txt", nil, Empty},
		{"plain", "notes.txt", []byte("pølse og saft"), Plain},
		{"markdown by extension", "README.md", []byte("# Title\n\nbody"), Markdown},
		{"html sniffed", "page", []byte("<!DOCTYPE html><html><body>x</body></html>"), HTML},
		{"png is binary", "a.md", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), "image/png"},
		{"unknown bytes", "blob.bin", []byte{0x00, 0x01, 0x02, 0xff}, Binary},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Detect(tt.file, int64(len(tt.content)), bytes.NewReader(tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractPlain(t *testing.T) {
	got, err := newParser().Extract("a.txt", strings.NewReader("saft, suse"), Plain)
	require.NoError(t, err)
	assert.Equal(t, "saft, suse", got)
}

func TestExtractRepairsInvalidUTF8(t *testing.T) {
	got, err := newParser().Extract("a.txt", bytes.NewReader([]byte("løk\xffrødgrøt")), Plain)
	require.NoError(t, err)
	assert.Equal(t, "løk rødgrøt", got)
}

func TestExtractTruncatesToMaxChars(t *testing.T) {
	p := NewParser(config.ExtractConfig{MaxChars: 4})
	got, err := p.Extract("a.txt", strings.NewReader("øøøøøø"), Plain)
	require.NoError(t, err)
	assert.Equal(t, "øøøø", got)
}

func TestExtractMarkdown(t *testing.T) {
	src := "# Handleliste\n\n* pølse\n* **saft** og [suse](http://x)\n\n```\nløk\n```\n"
	got, err := newParser().Extract("list.md", strings.NewReader(src), Markdown)
	require.NoError(t, err)
	for _, w := range []string{"Handleliste", "pølse", "saft", "suse", "løk"} {
		assert.Contains(t, got, w)
	}
	assert.NotContains(t, got, "**")
	assert.NotContains(t, got, "http://x")
}

func TestExtractHTML(t *testing.T) {
	src := "<html><head><style>body{}</style></head><body><p>rødgrøt</p><script>var x</script></body></html>"
	got, err := newParser().Extract("p.html", strings.NewReader(src), HTML)
	require.NoError(t, err)
	assert.Contains(t, got, "rødgrøt")
	assert.NotContains(t, got, "var x")
	assert.NotContains(t, got, "<p>")
}

func TestExtractClassifiesFallbacks(t *testing.T) {
	p := newParser()
	_, err := p.Extract("a.txt", strings.NewReader(""), Empty)
	assert.ErrorIs(t, err, apperrors.ErrEmptyContent)

	_, err = p.Extract("a.png", strings.NewReader("\x89PNG"), "image/png")
	assert.ErrorIs(t, err, apperrors.ErrEmptyContent)

	_, err = p.Extract("a.txt", strings.NewReader("  \n\t "), Plain)
	assert.ErrorIs(t, err, apperrors.ErrEmptyContent)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("i/o error") }

func TestExtractReadFailureIsParseFailure(t *testing.T) {
	_, err := newParser().Extract("a.txt", failingReader{}, Plain)
	assert.ErrorIs(t, err, apperrors.ErrParseFailure)
	assert.False(t, apperrors.IsFallback(err))

	_, err = newParser().Detect("a.txt", 10, failingReader{})
	assert.ErrorIs(t, err, apperrors.ErrParseFailure)
}
