// Package extract detects media types and pulls indexable text out of files.
//
// Errors are classified for the pipeline: apperrors.ErrEmptyContent means
// "index by name instead", anything else wrapping apperrors.ErrParseFailure
// means the item is dropped.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/hugin/pkg/errors"
)

// SniffLen is how many leading bytes Detect needs.
const SniffLen = 512

// MediaType is a MIME type without parameters, e.g. "text/plain".
type MediaType string

const (
	Empty    MediaType = "application/x-empty"
	Plain    MediaType = "text/plain"
	Markdown MediaType = "text/markdown"
	HTML     MediaType = "text/html"
	Binary   MediaType = "application/octet-stream"
)

// Detector classifies a file from its name, size and leading bytes.
type Detector interface {
	Detect(name string, size int64, r io.Reader) (MediaType, error)
}

// Extractor returns the text of a file of the given type.
type Extractor interface {
	Extract(name string, r io.Reader, mt MediaType) (string, error)
}

// ContentParser is both halves of extraction.
type ContentParser interface {
	Detector
	Extractor
}

var extensionTypes = map[string]MediaType{
	".md":       Markdown,
	".markdown": Markdown,
	".txt":      Plain,
	".text":     Plain,
	".log":      Plain,
	".csv":      Plain,
	".json":     Plain,
	".yaml":     Plain,
	".yml":      Plain,
	".toml":     Plain,
	".go":       Plain,
	".html":     HTML,
	".htm":      HTML,
}

// Parser is the built-in ContentParser for text-like formats. Everything
// else is reported as unreadable so it falls back to its name.
type Parser struct {
	maxChars int
	md       goldmark.Markdown
	logger   *slog.Logger
}

// NewParser returns a Parser limited to cfg.MaxChars of text per file.
func NewParser(cfg config.ExtractConfig) *Parser {
	return &Parser{
		maxChars: cfg.MaxChars,
		md:       goldmark.New(),
		logger:   slog.Default().With("component", "extract"),
	}
}

// Detect sniffs the first bytes of r. For textual content the extension of
// name selects a more specific type.
func (p *Parser) Detect(name string, size int64, r io.Reader) (MediaType, error) {
	start := time.Now()
	defer p.timed("detect", name, start)

	if size == 0 {
		return Empty, nil
	}
	head := make([]byte, SniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("sniffing %s: %w: %w", name, apperrors.ErrParseFailure, err)
	}
	if n == 0 {
		return Empty, nil
	}
	sniffed := baseType(http.DetectContentType(head[:n]))
	ext := strings.ToLower(filepath.Ext(name))
	if byExt, ok := extensionTypes[ext]; ok && isTextual(sniffed) {
		return byExt, nil
	}
	if sniffed == string(Plain) || sniffed == string(HTML) {
		return MediaType(sniffed), nil
	}
	if byMime := baseType(mime.TypeByExtension(ext)); strings.HasPrefix(byMime, "text/") && isTextual(sniffed) {
		return Plain, nil
	}
	return MediaType(sniffed), nil
}

// Extract returns the indexable text of r. Binary and empty content yield
// ErrEmptyContent; read failures yield ErrParseFailure.
func (p *Parser) Extract(name string, r io.Reader, mt MediaType) (string, error) {
	start := time.Now()
	defer p.timed("extract", name, start)

	switch mt {
	case Empty:
		return "", fmt.Errorf("%s: %w", name, apperrors.ErrEmptyContent)
	case Plain, Markdown, HTML:
	default:
		return "", fmt.Errorf("%s: unsupported type %s: %w", name, mt, apperrors.ErrEmptyContent)
	}

	src, err := p.read(r)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w: %w", name, apperrors.ErrParseFailure, err)
	}
	var content string
	switch mt {
	case Markdown:
		content = p.markdownText(src)
	case HTML:
		content = htmlText(src)
	default:
		content = string(src)
	}
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%s: %w", name, apperrors.ErrEmptyContent)
	}
	return content, nil
}

// read returns at most maxChars characters of valid UTF-8.
func (p *Parser) read(r io.Reader) ([]byte, error) {
	if p.maxChars > 0 {
		r = io.LimitReader(r, int64(p.maxChars)*utf8.UTFMax)
	}
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	src = bytes.ToValidUTF8(src, []byte(" "))
	if p.maxChars > 0 && utf8.RuneCount(src) > p.maxChars {
		i, n := 0, 0
		for n < p.maxChars {
			_, size := utf8.DecodeRune(src[i:])
			i += size
			n++
		}
		src = src[:i]
	}
	return src, nil
}

func (p *Parser) markdownText(src []byte) string {
	doc := p.md.Parser().Parse(text.NewReader(src))
	var b strings.Builder
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *ast.Text:
			b.Write(n.Segment.Value(src))
			b.WriteByte(' ')
		case *ast.String:
			b.Write(n.Value)
			b.WriteByte(' ')
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(src))
			}
			b.WriteByte(' ')
		case *ast.AutoLink:
			b.Write(n.URL(src))
			b.WriteByte(' ')
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

var (
	scriptStyle = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	tag         = regexp.MustCompile(`(?s)<[^>]*>`)
)

func htmlText(src []byte) string {
	out := scriptStyle.ReplaceAll(src, []byte(" "))
	out = tag.ReplaceAll(out, []byte(" "))
	return string(out)
}

func (p *Parser) timed(op, name string, start time.Time) {
	if d := time.Since(start); d > 10*time.Millisecond {
		p.logger.Debug("slow "+op, "name", name, "duration", d)
	}
}

func baseType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.TrimSpace(contentType)
}

func isTextual(sniffed string) bool {
	return strings.HasPrefix(sniffed, "text/")
}
