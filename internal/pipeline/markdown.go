package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// ErrHTMLConversion indicates HTML conversion failed.
var ErrHTMLConversion = errors.New("HTML conversion failed")

// HTMLConverter turns an article body into an HTML fragment.
type HTMLConverter interface {
	ToHTML(ctx context.Context, body string) (string, error)
}

// Markdown converts article bodies with the extensions Pelican sites
// usually enable: tables, footnotes, definition lists, {#id .class}
// attributes and smart quotes. Fenced code gets chroma classes so the
// theme stylesheet colours it.
type Markdown struct {
	md goldmark.Markdown
}

// MarkdownOption configures a Markdown converter.
type MarkdownOption func(*markdownConfig)

type markdownConfig struct {
	typographer bool
	lineNumbers bool
}

// WithoutTypographer keeps straight quotes and "--".
func WithoutTypographer() MarkdownOption {
	return func(c *markdownConfig) { c.typographer = false }
}

// WithLineNumbers numbers the lines of fenced code blocks.
func WithLineNumbers() MarkdownOption {
	return func(c *markdownConfig) { c.lineNumbers = true }
}

// NewMarkdown creates a Markdown converter.
func NewMarkdown(opts ...MarkdownOption) *Markdown {
	cfg := markdownConfig{typographer: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	exts := []goldmark.Extender{
		extension.GFM,
		extension.Footnote,
		extension.DefinitionList,
		highlighting.NewHighlighting(
			highlighting.WithFormatOptions(
				chromahtml.WithClasses(true),
				chromahtml.WithLineNumbers(cfg.lineNumbers),
			),
		),
	}
	if cfg.typographer {
		exts = append(exts, extension.Typographer)
	}

	return &Markdown{md: goldmark.New(
		goldmark.WithExtensions(exts...),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithAttribute(),
		),
		// Raw HTML in the body is dropped.
		goldmark.WithRendererOptions(html.WithXHTML()),
	)}
}

// ToHTML converts body to an HTML fragment. goldmark cannot be interrupted,
// so on cancellation the conversion finishes in the background and its
// result is discarded.
func (m *Markdown) ToHTML(ctx context.Context, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	src := []byte(normalizeBody(body))
	out := make(chan error, 1)
	var buf bytes.Buffer
	go func() { out <- m.md.Convert(src, &buf) }()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-out:
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrHTMLConversion, err)
		}
		return buf.String(), nil
	}
}

// normalizeBody strips a byte order mark and converts CRLF and CR line
// endings, which editors on Windows leave in content files.
func normalizeBody(body string) string {
	body = strings.TrimPrefix(body, "\ufeff")
	if !strings.ContainsRune(body, '\r') {
		return body
	}
	body = strings.ReplaceAll(body, "\r\n", "\n")
	return strings.ReplaceAll(body, "\r", "\n")
}

var _ HTMLConverter = (*Markdown)(nil)
