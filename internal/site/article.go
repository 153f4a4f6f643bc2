// Package site loads Markdown articles from a content directory and renders
// them into standalone pages for the CLI host.
package site

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
	"github.com/goliatone/go-slug"

	"github.com/pelitrack/go-pelitrack"
)

// Article statuses.
const (
	StatusPublished = "published"
	StatusDraft     = "draft"
	StatusHidden    = "hidden"
)

// DefaultLang is used when neither the site nor the article sets a language.
const DefaultLang = "en"

// Sentinel errors for article loading.
var (
	ErrArticleRead   = errors.New("failed to read article")
	ErrFrontMatter   = errors.New("invalid front matter")
	ErrInvalidStatus = errors.New("invalid article status")
	ErrNoSlug        = errors.New("cannot derive article slug")
	ErrDuplicateSlug = errors.New("duplicate article slug")
)

// dateLayouts are tried in order for the date metadata.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// headerLine matches a "Key: value" metadata line at the top of a file.
var headerLine = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_-]*):\s*(.*)$`)

// Page is a loaded article with the fields the host needs around the
// pelitrack.Article passed to the plugin.
type Page struct {
	Article     *pelitrack.Article
	RelPath     string // slash path relative to the content directory
	Date        time.Time
	Status      string
	Author      string
	Summary     string
	Tags        []string
	Translation bool
	Body        string // Markdown without metadata
}

// OutputName is the page file name, slug.html or slug-lang.html for
// translations.
func (p *Page) OutputName() string {
	return p.Article.TrackName() + ".html"
}

// LoadArticle reads a Markdown article. Metadata comes from a front matter
// block (YAML, TOML or JSON) or, failing that, from leading "Key: value"
// lines. Keys are lowercased.
func LoadArticle(path, contentDir, defaultLang string) (*Page, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- walked from the content dir
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArticleRead, err)
	}
	if defaultLang == "" {
		defaultLang = DefaultLang
	}
	if defaultLang, err = CanonicalLang(defaultLang); err != nil {
		return nil, fmt.Errorf("site default language: %w", err)
	}

	meta, body, err := parseMetadata(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	rel, err := filepath.Rel(contentDir, path)
	if err != nil {
		rel = filepath.Base(path)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	articleSlug, err := deriveSlug(meta["slug"], meta["title"], base)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	status := strings.ToLower(strings.TrimSpace(meta["status"]))
	switch status {
	case "":
		status = StatusPublished
	case StatusPublished, StatusDraft, StatusHidden:
	default:
		return nil, fmt.Errorf("%s: %w: %q", path, ErrInvalidStatus, meta["status"])
	}

	lang := defaultLang
	if raw := meta["lang"]; strings.TrimSpace(raw) != "" {
		if lang, err = CanonicalLang(raw); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	title := meta["title"]
	if title == "" {
		title = titleFromName(base, lang)
	}

	page := &Page{
		Article: &pelitrack.Article{
			Slug:        articleSlug,
			Title:       title,
			Lang:        lang,
			Translation: lang != defaultLang,
			SourcePath:  path,
			Metadata:    meta,
		},
		RelPath:     filepath.ToSlash(rel),
		Status:      status,
		Author:      meta["author"],
		Summary:     meta["summary"],
		Tags:        splitList(meta["tags"]),
		Translation: lang != defaultLang,
		Body:        body,
	}
	if raw := meta["date"]; raw != "" {
		if page.Date, err = parseDate(raw); err != nil {
			return nil, fmt.Errorf("%s: %w: date %q", path, ErrFrontMatter, raw)
		}
	}
	return page, nil
}

// parseMetadata splits metadata from the body.
func parseMetadata(data []byte) (map[string]string, string, error) {
	var raw map[string]any
	body, err := frontmatter.Parse(bytes.NewReader(data), &raw)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrFrontMatter, err)
	}
	if raw != nil {
		meta := make(map[string]string, len(raw))
		for k, v := range raw {
			meta[strings.ToLower(k)] = metaString(v)
		}
		return meta, string(body), nil
	}

	meta, rest := parseHeader(string(data))
	return meta, rest, nil
}

// parseHeader reads "Key: value" lines up to the first blank line. Files
// whose first line is not such a line have no metadata.
func parseHeader(content string) (map[string]string, string) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	meta := map[string]string{}
	sc := bufio.NewScanner(strings.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	consumed := 0
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			if len(meta) > 0 {
				consumed += len(line) + 1
			}
			break
		}
		m := headerLine.FindStringSubmatch(line)
		if m == nil {
			if len(meta) == 0 {
				return meta, content
			}
			break
		}
		meta[strings.ToLower(m[1])] = strings.TrimSpace(m[2])
		consumed += len(line) + 1
	}
	if consumed >= len(content) {
		return meta, ""
	}
	return meta, content[consumed:]
}

func metaString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case time.Time:
		return val.Format(time.RFC3339)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, metaString(item))
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(val, ", ")
	default:
		return fmt.Sprint(val)
	}
}

// deriveSlug prefers an explicit slug, then the title, then the file name.
// Explicit slugs are normalized too, so they never carry path elements.
func deriveSlug(explicit, title, base string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		s, err := slug.Normalize(explicit)
		if err != nil || s == "" {
			return "", fmt.Errorf("%w: %q has no usable characters", ErrNoSlug, explicit)
		}
		return s, nil
	}
	for _, candidate := range []string{title, base} {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		s, err := slug.Normalize(candidate)
		if err == nil && s != "" {
			return s, nil
		}
	}
	return "", ErrNoSlug
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
