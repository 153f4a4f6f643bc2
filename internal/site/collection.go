package site

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelitrack/go-pelitrack"
	"github.com/pelitrack/go-pelitrack/internal/fileutil"
	"github.com/pelitrack/go-pelitrack/internal/pipeline"
)

// markdownExts are the article file extensions.
var markdownExts = map[string]bool{".md": true, ".markdown": true, ".mkd": true}

// Collection is the set of articles found in a content directory, grouped
// the way the plugin processes them.
type Collection struct {
	ContentDir   string
	Articles     []*Page // published and hidden, default language
	Drafts       []*Page
	Translations []*Page

	byPath map[string]*Page
}

// Discover walks contentDir for Markdown articles. Files that fail to load
// are logged and skipped; their errors are returned joined next to a usable
// collection. Hidden directories are not entered.
func Discover(ctx context.Context, contentDir, defaultLang string, logger *slog.Logger) (*Collection, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if !fileutil.DirExists(contentDir) {
		return nil, fmt.Errorf("%w: content directory %s not found", ErrArticleRead, contentDir)
	}

	var paths []string
	err := filepath.WalkDir(contentDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if p != contentDir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if markdownExts[strings.ToLower(filepath.Ext(p))] {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	c := &Collection{ContentDir: contentDir, byPath: make(map[string]*Page, len(paths))}
	seen := make(map[string]string, len(paths)) // slug+lang -> rel path
	var errs []error

	for _, p := range paths {
		page, err := LoadArticle(p, contentDir, defaultLang)
		if err != nil {
			logger.Warn("skipping article", slog.String("path", p), slog.Any("error", err))
			errs = append(errs, err)
			continue
		}

		key := page.Article.Slug + "\x00" + page.Article.Lang
		if first, dup := seen[key]; dup {
			err := fmt.Errorf("%s: %w: %q already used by %s", p, ErrDuplicateSlug, page.Article.Slug, first)
			logger.Warn("skipping article", slog.String("path", p), slog.Any("error", err))
			errs = append(errs, err)
			continue
		}
		seen[key] = page.RelPath

		c.add(page)
	}

	logger.Debug("discovered articles",
		slog.Int("articles", len(c.Articles)),
		slog.Int("drafts", len(c.Drafts)),
		slog.Int("translations", len(c.Translations)))
	return c, errors.Join(errs...)
}

func (c *Collection) add(page *Page) {
	switch {
	case page.Status == StatusDraft:
		c.Drafts = append(c.Drafts, page)
	case page.Translation:
		c.Translations = append(c.Translations, page)
	default:
		c.Articles = append(c.Articles, page)
	}
	c.byPath[page.RelPath] = page
}

// All returns every page: articles, then drafts, then translations.
func (c *Collection) All() []*Page {
	out := make([]*Page, 0, len(c.Articles)+len(c.Drafts)+len(c.Translations))
	out = append(out, c.Articles...)
	out = append(out, c.Drafts...)
	return append(out, c.Translations...)
}

// TrackNames returns the distinct track names of all pages, the keys the
// track cache holds for this collection.
func (c *Collection) TrackNames() []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range c.All() {
		name := p.Article.TrackName()
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// Lookup finds a page by its slash path relative to the content directory.
func (c *Collection) Lookup(rel string) (*Page, bool) {
	p, ok := c.byPath[strings.TrimPrefix(path.Clean("/"+rel), "/")]
	return p, ok
}

// Resolver returns the link resolver for one page. Targets with a leading
// slash are relative to the content directory, others to the page's
// directory. Static targets must exist and are reported through onStatic so
// the caller can copy them.
func (c *Collection) Resolver(page *Page, s *pelitrack.Settings, onStatic func(rel string)) pipeline.LinkResolver {
	return func(kind, target string) (string, bool) {
		target, suffix := splitSuffix(target)
		rel := c.relTarget(page, target)
		if rel == "" {
			return "", false
		}

		switch kind {
		case pipeline.LinkStatic:
			if !fileutil.FileExists(filepath.Join(c.ContentDir, filepath.FromSlash(rel))) {
				return "", false
			}
			if onStatic != nil {
				onStatic(rel)
			}
			return s.PublicURL(rel) + suffix, true
		case pipeline.LinkFilename:
			other, ok := c.Lookup(rel)
			if !ok {
				return "", false
			}
			return s.PublicURL(other.OutputName()) + suffix, true
		}
		return "", false
	}
}

// relTarget resolves a placeholder target to a content-relative slash path.
// Paths escaping the content directory resolve to "".
func (c *Collection) relTarget(page *Page, target string) string {
	var joined string
	if strings.HasPrefix(target, "/") {
		joined = path.Clean(target)
	} else {
		joined = path.Clean("/" + path.Join(path.Dir(page.RelPath), target))
	}
	rel := strings.TrimPrefix(joined, "/")
	if rel == "" || rel == "." || strings.HasPrefix(rel, "../") {
		return ""
	}
	return rel
}

// splitSuffix separates a trailing #fragment or ?query.
func splitSuffix(target string) (string, string) {
	if i := strings.IndexAny(target, "#?"); i >= 0 {
		return target[:i], target[i:]
	}
	return target, ""
}
