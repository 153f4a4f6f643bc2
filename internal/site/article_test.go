package site

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Notes:
// - slug assertions stick to ASCII titles; transliteration is go-slug's concern
// ----

func writeArticle(t *testing.T, dir, rel, content string) string {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLoadArticle_YAMLFrontMatter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := writeArticle(t, dir, "posts/galibier.md", `---
title: Col du Galibier
date: 2024-07-14
tags: [cycling, alps]
track: "tracks/galibier.fit;garmin_fit;height=>300px"
---
# Climb

Long day.
`)

	page, err := LoadArticle(p, dir, "en")
	if err != nil {
		t.Fatalf("LoadArticle() error = %v", err)
	}
	a := page.Article
	if a.Slug != "col-du-galibier" {
		t.Errorf("Slug = %q, want col-du-galibier", a.Slug)
	}
	if a.Title != "Col du Galibier" {
		t.Errorf("Title = %q", a.Title)
	}
	if a.Metadata["track"] != "tracks/galibier.fit;garmin_fit;height=>300px" {
		t.Errorf("track metadata = %q", a.Metadata["track"])
	}
	if a.SourcePath != p {
		t.Errorf("SourcePath = %q, want %q", a.SourcePath, p)
	}
	if page.RelPath != "posts/galibier.md" {
		t.Errorf("RelPath = %q", page.RelPath)
	}
	if !page.Date.Equal(time.Date(2024, 7, 14, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Date = %v", page.Date)
	}
	if len(page.Tags) != 2 || page.Tags[1] != "alps" {
		t.Errorf("Tags = %v", page.Tags)
	}
	if page.Status != StatusPublished || page.Translation {
		t.Errorf("Status = %q, Translation = %v", page.Status, page.Translation)
	}
	if page.Body == "" || page.Body[0] != '#' {
		t.Errorf("Body = %q, want markdown without front matter", page.Body)
	}
}

func TestLoadArticle_HeaderMetadata(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := writeArticle(t, dir, "ride.md", "Title: Evening Ride\r\nSlug: evening\r\nStatus: draft\r\nTrack: ride.gpx;gpx\r\n\r\nBody text.\r\n")

	page, err := LoadArticle(p, dir, "")
	if err != nil {
		t.Fatalf("LoadArticle() error = %v", err)
	}
	if page.Article.Slug != "evening" {
		t.Errorf("Slug = %q, want evening", page.Article.Slug)
	}
	if page.Status != StatusDraft {
		t.Errorf("Status = %q, want draft", page.Status)
	}
	if page.Article.Metadata["track"] != "ride.gpx;gpx" {
		t.Errorf("track = %q, want lowercased key", page.Article.Metadata["track"])
	}
	if page.Article.Lang != DefaultLang {
		t.Errorf("Lang = %q, want %q", page.Article.Lang, DefaultLang)
	}
	if page.Body != "Body text.\n" {
		t.Errorf("Body = %q", page.Body)
	}
}

func TestLoadArticle_TOMLFrontMatter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := writeArticle(t, dir, "hike.md", "+++\ntitle = \"Hike\"\nlang = \"fr\"\n+++\ntext\n")

	page, err := LoadArticle(p, dir, "en")
	if err != nil {
		t.Fatalf("LoadArticle() error = %v", err)
	}
	if !page.Translation || page.Article.Lang != "fr" {
		t.Errorf("Translation = %v, Lang = %q", page.Translation, page.Article.Lang)
	}
	if page.OutputName() != "hike-fr.html" {
		t.Errorf("OutputName() = %q", page.OutputName())
	}
}

func TestLoadArticle_NoMetadata(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := writeArticle(t, dir, "Morning Run.md", "Just text: with a colon later.\n")

	page, err := LoadArticle(p, dir, "en")
	if err != nil {
		t.Fatalf("LoadArticle() error = %v", err)
	}
	if page.Article.Slug != "morning-run" {
		t.Errorf("Slug = %q, want morning-run", page.Article.Slug)
	}
	if page.Article.Title != "Morning Run" {
		t.Errorf("Title = %q, want file name", page.Article.Title)
	}
	if page.Body != "Just text: with a colon later.\n" {
		t.Errorf("Body = %q, want whole file", page.Body)
	}
}

func TestLoadArticle_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"bad status", "---\ntitle: x\nstatus: archived\n---\n", ErrInvalidStatus},
		{"bad date", "---\ntitle: x\ndate: yesterday\n---\n", ErrFrontMatter},
		{"broken yaml", "---\ntitle: [\n---\n", ErrFrontMatter},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := writeArticle(t, dir, filepath.Join("errs", string(rune('a'+i))+".md"), tt.content)
			if _, err := LoadArticle(p, dir, "en"); !errors.Is(err, tt.wantErr) {
				t.Errorf("LoadArticle() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		if _, err := LoadArticle(filepath.Join(dir, "none.md"), dir, "en"); !errors.Is(err, ErrArticleRead) {
			t.Errorf("LoadArticle() error = %v, want ErrArticleRead", err)
		}
	})
}

// ----

func TestParseHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		in       string
		wantMeta int
		wantBody string
	}{
		{"no header", "# Title\n\ntext", 0, "# Title\n\ntext"},
		{"header and body", "Title: A\nDate: 2024-01-01\n\ntext", 2, "text"},
		{"header only", "Title: A\n", 1, ""},
		{"header stops at non-meta line", "Title: A\n# Heading\n", 1, "# Heading\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			meta, body := parseHeader(tt.in)
			if len(meta) != tt.wantMeta {
				t.Errorf("meta = %v, want %d entries", meta, tt.wantMeta)
			}
			if body != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
		})
	}
}

func TestDeriveSlug(t *testing.T) {
	t.Parallel()

	tests := []struct {
		explicit, title, base string
		want                  string
	}{
		{"given-slug", "Title", "file", "given-slug"},
		{"../../escaped", "Title", "file", "escaped"},
		{"Ride 2024.05", "Title", "file", "ride-202405"},
		{`posts\ride`, "Title", "file", "postsride"},
		{"", "Two Words", "file", "two-words"},
		{"", "", "file name", "file-name"},
	}

	for _, tt := range tests {
		got, err := deriveSlug(tt.explicit, tt.title, tt.base)
		if err != nil {
			t.Errorf("deriveSlug(%q, %q, %q) error = %v", tt.explicit, tt.title, tt.base, err)
			continue
		}
		if got != tt.want {
			t.Errorf("deriveSlug(%q, %q, %q) = %q, want %q", tt.explicit, tt.title, tt.base, got, tt.want)
		}
	}

	if _, err := deriveSlug("", "", ""); !errors.Is(err, ErrNoSlug) {
		t.Errorf("deriveSlug(empty) error = %v, want ErrNoSlug", err)
	}
	if _, err := deriveSlug("../..", "Title", "file"); !errors.Is(err, ErrNoSlug) {
		t.Errorf("deriveSlug(../..) error = %v, want ErrNoSlug", err)
	}
}

func TestMetaString(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"x", "x"},
		{42, "42"},
		{true, "true"},
		{[]any{"a", "b"}, "a, b"},
		{at, "2024-01-02T03:04:05Z"},
	}
	for _, tt := range tests {
		if got := metaString(tt.in); got != tt.want {
			t.Errorf("metaString(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadArticle_Lang(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		content         string
		defaultLang     string
		wantLang        string
		wantTranslation bool
		wantErr         error
	}{
		{"same tag other spelling", "---\nlang: EN\n---\nx\n", "en", "en", false, nil},
		{"region is a translation", "---\nlang: en_GB\n---\nx\n", "en-US", "en-GB", true, nil},
		{"default spelled loosely", "x\n", "en_us", "en-US", false, nil},
		{"invalid article lang", "---\nlang: english please\n---\nx\n", "en", "", false, ErrInvalidLang},
		{"invalid default lang", "x\n", "??", "", false, ErrInvalidLang},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			p := writeArticle(t, dir, "ride.md", tt.content)

			page, err := LoadArticle(p, dir, tt.defaultLang)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("LoadArticle() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadArticle() error = %v", err)
			}
			if page.Article.Lang != tt.wantLang || page.Translation != tt.wantTranslation {
				t.Errorf("Lang = %q, Translation = %v; want %q, %v",
					page.Article.Lang, page.Translation, tt.wantLang, tt.wantTranslation)
			}
		})
	}
}
