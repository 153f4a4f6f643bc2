package pelitrack

import (
	"context"
	"regexp"
	"time"
)

// trackNamePattern keeps track names usable as file names and as CSS id
// selectors.
var trackNamePattern = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N}_-]*$`)

// Article is the part of a generator article the track pipeline reads and
// annotates. Hosts fill Slug, SourcePath and Metadata; ProcessArticle sets Track.
type Article struct {
	Slug        string
	Title       string
	Lang        string
	Translation bool              // Lang differs from the site default; translations share the slug of their original
	SourcePath  string            // article source file, relative track paths may resolve against its directory
	Metadata    map[string]string // raw metadata values as written by the author
	Track       *Track
}

// TrackName is the file stem of the article's track outputs and its cache
// key: the slug, or slug-lang for a translation.
func (a *Article) TrackName() string {
	if a.Translation && a.Lang != "" {
		return a.Slug + "-" + a.Lang
	}
	return a.Slug
}

// ValidTrackName reports whether name is a safe track file stem.
func ValidTrackName(name string) bool {
	return trackNamePattern.MatchString(name)
}

// Track is the processed track attached to an article.
type Track struct {
	Location   string // public URL of the GPX file
	OutputPath string // filesystem path of the GPX file
	Settings   TrackSettings
	Cached     bool  // output reused from a previous build
	ConvertErr error // gpsbabel failure; the location is recorded regardless
}

// CacheEntry records the inputs that produced a track output.
type CacheEntry struct {
	Slug         string // Article.TrackName
	SourceHash   string
	SettingsHash string
	Location     string
	UpdatedAt    time.Time
}

// TrackCache remembers previous conversions so unchanged tracks are not
// converted again.
type TrackCache interface {
	Lookup(ctx context.Context, name string) (CacheEntry, bool, error)
	Store(ctx context.Context, entry CacheEntry) error
}
