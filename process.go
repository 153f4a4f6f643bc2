package pelitrack

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelitrack/go-pelitrack/internal/fileutil"
)

// ProcessArticle converts the article's track, if it has one, and sets
// a.Track. Articles without track metadata are left untouched.
//
// A gpsbabel failure is logged and recorded in Track.ConvertErr; the
// location is still published. Directive, settings and copy errors are
// returned and leave a.Track unset.
func (p *Plugin) ProcessArticle(ctx context.Context, a *Article) error {
	if !p.initialized {
		return ErrNotInitialized
	}

	raw, ok := a.Metadata[MetadataKey]
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}

	name := a.TrackName()
	if !ValidTrackName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidTrackName, name)
	}
	logger := p.logger.With(slog.String("slug", a.Slug))

	d, err := ParseDirective(raw)
	if err != nil {
		return fmt.Errorf("article %s: %w", a.Slug, err)
	}
	ts, err := ResolveTrackSettings(p.settings, d)
	if err != nil {
		return fmt.Errorf("article %s: %w", a.Slug, err)
	}
	if d.HasOptions() {
		logger.Debug("track settings overridden",
			slog.Int("options", len(d.Options)),
			slog.String("output", ts.GPXOutputPath),
			slog.Any("provider", ts.Provider))
	}

	location := path.Join(filepath.ToSlash(ts.GPXOutputPath), name+".gpx")
	outputPath := filepath.Join(p.settings.OutputDir, filepath.FromSlash(location))
	if err := os.MkdirAll(filepath.Dir(outputPath), fileutil.DirPermissions); err != nil {
		return fmt.Errorf("article %s: creating track directory: %w", a.Slug, err)
	}

	if ts.UseGPSBabel && d.InputType == "" {
		logger.Warn("no input type given for track", slog.String("track", d.Source))
		a.Track = nil
		return nil
	}

	source := resolveSource(a, d.Source)
	track := &Track{OutputPath: outputPath, Settings: ts}

	key, hit := p.lookupCache(ctx, logger, name, source, d.InputType, ts, outputPath)
	switch {
	case hit:
		track.Cached = true
		logger.Debug("track unchanged, reusing output", slog.String("output", outputPath))
	case !ts.UseGPSBabel:
		if err := fileutil.CopyFile(source, outputPath); err != nil {
			return fmt.Errorf("article %s: %w: %v", a.Slug, ErrTrackCopy, err)
		}
	default:
		logger.Debug("running gpsbabel",
			slog.String("command", p.babel.Path),
			slog.Any("args", BuildGPSBabelArgs(d.InputType, source, ts.GPSBabelFilters, outputPath)))
		if err := p.babel.Convert(ctx, d.InputType, source, ts.GPSBabelFilters, outputPath); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			logger.Warn("gpsbabel execution did not succeed", slog.String("track", d.Source))
			var exitErr *ExitError
			if errors.As(err, &exitErr) {
				logger.Debug("gpsbabel error", slog.Int("exit_code", exitErr.Code), slog.String("stderr", exitErr.Stderr))
			} else {
				logger.Debug("gpsbabel error", slog.Any("error", err))
			}
			track.ConvertErr = err
		}
	}

	if !track.Cached {
		p.recordProcessed(outputPath)
		if track.ConvertErr == nil {
			p.storeCache(ctx, logger, key, location)
		}
	}

	track.Location = p.settings.PublicURL(location)
	a.Track = track
	return nil
}

// resolveSource keeps the original working-directory-relative lookup and
// falls back to the article's directory.
func resolveSource(a *Article, source string) string {
	if filepath.IsAbs(source) || a.SourcePath == "" || fileutil.FileExists(source) {
		return source
	}
	candidate := filepath.Join(filepath.Dir(a.SourcePath), source)
	if fileutil.FileExists(candidate) {
		return candidate
	}
	return source
}

// cacheKey is the identity of one conversion.
type cacheKey struct {
	name         string
	sourceHash   string
	settingsHash string
}

// lookupCache reports whether a previous build produced the same output.
// Cache failures are logged and treated as misses.
func (p *Plugin) lookupCache(ctx context.Context, logger *slog.Logger, name, source, inputType string, ts TrackSettings, outputPath string) (*cacheKey, bool) {
	if p.cache == nil {
		return nil, false
	}

	sourceHash, err := fileutil.HashFile(source)
	if err != nil {
		// The copy or conversion reports the real problem.
		return nil, false
	}
	key := &cacheKey{
		name:         name,
		sourceHash:   sourceHash,
		settingsHash: p.settingsHash(inputType, ts),
	}

	entry, found, err := p.cache.Lookup(ctx, name)
	if err != nil {
		logger.Warn("track cache lookup failed", slog.Any("error", err))
		return key, false
	}
	hit := found &&
		entry.SourceHash == key.sourceHash &&
		entry.SettingsHash == key.settingsHash &&
		fileutil.FileExists(outputPath)
	return key, hit
}

func (p *Plugin) storeCache(ctx context.Context, logger *slog.Logger, key *cacheKey, location string) {
	if p.cache == nil || key == nil {
		return
	}
	err := p.cache.Store(ctx, CacheEntry{
		Slug:         key.name,
		SourceHash:   key.sourceHash,
		SettingsHash: key.settingsHash,
		Location:     location,
		UpdatedAt:    time.Now().UTC(),
	})
	if err != nil {
		logger.Warn("track cache store failed", slog.Any("error", err))
	}
}

// settingsHash covers everything that changes the bytes of the output file.
func (p *Plugin) settingsHash(inputType string, ts TrackSettings) string {
	payload, _ := json.Marshal(struct {
		InputType   string
		UseGPSBabel bool
		Filters     string
		GPSBabel    string
		Minify      bool
		Minifier    string
	}{
		InputType:   inputType,
		UseGPSBabel: ts.UseGPSBabel,
		Filters:     ts.GPSBabelFilters.String(),
		GPSBabel:    p.settings.GPSBabelPath,
		Minify:      p.settings.MinifyGPX,
		Minifier:    p.settings.GPXMinifier,
	})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
