package pelitrack

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"sync"

	"github.com/pelitrack/go-pelitrack/internal/assets"
)

// Plugin runs the track pipeline for a generator host. Hosts call the hook
// methods in order: Initialize, ProcessArticles, CopyAssets, Finalize.
// ProcessArticle is safe for concurrent use once Initialize has returned.
type Plugin struct {
	settings    *Settings
	logger      *slog.Logger
	runner      CommandRunner
	cache       TrackCache
	assetPath   string
	assetLoader assets.AssetLoader
	babel       *GPSBabel
	widgetTmpl  *template.Template
	headTmpl    *template.Template

	initialized bool
	scripts     map[string]string

	mu        sync.Mutex
	processed []string
}

// Option configures a Plugin.
type Option func(*Plugin)

// WithLogger sets the logger. Defaults to a discarding logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Plugin) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithCommandRunner replaces the runner used for gpsbabel and minify.
func WithCommandRunner(r CommandRunner) Option {
	return func(p *Plugin) {
		if r != nil {
			p.runner = r
		}
	}
}

// WithTrackCache enables incremental builds.
func WithTrackCache(c TrackCache) Option {
	return func(p *Plugin) {
		p.cache = c
	}
}

// WithAssetPath overrides the embedded widget templates with files from dir.
// Templates missing from dir fall back to the embedded ones.
func WithAssetPath(dir string) Option {
	return func(p *Plugin) {
		p.assetPath = dir
	}
}

// New creates a Plugin. A nil settings value means DefaultSettings.
// The settings are copied; later changes by the caller have no effect.
func New(settings *Settings, opts ...Option) (*Plugin, error) {
	if settings == nil {
		settings = DefaultSettings()
	}

	p := &Plugin{
		settings:    settings.clone(),
		logger:      slog.New(slog.DiscardHandler),
		runner:      &ExecRunner{},
		assetLoader: assets.NewEmbeddedLoader(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.assetPath != "" {
		resolver, err := assets.NewAssetResolver(p.assetPath)
		if err != nil {
			return nil, err
		}
		p.assetLoader = resolver
	}

	var err error
	if p.widgetTmpl, err = p.loadTemplate(assets.WidgetTemplateName); err != nil {
		return nil, err
	}
	if p.headTmpl, err = p.loadTemplate(assets.HeadTemplateName); err != nil {
		return nil, err
	}

	p.babel = &GPSBabel{Path: p.settings.GPSBabelPath, Runner: p.runner}
	return p, nil
}

// Settings returns a copy of the effective settings.
func (p *Plugin) Settings() *Settings {
	return p.settings.clone()
}

// Initialize validates the settings and resolves script locations.
func (p *Plugin) Initialize(_ context.Context) error {
	p.settings.Provider = normalizeProvider(p.settings.Provider)
	if err := p.settings.Validate(); err != nil {
		return err
	}

	scripts, err := p.settings.ResolveScriptLocations(p.logger)
	if err != nil {
		return err
	}
	p.scripts = scripts
	p.initialized = true
	return nil
}

// ScriptLocations returns the resolved script URLs keyed by script name.
func (p *Plugin) ScriptLocations() map[string]string {
	out := make(map[string]string, len(p.scripts))
	for k, v := range p.scripts {
		out[k] = v
	}
	return out
}

// ProcessArticles processes published articles, drafts and translations.
// A failing article is logged and skipped; all failures are returned joined.
func (p *Plugin) ProcessArticles(ctx context.Context, groups ...[]*Article) error {
	var errs []error
	for _, group := range groups {
		for _, a := range group {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := p.ProcessArticle(ctx, a); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				p.logger.Warn("skipping track", slog.String("slug", a.Slug), slog.Any("error", err))
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// CopyAssets copies the pin icons into the output root.
func (p *Plugin) CopyAssets(_ context.Context) error {
	if !p.initialized {
		return ErrNotInitialized
	}
	return CopyPinIcons(p.settings)
}

// Finalize minifies the tracks written during this build.
func (p *Plugin) Finalize(ctx context.Context) error {
	if !p.initialized {
		return ErrNotInitialized
	}
	return p.MinifyAll(ctx, p.Processed())
}

// Processed returns the output paths of tracks written during this build,
// in completion order.
func (p *Plugin) Processed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.processed...)
}

func (p *Plugin) recordProcessed(path string) {
	p.mu.Lock()
	p.processed = append(p.processed, path)
	p.mu.Unlock()
}

func (p *Plugin) loadTemplate(name string) (*template.Template, error) {
	content, err := p.assetLoader.LoadTemplate(name)
	if err != nil {
		return nil, fmt.Errorf("loading %s template: %w", name, err)
	}
	tmpl, err := template.New(name).Parse(content)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s template: %v", ErrWidgetRender, name, err)
	}
	return tmpl, nil
}
