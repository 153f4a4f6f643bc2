package main

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	flag "github.com/spf13/pflag"

	"github.com/pelitrack/go-pelitrack"
	"github.com/pelitrack/go-pelitrack/internal/assets"
	"github.com/pelitrack/go-pelitrack/internal/config"
	"github.com/pelitrack/go-pelitrack/internal/fileutil"
	"github.com/pelitrack/go-pelitrack/internal/logging"
	"github.com/pelitrack/go-pelitrack/internal/site"
	"github.com/pelitrack/go-pelitrack/internal/trackcache"
)

const (
	defaultContentDir = "content"
	draftsDir         = "drafts"
	lockFileName      = "build.lock"
)

// Summary statuses.
const (
	statusConverted = "converted"
	statusCopied    = "copied"
	statusCached    = "cached"
	statusNoTrack   = "-"
	statusFailed    = "failed"
	statusDegraded  = "gpsbabel failed"
)

// lockError reports an output directory held by another build.
type lockError struct {
	path string
}

func (e *lockError) Error() string {
	return fmt.Sprintf("%v: %s", ErrBuildLocked, e.path)
}

func (e *lockError) Unwrap() error {
	return ErrBuildLocked
}

// articleResult is the outcome of one page.
type articleResult struct {
	Page     *site.Page
	PagePath string // rendered HTML file
	Snapshot string
	Err      error
}

// buildReport collects what a build did for the summary.
type buildReport struct {
	Results    []articleResult
	LoadErrors int
	Static     int
	Pruned     int
	Duration   time.Duration

	// Errors are build-level failures that are not tied to one article.
	Errors []error
	// Warnings are shown in the summary without failing the build.
	Warnings []string
}

// runBuild executes the build command.
func runBuild(ctx context.Context, args []string, env *Environment) error {
	f, positional, err := parseBuildFlags(args, env.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	warnUnknownEnvVars(env.Stderr, env.Environ())
	envCfg := loadEnvConfig(env.Getenv)

	cfg, cfgPath, err := loadBuildConfig(f.common.config, envCfg.ConfigPath)
	if err != nil {
		return err
	}
	applyEnvConfig(envCfg, cfg)
	mergeFlags(f, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Writer: env.Stderr})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	logger = logger.With(slog.String("run_id", uuid.NewString()))
	if cfgPath != "" {
		logger.Debug("config loaded", slog.String("path", cfgPath))
	}

	settings := pelitrack.DefaultSettings()
	cfg.Apply(settings)

	b := &builder{
		cfg:        cfg,
		settings:   settings,
		contentDir: resolveContentDir(positional, cfg),
		env:        env,
		logger:     logger,
		workers:    pelitrack.ResolveWorkers(cfg.Build.Workers),
		static:     make(map[string]bool),
	}

	report, err := b.run(ctx)
	if report != nil && !f.common.quiet {
		printBuildSummary(env.Stdout, report, shouldColorize(env.Stdout))
	}
	return err
}

// loadBuildConfig loads the named config. Without a name from a flag or the
// environment the default name is tried and a missing file is not an error.
func loadBuildConfig(flagName, envName string) (*config.Config, string, error) {
	name, explicit := flagName, true
	if name == "" {
		name = envName
	}
	if name == "" {
		name, explicit = config.DefaultName, false
	}

	cfg, path, err := config.LoadConfigPath(name)
	if err != nil {
		if !explicit && errors.Is(err, config.ErrConfigNotFound) {
			return config.DefaultConfig(), "", nil
		}
		return nil, "", err
	}
	return cfg, path, nil
}

// configSearchPaths lists where a config named by DefaultName is looked up.
func configSearchPaths() []string {
	paths := []string{filepath.Join(".", config.DefaultName+".yaml")}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, config.DefaultName, config.DefaultName+".yaml"))
	}
	return paths
}

// resolveContentDir picks the argument, then site.contentDir, then ./content.
func resolveContentDir(positional []string, cfg *config.Config) string {
	if len(positional) > 0 && positional[0] != "" {
		return positional[0]
	}
	if cfg.Site.ContentDir != "" {
		return cfg.Site.ContentDir
	}
	return defaultContentDir
}

// builder holds the state of one build.
type builder struct {
	cfg        *config.Config
	settings   *pelitrack.Settings
	contentDir string
	env        *Environment
	logger     *slog.Logger
	workers    int

	plugin *pelitrack.Plugin
	cache  *trackcache.Store
	coll   *site.Collection

	mu     sync.Mutex
	static map[string]bool
}

// run performs the build. The report is returned whenever articles were
// discovered, also when the build fails afterwards.
func (b *builder) run(ctx context.Context) (*buildReport, error) {
	start := b.env.Now()
	outDir := b.settings.OutputDir

	stateDir := filepath.Join(outDir, trackcache.Dir)
	if err := os.MkdirAll(stateDir, fileutil.DirPermissions); err != nil {
		return nil, fmt.Errorf("%w: creating %s: %v", ErrWritePage, outDir, err)
	}
	lock, err := acquireLock(filepath.Join(stateDir, lockFileName))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			b.logger.Warn("failed to release build lock", slog.Any("error", err))
		}
	}()

	if b.cfg.Build.CacheEnabled() {
		store, err := trackcache.Open(ctx, trackcache.Path(outDir))
		if err != nil {
			b.logger.Warn("track cache unavailable, converting every track", slog.Any("error", err))
		} else {
			b.cache = store
			defer store.Close()
		}
	}

	if err := b.initPlugin(ctx); err != nil {
		return nil, err
	}

	coll, loadErr := site.Discover(ctx, b.contentDir, b.cfg.Site.DefaultLang, b.logger)
	if coll == nil {
		return nil, loadErr
	}
	b.coll = coll

	pages := coll.All()
	report := &buildReport{
		Results:    make([]articleResult, len(pages)),
		LoadErrors: countErrors(loadErr),
	}
	for i, p := range pages {
		report.Results[i].Page = p
	}
	b.logger.Info("building site",
		slog.String("content", b.contentDir),
		slog.String("output", outDir),
		slog.Int("articles", len(pages)),
		slog.Int("workers", b.workers))

	if err := b.processTracks(ctx, report); err != nil {
		return report, err
	}
	if err := b.renderPages(ctx, report); err != nil {
		return report, err
	}
	b.copyStatic(report)

	if b.cfg.Build.Snapshot {
		if err := b.snapshotPages(ctx, report); err != nil {
			return report, err
		}
	}

	if err := b.plugin.Finalize(ctx); err != nil {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Errors = append(report.Errors, err)
	}

	if b.cache != nil {
		n, err := b.cache.Prune(ctx, coll.TrackNames())
		if err != nil {
			b.logger.Warn("track cache prune failed", slog.Any("error", err))
		}
		report.Pruned = n
	}

	report.Duration = b.env.Now().Sub(start)
	return report, report.err()
}

// initPlugin creates and initializes the track plugin.
func (b *builder) initPlugin(ctx context.Context) error {
	opts := []pelitrack.Option{
		pelitrack.WithLogger(b.logger),
		pelitrack.WithCommandRunner(b.env.Runner),
		pelitrack.WithAssetPath(b.cfg.Assets.BasePath),
	}
	if b.cache != nil {
		opts = append(opts, pelitrack.WithTrackCache(b.cache))
	}

	plugin, err := pelitrack.New(b.settings, opts...)
	if err != nil {
		return err
	}
	if err := plugin.Initialize(ctx); err != nil {
		return err
	}
	b.plugin = plugin
	return nil
}

// processTracks runs the track pipeline for every page on the worker pool
// and copies the pin icons once any page has a track.
func (b *builder) processTracks(ctx context.Context, report *buildReport) error {
	errs := runPool(ctx, b.workers, len(report.Results), func(i int) error {
		return b.plugin.ProcessArticle(ctx, report.Results[i].Page.Article)
	})
	if err := ctx.Err(); err != nil {
		return err
	}

	hasTrack := false
	babelMissing := false
	for i, err := range errs {
		r := &report.Results[i]
		if err != nil {
			b.logger.Warn("skipping track", slog.String("slug", r.Page.Article.Slug), slog.Any("error", err))
			r.Err = err
		}
		if t := r.Page.Article.Track; t != nil {
			hasTrack = true
			if !babelMissing && errors.Is(t.ConvertErr, pelitrack.ErrGPSBabelNotFound) {
				babelMissing = true
				report.Errors = append(report.Errors, t.ConvertErr)
			}
		}
	}

	if hasTrack {
		if err := b.plugin.CopyAssets(ctx); err != nil {
			b.logger.Warn("pin icons not copied", slog.Any("error", err))
			report.Warnings = append(report.Warnings, err.Error())
		}
	}
	return nil
}

// renderPages writes one HTML file per page.
func (b *builder) renderPages(ctx context.Context, report *buildReport) error {
	renderer, err := b.newRenderer()
	if err != nil {
		return err
	}
	head, err := b.plugin.RenderHead()
	if err != nil {
		return err
	}

	errs := runPool(ctx, b.workers, len(report.Results), func(i int) error {
		r := &report.Results[i]
		out, err := b.renderPage(ctx, renderer, head, r.Page)
		r.PagePath = out
		return err
	})
	if err := ctx.Err(); err != nil {
		return err
	}

	for i, err := range errs {
		if err != nil {
			r := &report.Results[i]
			b.logger.Error("page not written", slog.String("page", r.Page.RelPath), slog.Any("error", err))
			r.Err = errors.Join(r.Err, err)
		}
	}
	return nil
}

func (b *builder) newRenderer() (*site.Renderer, error) {
	loader, err := assets.NewAssetResolver(b.cfg.Assets.BasePath)
	if err != nil {
		return nil, err
	}
	return site.NewRenderer(loader, b.cfg.Assets.Style, b.cfg.Site.Name)
}

// renderPage renders one page, adds the map when the article has a track,
// and writes it. It returns the written path.
func (b *builder) renderPage(ctx context.Context, renderer *site.Renderer, head template.HTML, page *site.Page) (string, error) {
	logger := b.logger.With(slog.String("page", page.RelPath))

	doc, unresolved, err := renderer.Render(ctx, page, b.coll.Resolver(page, b.settings, b.addStatic))
	if err != nil {
		return "", err
	}
	for _, target := range unresolved {
		logger.Warn("unable to find link target", slog.String("target", target))
	}

	if page.Article.Track != nil {
		widget, err := b.plugin.RenderWidget(page.Article)
		if err != nil {
			return "", err
		}
		doc = pelitrack.InjectTrack(doc, head, widget)
	}

	out := b.pagePath(page)
	if err := os.MkdirAll(filepath.Dir(out), fileutil.DirPermissions); err != nil {
		return "", fmt.Errorf("%w: %v", ErrWritePage, err)
	}
	if err := os.WriteFile(out, []byte(doc), fileutil.FilePermissions); err != nil {
		return "", fmt.Errorf("%w: %v", ErrWritePage, err)
	}
	logger.Debug("page written", slog.String("output", out))
	return out, nil
}

// pagePath places drafts below drafts/ and everything else at the root.
func (b *builder) pagePath(page *site.Page) string {
	if page.Status == site.StatusDraft {
		return filepath.Join(b.settings.OutputDir, draftsDir, page.OutputName())
	}
	return filepath.Join(b.settings.OutputDir, page.OutputName())
}

func (b *builder) addStatic(rel string) {
	b.mu.Lock()
	b.static[rel] = true
	b.mu.Unlock()
}

// copyStatic copies the files linked with {static} to the same relative
// path in the output directory.
func (b *builder) copyStatic(report *buildReport) {
	rels := make([]string, 0, len(b.static))
	for rel := range b.static {
		rels = append(rels, rel)
	}
	sort.Strings(rels)

	for _, rel := range rels {
		src := filepath.Join(b.contentDir, filepath.FromSlash(rel))
		dst := filepath.Join(b.settings.OutputDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(dst), fileutil.DirPermissions); err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("%w: %v", ErrWritePage, err))
			continue
		}
		if err := fileutil.CopyFile(src, dst); err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("%w: static file %s: %v", ErrWritePage, rel, err))
			continue
		}
		report.Static++
	}
}

// snapshotPages captures the map of each written page with a track.
func (b *builder) snapshotPages(ctx context.Context, report *buildReport) error {
	var targets []int
	for i, r := range report.Results {
		if r.Err == nil && r.PagePath != "" && r.Page.Article.Track != nil {
			targets = append(targets, i)
		}
	}
	if len(targets) == 0 {
		return nil
	}

	timeout := b.cfg.Build.Timeout()
	size := min(pelitrack.ResolvePoolSize(b.cfg.Build.Workers), len(targets))
	pool := pelitrack.NewSnapshotPool(size, func() pelitrack.Snapshotter {
		return b.env.NewSnapshotter(timeout)
	})
	defer func() {
		if err := pool.Close(); err != nil {
			b.logger.Warn("closing browsers", slog.Any("error", err))
		}
	}()

	errs := runPool(ctx, pool.Size(), len(targets), func(j int) error {
		r := &report.Results[targets[j]]
		return pool.Do(ctx, func(s pelitrack.Snapshotter) error {
			out, err := pelitrack.WriteSnapshot(ctx, s, r.PagePath, r.Page.Article)
			r.Snapshot = out
			return err
		})
	})
	if err := ctx.Err(); err != nil {
		return err
	}

	browserDown := false
	for j, err := range errs {
		if err == nil {
			continue
		}
		r := &report.Results[targets[j]]
		b.logger.Error("snapshot failed", slog.String("slug", r.Page.Article.Slug), slog.Any("error", err))
		r.Err = errors.Join(r.Err, err)
		if !browserDown && errors.Is(err, pelitrack.ErrBrowserConnect) {
			browserDown = true
			report.Errors = append(report.Errors, err)
		}
	}
	return nil
}

// acquireLock takes the output directory lock without waiting.
func acquireLock(path string) (*flock.Flock, error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, &lockError{path: path}
	}
	return lock, nil
}

// runPool calls fn for 0..n-1 on up to workers goroutines and returns the
// errors by index. Jobs picked up after ctx is done are not run.
func runPool(ctx context.Context, workers, n int, fn func(i int) error) []error {
	errs := make([]error, n)
	if n == 0 {
		return errs
	}
	workers = min(max(workers, 1), n)

	jobs := make(chan int, n)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if err := ctx.Err(); err != nil {
					errs[idx] = err
					continue
				}
				errs[idx] = fn(idx)
			}
		}()
	}

	for i := range n {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	return errs
}

// countErrors counts the errors joined in err.
func countErrors(err error) int {
	if err == nil {
		return 0
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return len(joined.Unwrap())
	}
	return 1
}

// failed counts articles that did not build, load failures included.
func (r *buildReport) failed() int {
	n := r.LoadErrors
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

// err summarizes the build outcome. Article failures are reported by count;
// their details are in the log and the summary table.
func (r *buildReport) err() error {
	failed := r.failed()
	if failed == 0 && len(r.Errors) == 0 {
		return nil
	}

	var errs []error
	if failed > 0 {
		errs = append(errs, fmt.Errorf("%w: %d of %d articles failed",
			ErrBuildIncomplete, failed, len(r.Results)+r.LoadErrors))
	}
	errs = append(errs, r.Errors...)
	return errors.Join(errs...)
}

// trackStatus describes what happened to a page's track.
func trackStatus(res articleResult) string {
	t := res.Page.Article.Track
	switch {
	case res.Err != nil:
		return statusFailed
	case t == nil:
		return statusNoTrack
	case t.ConvertErr != nil:
		return statusDegraded
	case t.Cached:
		return statusCached
	case !t.Settings.UseGPSBabel:
		return statusCopied
	default:
		return statusConverted
	}
}

// printBuildSummary writes the per-article table and a totals line.
func printBuildSummary(w io.Writer, r *buildReport, colorize bool) {
	if len(r.Results) > 0 {
		rows := make([][]string, 0, len(r.Results))
		for _, res := range r.Results {
			location := ""
			if t := res.Page.Article.Track; t != nil {
				location = t.Location
			}
			note := ""
			if res.Err != nil {
				note, _, _ = strings.Cut(res.Err.Error(), "\n")
			} else if res.Snapshot != "" {
				note = "snapshot"
			}
			rows = append(rows, []string{
				res.Page.Article.Slug,
				res.Page.Article.Lang,
				res.Page.Status,
				trackStatus(res),
				location,
				note,
			})
		}
		fmt.Fprintln(w, renderTable(
			[]string{"Article", "Lang", "Status", "Track", "Location", "Note"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
		))
	}

	tracks, cached := 0, 0
	for _, res := range r.Results {
		if t := res.Page.Article.Track; t != nil {
			tracks++
			if t.Cached {
				cached++
			}
		}
	}

	for _, warn := range r.Warnings {
		fmt.Fprintln(w, statusLine(statusWarn, warn, colorize))
	}

	failed := r.failed()
	kind := statusOK
	if failed > 0 || len(r.Errors) > 0 {
		kind = statusError
	}
	fmt.Fprintln(w, statusLine(kind, fmt.Sprintf(
		"%d articles, %d tracks (%d cached), %d failed, %d static files, %s pruned in %s",
		len(r.Results)+r.LoadErrors, tracks, cached, failed, r.Static,
		plural(r.Pruned, "stale entry", "stale entries"),
		r.Duration.Round(time.Millisecond)), colorize))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return strconv.Itoa(n) + " " + many
}
