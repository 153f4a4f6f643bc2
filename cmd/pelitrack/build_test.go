package main

// Notes:
// - runBuild is exercised end to end against a temp site with a fake
//   gpsbabel runner and a fake snapshotter; no external binary is run.
// - Exit codes are checked through run() so the error mapping is covered.
// - The summary table layout belongs to go-pretty; we only check that rows
//   and totals appear.

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pelitrack/go-pelitrack"
	"github.com/pelitrack/go-pelitrack/internal/trackcache"
)

// ---------------------------------------------------------------------------
// TestRunBuild - Full build
// ---------------------------------------------------------------------------

func TestRunBuild_WritesPagesAndTracks(t *testing.T) {
	t.Parallel()

	_, cfgPath, outDir := testProject(t, "")
	runner := &fakeRunner{}
	env, stdout, stderr := testEnv(runner, nil)

	code := run(context.Background(), []string{"build", "-c", cfgPath, "-w", "2"}, env)
	if code != ExitSuccess {
		t.Fatalf("exit code = %d, want %d\nstderr: %s", code, ExitSuccess, stderr.String())
	}

	if _, err := os.Stat(filepath.Join(outDir, "tracks", "ride.gpx")); err != nil {
		t.Errorf("track not written: %v", err)
	}

	page, err := os.ReadFile(filepath.Join(outDir, "ride.html"))
	if err != nil {
		t.Fatalf("page not written: %v", err)
	}
	for _, want := range []string{pelitrack.ElementID("ride"), "ride.gpx", "img/route.png", "Test Site"} {
		if !strings.Contains(string(page), want) {
			t.Errorf("ride.html missing %q", want)
		}
	}
	if strings.Index(string(page), pelitrack.ElementID("ride")) > strings.Index(string(page), "</article>") {
		t.Error("map widget should be inside the article")
	}

	notes, err := os.ReadFile(filepath.Join(outDir, "notes.html"))
	if err != nil {
		t.Fatalf("notes page not written: %v", err)
	}
	if strings.Contains(string(notes), "pelitrack-map") {
		t.Error("page without track should not get a map")
	}

	if _, err := os.Stat(filepath.Join(outDir, draftsDir, "later.html")); err != nil {
		t.Errorf("draft not written below drafts/: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "img", "route.png")); err != nil {
		t.Errorf("static file not copied: %v", err)
	}

	if runner.count() != 1 {
		t.Errorf("gpsbabel calls = %d, want 1", runner.count())
	}
	if !strings.Contains(stdout.String(), "ride") || !strings.Contains(stdout.String(), "3 articles") {
		t.Errorf("summary missing rows or totals:\n%s", stdout.String())
	}
}

func TestRunBuild_CacheSkipsUnchangedTracks(t *testing.T) {
	t.Parallel()

	_, cfgPath, outDir := testProject(t, "")
	runner := &fakeRunner{}
	env, _, stderr := testEnv(runner, nil)

	for i := range 2 {
		if code := run(context.Background(), []string{"build", "-c", cfgPath, "-q"}, env); code != ExitSuccess {
			t.Fatalf("build %d exit code = %d\nstderr: %s", i, code, stderr.String())
		}
	}
	if runner.count() != 1 {
		t.Errorf("gpsbabel calls = %d, want 1 (second build cached)", runner.count())
	}

	if _, err := os.Stat(trackcache.Path(outDir)); err != nil {
		t.Errorf("cache database missing: %v", err)
	}

	if code := run(context.Background(), []string{"build", "-c", cfgPath, "-q", "--no-cache"}, env); code != ExitSuccess {
		t.Fatalf("--no-cache exit code = %d", code)
	}
	if runner.count() != 2 {
		t.Errorf("gpsbabel calls = %d, want 2 after --no-cache", runner.count())
	}
}

func TestRunBuild_TranslationsGetOwnTracks(t *testing.T) {
	t.Parallel()

	root, cfgPath, outDir := testProject(t, "")
	writeFile(t, filepath.Join(root, "content", "ride-de.md"),
		"---\ntitle: Morgenfahrt\nslug: ride\nlang: de\n"+
			"track: 'ride.fit;garmin_fit;gpsbabel_filters=>{\"nuketypes\": \"waypoints\"}'\n---\nWir fuhren.\n")
	runner := &fakeRunner{}
	env, _, stderr := testEnv(runner, nil)

	for i := range 2 {
		if code := run(context.Background(), []string{"build", "-c", cfgPath, "-q", "-w", "4"}, env); code != ExitSuccess {
			t.Fatalf("build %d exit code = %d\nstderr: %s", i, code, stderr.String())
		}
	}
	if runner.count() != 2 {
		t.Errorf("gpsbabel calls = %d, want 2 (one per language, rebuild cached)", runner.count())
	}

	outputs := map[string]bool{}
	runner.mu.Lock()
	for _, call := range runner.calls {
		for i := 1; i < len(call)-1; i++ {
			if call[i] == "-F" {
				outputs[call[i+1]] = true
			}
		}
	}
	runner.mu.Unlock()
	if len(outputs) != 2 {
		t.Errorf("gpsbabel outputs = %v, want 2 distinct files", outputs)
	}

	for _, name := range []string{"ride.gpx", "ride-de.gpx"} {
		if _, err := os.Stat(filepath.Join(outDir, "tracks", name)); err != nil {
			t.Errorf("track %s not written: %v", name, err)
		}
	}
	page, err := os.ReadFile(filepath.Join(outDir, "ride-de.html"))
	if err != nil {
		t.Fatalf("translation page not written: %v", err)
	}
	for _, want := range []string{pelitrack.ElementID("ride-de"), "ride-de.gpx"} {
		if !strings.Contains(string(page), want) {
			t.Errorf("ride-de.html missing %q", want)
		}
	}
}

func TestRunBuild_QuietPrintsNothing(t *testing.T) {
	t.Parallel()

	_, cfgPath, _ := testProject(t, "")
	env, stdout, _ := testEnv(&fakeRunner{}, nil)

	if code := run(context.Background(), []string{"build", "-c", cfgPath, "--quiet"}, env); code != ExitSuccess {
		t.Fatalf("exit code = %d", code)
	}
	if stdout.Len() != 0 {
		t.Errorf("stdout = %q, want empty", stdout.String())
	}
}

func TestRunBuild_OutputFlagWinsOverEnvAndConfig(t *testing.T) {
	t.Parallel()

	root, cfgPath, outDir := testProject(t, "")
	envOut := filepath.Join(root, "env-out")
	flagOut := filepath.Join(root, "flag-out")
	env, _, _ := testEnv(&fakeRunner{}, map[string]string{"PELITRACK_OUTPUT_DIR": envOut})

	if code := run(context.Background(), []string{"build", "-c", cfgPath, "-q", "-o", flagOut}, env); code != ExitSuccess {
		t.Fatalf("exit code = %d", code)
	}
	if _, err := os.Stat(filepath.Join(flagOut, "ride.html")); err != nil {
		t.Errorf("flag output dir not used: %v", err)
	}
	for _, dir := range []string{envOut, outDir} {
		if _, err := os.Stat(filepath.Join(dir, "ride.html")); err == nil {
			t.Errorf("unexpected output in %s", dir)
		}
	}

	if code := run(context.Background(), []string{"build", "-c", cfgPath, "-q"}, env); code != ExitSuccess {
		t.Fatalf("exit code = %d", code)
	}
	if _, err := os.Stat(filepath.Join(envOut, "ride.html")); err != nil {
		t.Errorf("env output dir not used: %v", err)
	}
}

// ---------------------------------------------------------------------------
// TestRunBuild_Failures - Exit codes
// ---------------------------------------------------------------------------

func TestRunBuild_GPSBabelNotFound(t *testing.T) {
	t.Parallel()

	_, cfgPath, outDir := testProject(t, "")
	env, _, stderr := testEnv(&fakeRunner{err: notFoundErr("gpsbabel")}, nil)

	code := run(context.Background(), []string{"build", "-c", cfgPath, "-q"}, env)
	if code != ExitTool {
		t.Errorf("exit code = %d, want %d", code, ExitTool)
	}
	if !strings.Contains(stderr.String(), "hint:") {
		t.Errorf("stderr should carry an install hint:\n%s", stderr.String())
	}
	// The page is still written with the track location.
	page, err := os.ReadFile(filepath.Join(outDir, "ride.html"))
	if err != nil {
		t.Fatalf("page not written: %v", err)
	}
	if !strings.Contains(string(page), "ride.gpx") {
		t.Error("track location should be published after a failed conversion")
	}
}

func TestRunBuild_GPSBabelFailureIsAWarning(t *testing.T) {
	t.Parallel()

	_, cfgPath, _ := testProject(t, "")
	env, stdout, _ := testEnv(&fakeRunner{err: errors.New("exit status 1")}, nil)

	code := run(context.Background(), []string{"build", "-c", cfgPath}, env)
	if code != ExitSuccess {
		t.Errorf("exit code = %d, want %d", code, ExitSuccess)
	}
	if !strings.Contains(stdout.String(), statusDegraded) {
		t.Errorf("summary should mark the track:\n%s", stdout.String())
	}
}

func TestRunBuild_BadDirectiveFailsArticle(t *testing.T) {
	t.Parallel()

	root, cfgPath, outDir := testProject(t, "")
	writeFile(t, filepath.Join(root, "content", "bad.md"),
		"---\ntitle: Bad\nslug: bad\ntrack: bad.gpx;gpx;colour=>red\n---\ntext\n")
	env, _, stderr := testEnv(&fakeRunner{}, nil)

	code := run(context.Background(), []string{"build", "-c", cfgPath, "-q"}, env)
	if code != ExitGeneral {
		t.Errorf("exit code = %d, want %d", code, ExitGeneral)
	}
	if !strings.Contains(stderr.String(), "1 of 4 articles failed") {
		t.Errorf("stderr = %q", stderr.String())
	}
	// The other articles are still built.
	if _, err := os.Stat(filepath.Join(outDir, "ride.html")); err != nil {
		t.Errorf("ride.html not written: %v", err)
	}
}

func TestRunBuild_Locked(t *testing.T) {
	t.Parallel()

	_, cfgPath, outDir := testProject(t, "")
	stateDir := filepath.Join(outDir, trackcache.Dir)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		t.Fatal(err)
	}
	lock, err := acquireLock(filepath.Join(stateDir, lockFileName))
	if err != nil {
		t.Fatalf("acquireLock() error = %v", err)
	}
	defer func() { _ = lock.Unlock() }()

	env, _, stderr := testEnv(&fakeRunner{}, nil)
	code := run(context.Background(), []string{"build", "-c", cfgPath}, env)
	if code != ExitIO {
		t.Errorf("exit code = %d, want %d", code, ExitIO)
	}
	if !strings.Contains(stderr.String(), lockFileName) {
		t.Errorf("stderr should name the lock file:\n%s", stderr.String())
	}
}

func TestRunBuild_UsageErrors(t *testing.T) {
	t.Parallel()

	_, cfgPath, _ := testProject(t, "")
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"unknown flag", []string{"build", "--frobnicate"}, ExitUsage},
		{"negative workers", []string{"build", "-c", cfgPath, "-w", "-1"}, ExitUsage},
		{"quiet and verbose", []string{"build", "-c", cfgPath, "-q", "-v"}, ExitUsage},
		{"two content dirs", []string{"build", "-c", cfgPath, "a", "b"}, ExitUsage},
		{"missing explicit config", []string{"build", "-c", missing}, ExitUsage},
		{"bad log format", []string{"build", "-c", cfgPath, "--log-format", "xml"}, ExitUsage},
		{"missing content dir", []string{"build", "-c", cfgPath, filepath.Join(t.TempDir(), "none")}, ExitIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env, _, stderr := testEnv(&fakeRunner{}, nil)
			if got := run(context.Background(), tt.args, env); got != tt.want {
				t.Errorf("exit code = %d, want %d\nstderr: %s", got, tt.want, stderr.String())
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestRunBuild_Snapshot - Map previews
// ---------------------------------------------------------------------------

func TestRunBuild_Snapshot(t *testing.T) {
	t.Parallel()

	_, cfgPath, outDir := testProject(t, "")
	env, _, stderr := testEnv(&fakeRunner{}, nil)
	var created atomic.Int32
	env.NewSnapshotter = func(timeout time.Duration) pelitrack.Snapshotter {
		created.Add(1)
		return &fakeSnapshotter{}
	}

	code := run(context.Background(), []string{"build", "-c", cfgPath, "-q", "--snapshot", "--snapshot-timeout", "10s"}, env)
	if code != ExitSuccess {
		t.Fatalf("exit code = %d\nstderr: %s", code, stderr.String())
	}
	if _, err := os.Stat(filepath.Join(outDir, "tracks", "ride.png")); err != nil {
		t.Errorf("snapshot not written: %v", err)
	}
	if created.Load() != 1 {
		t.Errorf("snapshotters created = %d, want 1 (one page with a track)", created.Load())
	}
}

func TestRunBuild_SnapshotBrowserDown(t *testing.T) {
	t.Parallel()

	_, cfgPath, _ := testProject(t, "")
	env, _, _ := testEnv(&fakeRunner{}, nil)
	env.NewSnapshotter = func(time.Duration) pelitrack.Snapshotter {
		return &fakeSnapshotter{err: pelitrack.ErrBrowserConnect}
	}

	code := run(context.Background(), []string{"build", "-c", cfgPath, "-q", "--snapshot"}, env)
	if code != ExitTool {
		t.Errorf("exit code = %d, want %d", code, ExitTool)
	}
}

// ---------------------------------------------------------------------------
// TestRunPool - Worker pool
// ---------------------------------------------------------------------------

func TestRunPool(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	errs := runPool(context.Background(), 3, 10, func(i int) error {
		calls.Add(1)
		if i%2 == 1 {
			return errors.New("odd")
		}
		return nil
	})

	if calls.Load() != 10 {
		t.Errorf("calls = %d, want 10", calls.Load())
	}
	for i, err := range errs {
		if (err != nil) != (i%2 == 1) {
			t.Errorf("errs[%d] = %v", i, err)
		}
	}

	if got := runPool(context.Background(), 4, 0, nil); len(got) != 0 {
		t.Errorf("empty pool returned %d errors", len(got))
	}
}

func TestRunPool_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	errs := runPool(ctx, 2, 5, func(int) error {
		calls.Add(1)
		return nil
	})
	if calls.Load() != 0 {
		t.Errorf("calls = %d, want 0", calls.Load())
	}
	for i, err := range errs {
		if !errors.Is(err, context.Canceled) {
			t.Errorf("errs[%d] = %v, want context.Canceled", i, err)
		}
	}
}

// ---------------------------------------------------------------------------
// TestBuildReport - Outcome and helpers
// ---------------------------------------------------------------------------

func TestBuildReport_Err(t *testing.T) {
	t.Parallel()

	if err := (&buildReport{}).err(); err != nil {
		t.Errorf("empty report err = %v, want nil", err)
	}

	r := &buildReport{LoadErrors: 1, Errors: []error{pelitrack.ErrGPSBabelNotFound}}
	err := r.err()
	if !errors.Is(err, ErrBuildIncomplete) || !errors.Is(err, pelitrack.ErrGPSBabelNotFound) {
		t.Errorf("err = %v", err)
	}
	if exitCodeFor(err) != ExitTool {
		t.Errorf("exitCodeFor = %d, want %d", exitCodeFor(err), ExitTool)
	}
}

func TestCountErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{errors.New("one"), 1},
		{errors.Join(errors.New("a"), errors.New("b")), 2},
	}
	for _, tt := range tests {
		if got := countErrors(tt.err); got != tt.want {
			t.Errorf("countErrors(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestPlural(t *testing.T) {
	t.Parallel()

	if got := plural(1, "entry", "entries"); got != "1 entry" {
		t.Errorf("plural(1) = %q", got)
	}
	if got := plural(3, "entry", "entries"); got != "3 entries" {
		t.Errorf("plural(3) = %q", got)
	}
}
