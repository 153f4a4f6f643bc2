package pelitrack

// Notes:
// - Lifecycle tests run the hooks in host order against temp directories.

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("nil settings uses defaults", func(t *testing.T) {
		t.Parallel()

		p, err := New(nil)
		if err != nil {
			t.Fatalf("New(nil) error = %v", err)
		}
		if p.Settings().GPXOutputPath != DefaultGPXOutputPath {
			t.Errorf("GPXOutputPath = %q", p.Settings().GPXOutputPath)
		}
	})

	t.Run("settings are copied", func(t *testing.T) {
		t.Parallel()

		s := testSettings()
		p, err := New(s)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		s.Provider[0] = "changed"
		s.GPXOutputPath = "changed"
		if got := p.Settings(); got.Provider[0] == "changed" || got.GPXOutputPath == "changed" {
			t.Errorf("plugin shares settings with caller: %+v", got)
		}
	})

	t.Run("invalid asset path", func(t *testing.T) {
		t.Parallel()

		if _, err := New(testSettings(), WithAssetPath("/does/not/exist/pelitrack")); err == nil {
			t.Error("New() with missing asset path succeeded")
		}
	})
}

func TestPlugin_Initialize(t *testing.T) {
	t.Parallel()

	t.Run("normalizes provider", func(t *testing.T) {
		t.Parallel()

		s := testSettings()
		s.Provider = []string{" OpenTopoMap ", ""}
		p, err := New(s)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if err := p.Initialize(context.Background()); err != nil {
			t.Fatalf("Initialize() error = %v", err)
		}
		if got := p.Settings().Provider; !reflect.DeepEqual(got, []string{"OpenTopoMap"}) {
			t.Errorf("Provider = %v", got)
		}
		if len(p.ScriptLocations()) != 4 {
			t.Errorf("ScriptLocations() = %v", p.ScriptLocations())
		}
	})

	t.Run("rejects invalid settings", func(t *testing.T) {
		t.Parallel()

		s := testSettings()
		s.ScriptLocations = map[string]string{"leaflet.min.js": LocationOnline}
		p, err := New(s)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if err := p.Initialize(context.Background()); !errors.Is(err, ErrUnknownScriptKey) {
			t.Errorf("Initialize() error = %v, want ErrUnknownScriptKey", err)
		}
	})
}

func TestPlugin_HooksRequireInitialize(t *testing.T) {
	t.Parallel()

	p, err := New(testSettings())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := p.CopyAssets(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("CopyAssets() error = %v", err)
	}
	if err := p.Finalize(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Finalize() error = %v", err)
	}
}

func TestPlugin_Lifecycle(t *testing.T) {
	t.Parallel()

	iconDir := t.TempDir()
	var logs strings.Builder
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	p := newTestPlugin(t, &fakeRunner{run: writeGPX}, func(s *Settings) {
		s.GPXIconDir = iconDir
		s.GPXIconFilenames = []string{"pin-icon-start.png"}
		s.MinifyGPX = true
		s.GPXMinifier = MinifierBuiltin
	}, WithLogger(logger))
	writeFile(t, filepath.Join(iconDir, "pin-icon-start.png"), "PNG")

	src := writeFile(t, filepath.Join(t.TempDir(), "ride.fit"), "FIT")
	a := trackArticle("ride", src+";garmin_fit")

	ctx := context.Background()
	if err := p.ProcessArticles(ctx, []*Article{a}); err != nil {
		t.Fatalf("ProcessArticles() error = %v", err)
	}
	if err := p.CopyAssets(ctx); err != nil {
		t.Fatalf("CopyAssets() error = %v", err)
	}
	if err := p.Finalize(ctx); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(p.settings.OutputDir, "pin-icon-start.png")); err != nil {
		t.Errorf("icon not copied: %v", err)
	}
	got, err := os.ReadFile(a.Track.OutputPath)
	if err != nil {
		t.Fatalf("reading track: %v", err)
	}
	if strings.Contains(string(got), "\n  ") {
		t.Errorf("track not minified: %q", got)
	}
	if !strings.Contains(logs.String(), "slug=ride") {
		t.Errorf("logs lack the article slug:\n%s", logs.String())
	}
}

func TestPlugin_FinalizeUnknownMinifier(t *testing.T) {
	t.Parallel()

	var logs strings.Builder
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	p := newTestPlugin(t, &fakeRunner{run: writeGPX}, func(s *Settings) {
		s.MinifyGPX = true
		s.GPXMinifier = "minfy"
	}, WithLogger(logger))

	src := writeFile(t, filepath.Join(t.TempDir(), "ride.fit"), "FIT")
	a := trackArticle("ride", src+";garmin_fit")
	ctx := context.Background()
	if err := p.ProcessArticle(ctx, a); err != nil {
		t.Fatalf("ProcessArticle() error = %v", err)
	}
	before, err := os.ReadFile(a.Track.OutputPath)
	if err != nil {
		t.Fatalf("reading track: %v", err)
	}

	if err := p.Finalize(ctx); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	after, err := os.ReadFile(a.Track.OutputPath)
	if err != nil {
		t.Fatalf("reading track: %v", err)
	}
	if string(after) != string(before) {
		t.Errorf("track changed by an unknown minifier: %q", after)
	}
	if !strings.Contains(logs.String(), "gpx minifier is not known") || !strings.Contains(logs.String(), "minifier=minfy") {
		t.Errorf("missing unknown minifier warning:\n%s", logs.String())
	}
}
