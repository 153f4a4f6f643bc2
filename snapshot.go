package pelitrack

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/pelitrack/go-pelitrack/internal/fileutil"
	"github.com/pelitrack/go-pelitrack/internal/process"
)

// DefaultSnapshotTimeout bounds page load and element lookup.
const DefaultSnapshotTimeout = 30 * time.Second

// tileSettle is how long the page must stay network-idle before capture.
const tileSettle = 500 * time.Millisecond

// Snapshotter captures a PNG of one element of a local HTML page.
type Snapshotter interface {
	Capture(ctx context.Context, pagePath, elementID string) ([]byte, error)
	Close() error
}

// Compile-time interface check.
var _ Snapshotter = (*RodSnapshotter)(nil)

// RodSnapshotter captures map previews with headless Chrome via go-rod.
// The browser starts on first use. Not safe for concurrent use; pool
// instances with SnapshotPool.
type RodSnapshotter struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	timeout  time.Duration
}

// NewRodSnapshotter creates a RodSnapshotter. A zero timeout means
// DefaultSnapshotTimeout.
func NewRodSnapshotter(timeout time.Duration) *RodSnapshotter {
	if timeout <= 0 {
		timeout = DefaultSnapshotTimeout
	}
	return &RodSnapshotter{timeout: timeout}
}

// NewBrowserLauncher configures a Chrome launcher. ROD_BROWSER_BIN selects a
// pre-installed browser; CI and containers need the sandbox disabled.
func NewBrowserLauncher() *launcher.Launcher {
	l := launcher.New()
	if bin := os.Getenv("ROD_BROWSER_BIN"); bin != "" {
		l = l.Bin(bin)
	}
	if os.Getenv("CI") == "true" || os.Getenv("ROD_BROWSER_BIN") != "" {
		l = l.NoSandbox(true)
	}
	return l
}

func (r *RodSnapshotter) ensureBrowser() error {
	if r.browser != nil {
		return nil
	}

	l := NewBrowserLauncher()
	u, err := l.Launch()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}
	r.launcher = l

	r.browser = rod.New().ControlURL(u)
	if err := r.browser.Connect(); err != nil {
		r.browser = nil
		r.killBrowser()
		return fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}
	return nil
}

// Close releases browser resources, including Chrome's child processes.
func (r *RodSnapshotter) Close() error {
	var err error
	if r.browser != nil {
		err = r.browser.Close()
		r.browser = nil
	}
	r.killBrowser()
	return err
}

func (r *RodSnapshotter) killBrowser() {
	if r.launcher == nil {
		return
	}
	if pid := r.launcher.PID(); pid > 0 {
		process.KillProcessGroup(pid)
	}
	r.launcher.Kill()
	r.launcher = nil
}

// Capture opens pagePath and screenshots the element with the given id.
func (r *RodSnapshotter) Capture(ctx context.Context, pagePath, elementID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	absPath, err := filepath.Abs(pagePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}

	if err := r.ensureBrowser(); err != nil {
		return nil, err
	}

	page, err := r.browser.Page(proto.TargetCreateTarget{URL: "file://" + filepath.ToSlash(absPath)})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageCreate, err)
	}
	defer page.Close()

	timeout := r.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return nil, context.DeadlineExceeded
		}
	}

	if err := page.Timeout(timeout).WaitLoad(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}

	el, err := page.Timeout(timeout).Element("#" + elementID)
	if err != nil {
		return nil, fmt.Errorf("%w: element #%s: %v", ErrSnapshotCapture, elementID, err)
	}
	// Tiles and the GPX file load asynchronously; idle errors only mean
	// the page kept talking, so capture anyway.
	_ = page.Timeout(timeout).WaitIdle(tileSettle)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotCapture, err)
	}
	return img, nil
}

// SnapshotPath returns where the preview of a track is written: next to the
// GPX file, with a .png extension.
func SnapshotPath(t *Track) string {
	return strings.TrimSuffix(t.OutputPath, filepath.Ext(t.OutputPath)) + ".png"
}

// WriteSnapshot captures the map of a rendered article page and writes it
// to SnapshotPath. Articles without a track are skipped with an empty path.
func WriteSnapshot(ctx context.Context, s Snapshotter, pagePath string, a *Article) (string, error) {
	if a == nil || a.Track == nil {
		return "", nil
	}

	img, err := s.Capture(ctx, pagePath, ElementID(a.TrackName()))
	if err != nil {
		return "", fmt.Errorf("article %s: %w", a.Slug, err)
	}

	out := SnapshotPath(a.Track)
	if err := os.WriteFile(out, img, fileutil.FilePermissions); err != nil {
		return "", fmt.Errorf("article %s: %w: %v", a.Slug, ErrSnapshotCapture, err)
	}
	return out, nil
}
