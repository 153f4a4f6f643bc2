package main

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pelitrack/go-pelitrack"
)

// ---------------------------------------------------------------------------
// Test Infrastructure - Fakes and environment
// ---------------------------------------------------------------------------

// fakeRunner records calls. For gpsbabel it writes a GPX file to the -F
// argument unless err is set.
type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string
	err   error
	out   string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	if f.err != nil {
		return "", "converter said no", f.err
	}
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "-F" {
			if err := os.WriteFile(args[i+1], []byte("<gpx></gpx>"), 0o644); err != nil {
				return "", "", err
			}
		}
	}
	return f.out, "", nil
}

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// notFoundErr is what os/exec returns for a missing binary.
func notFoundErr(name string) error {
	return &exec.Error{Name: name, Err: exec.ErrNotFound}
}

// fakeSnapshotter returns a fixed image.
type fakeSnapshotter struct {
	err error
}

func (f *fakeSnapshotter) Capture(ctx context.Context, _, _ string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return []byte("\x89PNG"), nil
}

func (f *fakeSnapshotter) Close() error { return nil }

// testEnv returns an Environment writing to buffers, with vars as the
// process environment.
func testEnv(runner pelitrack.CommandRunner, vars map[string]string) (*Environment, *bytes.Buffer, *bytes.Buffer) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	env := &Environment{
		Now:    func() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) },
		Stdout: stdout,
		Stderr: stderr,
		Getenv: func(k string) string { return vars[k] },
		Environ: func() []string {
			out := make([]string, 0, len(vars))
			for k, v := range vars {
				out = append(out, k+"="+v)
			}
			return out
		},
		Runner: runner,
		NewSnapshotter: func(time.Duration) pelitrack.Snapshotter {
			return &fakeSnapshotter{}
		},
		LookPath: func(file string) (string, error) {
			return "", notFoundErr(file)
		},
		ChromePath: func() (string, bool) { return "", false },
	}
	return env, stdout, stderr
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// testProject creates a content dir and config in a temp dir and returns
// the root, the config path and the output dir.
func testProject(t *testing.T, extraConfig string) (root, cfgPath, outDir string) {
	t.Helper()
	root = t.TempDir()
	outDir = filepath.Join(root, "output")
	content := filepath.Join(root, "content")

	writeFile(t, filepath.Join(content, "ride.md"),
		"---\ntitle: Morning Ride\nslug: ride\ntrack: ride.fit;garmin_fit\n---\nWe rode ![map]({static}img/route.png).\n")
	writeFile(t, filepath.Join(content, "ride.fit"), "FIT")
	writeFile(t, filepath.Join(content, "img", "route.png"), "png")
	writeFile(t, filepath.Join(content, "notes.md"),
		"---\ntitle: Notes\nslug: notes\n---\nNo track here.\n")
	writeFile(t, filepath.Join(content, "later.md"),
		"---\ntitle: Later\nslug: later\nstatus: draft\n---\nSoon.\n")

	cfgPath = filepath.Join(root, "pelitrack.yaml")
	writeFile(t, cfgPath, "site:\n  name: Test Site\n  contentDir: "+content+"\n  outputDir: "+outDir+
		"\ntrack:\n  gpsbabelPath: gpsbabel\nicons:\n  filenames: []\n"+extraConfig)
	return root, cfgPath, outDir
}
