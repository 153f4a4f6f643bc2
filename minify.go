package pelitrack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/xml"

	"github.com/pelitrack/go-pelitrack/internal/fileutil"
)

const xmlMediaType = "text/xml"

// Minifier rewrites a GPX file in place with a smaller equivalent.
type Minifier interface {
	Minify(ctx context.Context, path string) error
}

// Compile-time interface checks.
var (
	_ Minifier = (*CommandMinifier)(nil)
	_ Minifier = (*BuiltinMinifier)(nil)
)

// CommandMinifier shells out to the minify CLI.
type CommandMinifier struct {
	Path   string
	Runner CommandRunner
}

// Minify runs "minify <file> --type xml -o <tmp>" and moves the result over
// the file. On failure the file is left untouched.
func (m *CommandMinifier) Minify(ctx context.Context, file string) error {
	tmp, cleanup, err := fileutil.TempSibling(file)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMinifyFailed, err)
	}
	defer cleanup()

	_, stderr, err := m.Runner.Run(ctx, m.Path, file, "--type", "xml", "-o", tmp)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &ExitError{Tool: "minify", Code: exitCode(err), Stderr: strings.TrimSpace(stderr), Err: ErrMinifyFailed}
	}
	if err := fileutil.ReplaceFile(tmp, file); err != nil {
		return fmt.Errorf("%w: replacing %s: %v", ErrMinifyFailed, file, err)
	}
	return nil
}

// BuiltinMinifier minifies in-process with the same XML minifier the minify
// CLI uses, so no external binary is needed.
type BuiltinMinifier struct {
	m *minify.M
}

// NewBuiltinMinifier creates a BuiltinMinifier.
func NewBuiltinMinifier() *BuiltinMinifier {
	m := minify.New()
	m.AddFunc(xmlMediaType, xml.Minify)
	return &BuiltinMinifier{m: m}
}

// Minify rewrites the file through a temp sibling.
func (b *BuiltinMinifier) Minify(ctx context.Context, file string) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	in, err := os.Open(file) // #nosec G304 -- path produced by ProcessArticle
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMinifyFailed, err)
	}
	defer in.Close()

	tmp, cleanup, err := fileutil.TempSibling(file)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMinifyFailed, err)
	}
	defer cleanup()

	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_TRUNC, fileutil.FilePermissions) // #nosec G304 -- temp path
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMinifyFailed, err)
	}
	if err := b.m.Minify(xmlMediaType, out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("%w: %s: %v", ErrMinifyFailed, file, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrMinifyFailed, err)
	}
	// Release the source handle before replacing it (required on Windows).
	_ = in.Close()

	if err := fileutil.ReplaceFile(tmp, file); err != nil {
		return fmt.Errorf("%w: replacing %s: %v", ErrMinifyFailed, file, err)
	}
	return nil
}

// newMinifier returns the configured minifier, or nil for unknown names.
func (p *Plugin) newMinifier() Minifier {
	if !KnownMinifier(p.settings.GPXMinifier) {
		return nil
	}
	if p.settings.GPXMinifier == MinifierMinify {
		return &CommandMinifier{Path: p.settings.MinifyPath, Runner: p.runner}
	}
	return NewBuiltinMinifier()
}

// MinifyAll minifies each path when MinifyGPX is set. A failing file is
// logged and left as is; only context cancellation stops the loop.
func (p *Plugin) MinifyAll(ctx context.Context, paths []string) error {
	if !p.settings.MinifyGPX || len(paths) == 0 {
		return nil
	}

	m := p.newMinifier()
	if m == nil {
		p.logger.Warn("gpx minifier is not known, check the spelling",
			slog.String("minifier", p.settings.GPXMinifier))
		return nil
	}

	for _, file := range paths {
		if err := m.Minify(ctx, file); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			p.logger.Error("minify failed, file left untouched", slog.String("file", file), slog.Any("error", err))
			continue
		}
		p.logger.Debug("minified track", slog.String("file", file))
	}
	return nil
}

// exitCode extracts a process exit code, or -1 when the process never ran.
func exitCode(err error) int {
	var exitErr interface{ ExitCode() int }
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
