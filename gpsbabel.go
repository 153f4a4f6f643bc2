package pelitrack

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"

	"github.com/pelitrack/go-pelitrack/internal/process"
)

// gpsbabelOutputType is the only output format the map widget reads.
const gpsbabelOutputType = "gpx"

// CommandRunner abstracts command execution to enable testing without real subprocesses.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout string, stderr string, err error)
}

// ExecRunner implements CommandRunner using os/exec. The child runs in its own
// process group, killed as a whole when ctx is canceled.
type ExecRunner struct{}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...) // #nosec G204 -- binary and args come from site config
	process.Isolate(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// BuildGPSBabelArgs returns the GPSBabel arguments converting inputPath of
// format inputType to GPX at outputPath, applying filters in order.
func BuildGPSBabelArgs(inputType, inputPath string, filters Filters, outputPath string) []string {
	args := make([]string, 0, 8+2*len(filters))
	args = append(args, "-i", inputType, "-f", inputPath)
	for _, f := range filters {
		args = append(args, "-x", f.Arg())
	}
	return append(args, "-o", gpsbabelOutputType, "-F", outputPath)
}

// GPSBabel converts track files by invoking the gpsbabel CLI.
type GPSBabel struct {
	Path   string
	Runner CommandRunner
}

// NewGPSBabel creates a GPSBabel client with a real command runner.
func NewGPSBabel(path string) *GPSBabel {
	return &GPSBabel{Path: path, Runner: &ExecRunner{}}
}

// Convert runs gpsbabel. A nonzero exit is reported as ErrGPSBabelFailed
// with the tool's stderr attached.
func (g *GPSBabel) Convert(ctx context.Context, inputType, inputPath string, filters Filters, outputPath string) error {
	if inputType == "" {
		return ErrMissingInputType
	}

	args := BuildGPSBabelArgs(inputType, inputPath, filters, outputPath)
	_, stderr, err := g.Runner.Run(ctx, g.Path, args...)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrGPSBabelNotFound, g.Path)
	}

	return &ExitError{Tool: "gpsbabel", Code: exitCode(err), Stderr: strings.TrimSpace(stderr), Err: ErrGPSBabelFailed}
}

// ExitError describes an external tool that exited with a nonzero status.
type ExitError struct {
	Tool   string
	Code   int
	Stderr string
	Err    error // sentinel, e.g. ErrGPSBabelFailed
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%v: %s exited with code %d", e.Err, e.Tool, e.Code)
	}
	return fmt.Sprintf("%v: %s exited with code %d: %s", e.Err, e.Tool, e.Code, e.Stderr)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}
