package main

import (
	"errors"
	"os"

	"github.com/pelitrack/go-pelitrack"
	"github.com/pelitrack/go-pelitrack/internal/assets"
	"github.com/pelitrack/go-pelitrack/internal/config"
	"github.com/pelitrack/go-pelitrack/internal/hints"
	"github.com/pelitrack/go-pelitrack/internal/site"
)

// Exit codes for the pelitrack CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess = 0 // Build completed
	ExitGeneral = 1 // General/unexpected error, failed articles
	ExitUsage   = 2 // Invalid flags, config, or settings
	ExitIO      = 3 // File not found, permission denied, lock held
	ExitTool    = 4 // gpsbabel, minify or Chrome errors
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	if errors.Is(err, pelitrack.ErrGPSBabelNotFound) ||
		errors.Is(err, pelitrack.ErrBrowserConnect) ||
		errors.Is(err, pelitrack.ErrPageCreate) ||
		errors.Is(err, pelitrack.ErrPageLoad) {
		return ExitTool
	}

	if errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, config.ErrInvalidConfig) ||
		errors.Is(err, config.ErrUnsupportedExt) ||
		errors.Is(err, pelitrack.ErrEmptyOutputPath) ||
		errors.Is(err, pelitrack.ErrEmptyProvider) ||
		errors.Is(err, pelitrack.ErrUnknownScriptKey) ||
		errors.Is(err, assets.ErrStyleNotFound) ||
		errors.Is(err, assets.ErrInvalidBasePath) ||
		errors.Is(err, ErrUsage) ||
		errors.Is(err, ErrInvalidWorkerCount) {
		return ExitUsage
	}

	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, ErrBuildLocked) ||
		errors.Is(err, ErrWritePage) ||
		errors.Is(err, site.ErrArticleRead) {
		return ExitIO
	}

	return ExitGeneral
}

// formatError appends an actionable hint for known failures.
func formatError(err error, env *Environment) string {
	msg := "error: " + err.Error()
	var locked *lockError
	switch {
	case errors.Is(err, pelitrack.ErrGPSBabelNotFound):
		msg += hints.ForGPSBabelNotFound()
	case errors.Is(err, pelitrack.ErrBrowserConnect):
		container, _ := isContainer(env.Getenv)
		msg += hints.ForBrowserConnect(hints.Host{Getenv: env.Getenv, Container: container})
	case errors.Is(err, pelitrack.ErrPageLoad):
		msg += hints.ForSnapshotTimeout()
	case errors.As(err, &locked):
		msg += hints.ForBuildLocked(locked.path)
	case errors.Is(err, config.ErrConfigNotFound):
		msg += hints.ForConfigNotFound(configSearchPaths())
	case errors.Is(err, assets.ErrStyleNotFound):
		msg += hints.ForStyleNotFound(assets.EmbeddedStyles())
	case errors.Is(err, ErrWritePage):
		msg += hints.ForOutputDirectory()
	}
	return msg
}
