package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/pelitrack/go-pelitrack/internal/config"
)

// CLI errors.
var (
	ErrUsage              = errors.New("invalid usage")
	ErrInvalidWorkerCount = errors.New("invalid worker count")
	ErrBuildLocked        = errors.New("output directory is locked by another build")
	ErrWritePage          = errors.New("failed to write page")
	ErrBuildIncomplete    = errors.New("build finished with errors")
)

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	quiet   bool
	verbose bool
}

// buildFlags holds the flags of the build command.
type buildFlags struct {
	common          commonFlags
	output          string
	workers         int
	snapshot        bool
	snapshotTimeout time.Duration
	noCache         bool
	logFormat       string

	// changed records which flags were given explicitly.
	changed map[string]bool
}

// addCommonFlags registers flags shared by commands.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only print errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")
}

// parseBuildFlags parses build arguments and returns the positional ones.
func parseBuildFlags(args []string, stderr io.Writer) (*buildFlags, []string, error) {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	fs.SetOutput(stderr)
	f := &buildFlags{}

	fs.StringVarP(&f.output, "output", "o", "", "output directory")
	fs.IntVarP(&f.workers, "workers", "w", 0, "parallel workers (0 = auto)")
	fs.BoolVar(&f.snapshot, "snapshot", false, "capture map previews with headless Chrome")
	fs.DurationVar(&f.snapshotTimeout, "snapshot-timeout", 0, "page load timeout per snapshot (e.g. 45s)")
	fs.BoolVar(&f.noCache, "no-cache", false, "convert every track, ignoring the cache")
	fs.StringVar(&f.logFormat, "log-format", "", "log format: console, json")
	addCommonFlags(fs, &f.common)

	fs.Usage = func() { printBuildUsage(stderr) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}

	if f.workers < 0 || f.workers > config.MaxWorkers {
		return nil, nil, fmt.Errorf("%w: %d (must be 0-%d)", ErrInvalidWorkerCount, f.workers, config.MaxWorkers)
	}
	if f.common.quiet && f.common.verbose {
		return nil, nil, fmt.Errorf("%w: --quiet and --verbose are mutually exclusive", ErrUsage)
	}
	if fs.NArg() > 1 {
		return nil, nil, fmt.Errorf("%w: expected at most one content directory, got %d", ErrUsage, fs.NArg())
	}

	f.changed = make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { f.changed[fl.Name] = true })

	return f, fs.Args(), nil
}

// mergeFlags applies explicitly given flags over the config.
func mergeFlags(f *buildFlags, cfg *config.Config) {
	if f.output != "" {
		cfg.Site.OutputDir = f.output
	}
	if f.changed["workers"] {
		cfg.Build.Workers = f.workers
	}
	if f.snapshot {
		cfg.Build.Snapshot = true
	}
	if f.snapshotTimeout > 0 {
		cfg.Build.SnapshotTimeout = f.snapshotTimeout.String()
	}
	if f.noCache {
		disabled := false
		cfg.Build.Cache = &disabled
	}
	if f.logFormat != "" {
		cfg.Log.Format = f.logFormat
	}
	switch {
	case f.common.verbose:
		cfg.Log.Level = "debug"
	case f.common.quiet:
		cfg.Log.Level = "error"
	}
}
