package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pelitrack/go-pelitrack/internal/config"
)

// envPrefix marks the variables read by pelitrack.
const envPrefix = "PELITRACK_"

// envConfig holds configuration from environment variables.
// Provides CI/CD-friendly overrides without editing the site config.
type envConfig struct {
	ConfigPath   string // PELITRACK_CONFIG: config file name or path
	OutputDir    string // PELITRACK_OUTPUT_DIR: site output directory
	SiteURL      string // PELITRACK_SITEURL: absolute site URL
	GPSBabelPath string // PELITRACK_GPSBABEL_PATH: gpsbabel executable
	MinifyPath   string // PELITRACK_MINIFY_PATH: minify executable
	Workers      int    // PELITRACK_WORKERS: parallel workers
	LogLevel     string // PELITRACK_LOG_LEVEL: debug, info, warn, error
}

// knownEnvVars lists valid PELITRACK_* environment variables.
// Used to detect typos and warn users about unknown variables.
var knownEnvVars = map[string]bool{
	"PELITRACK_CONFIG":        true,
	"PELITRACK_OUTPUT_DIR":    true,
	"PELITRACK_SITEURL":       true,
	"PELITRACK_GPSBABEL_PATH": true,
	"PELITRACK_MINIFY_PATH":   true,
	"PELITRACK_WORKERS":       true,
	"PELITRACK_LOG_LEVEL":     true,
	"PELITRACK_CONTAINER":     true, // read by doctor
}

// loadEnvConfig reads the PELITRACK_* variables through getenv.
// An unparsable or non-positive worker count is ignored.
func loadEnvConfig(getenv func(string) string) *envConfig {
	cfg := &envConfig{
		ConfigPath:   getenv("PELITRACK_CONFIG"),
		OutputDir:    getenv("PELITRACK_OUTPUT_DIR"),
		SiteURL:      getenv("PELITRACK_SITEURL"),
		GPSBabelPath: getenv("PELITRACK_GPSBABEL_PATH"),
		MinifyPath:   getenv("PELITRACK_MINIFY_PATH"),
		LogLevel:     getenv("PELITRACK_LOG_LEVEL"),
	}

	if workers := getenv("PELITRACK_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil && w > 0 {
			cfg.Workers = w
		}
	}

	return cfg
}

// warnUnknownEnvVars writes a warning for each unrecognized PELITRACK_*
// variable, e.g. PELITRACK_GPSBABEL instead of PELITRACK_GPSBABEL_PATH.
func warnUnknownEnvVars(w io.Writer, environ []string) {
	for _, env := range environ {
		if !strings.HasPrefix(env, envPrefix) {
			continue
		}
		name, _, _ := strings.Cut(env, "=")
		if !knownEnvVars[name] {
			fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
		}
	}
}

// applyEnvConfig overlays set environment values on the loaded config.
// Environment wins over the file; flags are merged afterwards and win over both.
func applyEnvConfig(env *envConfig, cfg *config.Config) {
	if env.OutputDir != "" {
		cfg.Site.OutputDir = env.OutputDir
	}
	if env.SiteURL != "" {
		cfg.Site.URL = env.SiteURL
	}
	if env.GPSBabelPath != "" {
		cfg.Track.GPSBabelPath = env.GPSBabelPath
	}
	if env.MinifyPath != "" {
		cfg.Minify.Path = env.MinifyPath
	}
	if env.Workers > 0 {
		cfg.Build.Workers = env.Workers
	}
	if env.LogLevel != "" {
		cfg.Log.Level = env.LogLevel
	}
}
