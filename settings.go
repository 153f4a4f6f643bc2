package pelitrack

import (
	"fmt"
	"os/exec"
	"strings"
)

// Script location keys.
const (
	ScriptLeafletJS   = "leaflet.js"
	ScriptLeafletCSS  = "leaflet.css"
	ScriptGPXJS       = "gpx.min.js"
	ScriptProvidersJS = "leaflet-providers.js"
)

// Script location modes. Any other value is taken as a path or URL.
const (
	LocationTheme  = "theme"
	LocationOnline = "online"
)

// Minifier names.
const (
	MinifierMinify  = "minify"
	MinifierBuiltin = "builtin"

	// minifierXMLFormatter is accepted for configs written for the Python plugin.
	minifierXMLFormatter = "xmlformatter"
)

// Default setting values.
const (
	DefaultGPXOutputPath  = "tracks"
	DefaultProvider       = "OpenStreetMap.Mapnik"
	DefaultHeight         = "480px"
	DefaultWidth          = "100%"
	DefaultGPXOptions     = "{async: true}"
	DefaultGPXIconDir     = "./leaflet-gpx"
	DefaultThemeStaticDir = "theme"
	DefaultOutputDir      = "output"
	DefaultGPSBabelBinary = "gpsbabel"
	DefaultMinifyBinary   = "minify"
)

// scriptKeys lists the known script location keys in render order.
var scriptKeys = []string{ScriptLeafletCSS, ScriptLeafletJS, ScriptProvidersJS, ScriptGPXJS}

// Settings holds the site-wide track settings. They are set once before any
// article is processed and never mutated afterwards.
type Settings struct {
	GPXOutputPath    string
	Provider         []string
	Height           string
	Width            string
	GPSBabelPath     string
	GPSBabelFilters  Filters
	UseGPSBabel      bool
	GPXOptions       string
	ScriptLocations  map[string]string
	GPXIconDir       string
	GPXIconFilenames []string
	MinifyGPX        bool
	GPXMinifier      string
	MinifyPath       string

	// Host settings.
	SiteURL        string
	RelativeURLs   bool
	ThemeStaticDir string
	OutputDir      string
}

// DefaultSettings returns settings with the documented defaults.
// Binary paths are looked up on PATH; when the lookup fails the bare name is kept
// so the failure surfaces when the tool is actually run.
func DefaultSettings() *Settings {
	return &Settings{
		GPXOutputPath:   DefaultGPXOutputPath,
		Provider:        []string{DefaultProvider},
		Height:          DefaultHeight,
		Width:           DefaultWidth,
		GPSBabelPath:    lookPathOr(DefaultGPSBabelBinary),
		GPSBabelFilters: Filters{{Name: "simplify", Options: "error=0.001k"}},
		UseGPSBabel:     true,
		GPXOptions:      DefaultGPXOptions,
		ScriptLocations: DefaultScriptLocations(),
		GPXIconDir:      DefaultGPXIconDir,
		GPXIconFilenames: []string{
			"pin-icon-start.png",
			"pin-icon-end.png",
			"pin-icon-wpt.png",
			"pin-shadow.png",
		},
		MinifyGPX:      false,
		GPXMinifier:    MinifierMinify,
		MinifyPath:     lookPathOr(DefaultMinifyBinary),
		ThemeStaticDir: DefaultThemeStaticDir,
		OutputDir:      DefaultOutputDir,
	}
}

// DefaultScriptLocations returns every script served from the theme.
func DefaultScriptLocations() map[string]string {
	locations := make(map[string]string, len(scriptKeys))
	for _, key := range scriptKeys {
		locations[key] = LocationTheme
	}
	return locations
}

// Validate checks settings that would otherwise fail halfway through a build.
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.GPXOutputPath) == "" {
		return ErrEmptyOutputPath
	}
	if len(s.Provider) == 0 {
		return ErrEmptyProvider
	}
	for key := range s.ScriptLocations {
		if !isScriptKey(key) {
			return fmt.Errorf("%w: %q", ErrUnknownScriptKey, key)
		}
	}
	return nil
}

// clone returns a deep copy so callers can keep their own Settings mutable.
func (s *Settings) clone() *Settings {
	c := *s
	c.Provider = append([]string(nil), s.Provider...)
	c.GPSBabelFilters = append(Filters(nil), s.GPSBabelFilters...)
	c.GPXIconFilenames = append([]string(nil), s.GPXIconFilenames...)
	c.ScriptLocations = make(map[string]string, len(s.ScriptLocations))
	for k, v := range s.ScriptLocations {
		c.ScriptLocations[k] = v
	}
	return &c
}

// normalizeProvider splits a single "A+B" style entry and drops blanks.
func normalizeProvider(providers []string) []string {
	out := make([]string, 0, len(providers))
	for _, p := range providers {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isScriptKey(key string) bool {
	for _, k := range scriptKeys {
		if k == key {
			return true
		}
	}
	return false
}

// KnownMinifier reports whether name selects a GPX minifier. Unknown names
// are not an error: Finalize logs them and leaves the tracks as written.
func KnownMinifier(name string) bool {
	switch name {
	case MinifierMinify, MinifierBuiltin, minifierXMLFormatter:
		return true
	}
	return false
}

func lookPathOr(name string) string {
	if path, err := exec.LookPath(name); err == nil {
		return path
	}
	return name
}
