package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"

	"github.com/pelitrack/go-pelitrack"
	"github.com/pelitrack/go-pelitrack/internal/fileutil"
	"github.com/pelitrack/go-pelitrack/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
	ErrInvalidConfig   = errors.New("invalid config")
	ErrUnsupportedExt  = errors.New("unsupported config extension")
)

// DefaultName is the config name looked up when none is given.
const DefaultName = "pelitrack"

// appDir is the directory below the user config dir searched for configs.
const appDir = "pelitrack"

// Field length limits.
const (
	MaxNameLength     = 200
	MaxURLLength      = 2048
	MaxPathLength     = 4096
	MaxSizeLength     = 32 // "480px", "100%", "calc(100vh - 4rem)"
	MaxProviderLength = 100
	MaxOptionsLength  = 4096 // gpx_options JavaScript object
	MaxWorkers        = 64
)

// Config is the site configuration file.
type Config struct {
	Site    SiteConfig        `yaml:"site" toml:"site"`
	Track   TrackConfig       `yaml:"track" toml:"track"`
	Scripts map[string]string `yaml:"scripts" toml:"scripts"` // script name -> theme, online, path or URL
	Icons   IconsConfig       `yaml:"icons" toml:"icons"`
	Minify  MinifyConfig      `yaml:"minify" toml:"minify"`
	Assets  AssetsConfig      `yaml:"assets" toml:"assets"`
	Build   BuildConfig       `yaml:"build" toml:"build"`
	Log     LogConfig         `yaml:"log" toml:"log"`
}

// SiteConfig describes the generated site.
type SiteConfig struct {
	Name           string `yaml:"name" toml:"name"`
	URL            string `yaml:"url" toml:"url"`
	RelativeURLs   bool   `yaml:"relativeUrls" toml:"relativeUrls"`
	DefaultLang    string `yaml:"defaultLang" toml:"defaultLang"`
	ContentDir     string `yaml:"contentDir" toml:"contentDir"`
	OutputDir      string `yaml:"outputDir" toml:"outputDir"`
	ThemeStaticDir string `yaml:"themeStaticDir" toml:"themeStaticDir"`
}

// TrackConfig holds the site-wide track defaults. Empty values keep the
// built-in defaults.
type TrackConfig struct {
	OutputPath   string     `yaml:"gpxOutputPath" toml:"gpxOutputPath"`
	Provider     StringList `yaml:"provider" toml:"provider"`
	Height       string     `yaml:"height" toml:"height"`
	Width        string     `yaml:"width" toml:"width"`
	GPSBabelPath string     `yaml:"gpsbabelPath" toml:"gpsbabelPath"`
	UseGPSBabel  *bool      `yaml:"useGpsbabel" toml:"useGpsbabel"`
	Filters      FilterList `yaml:"gpsbabelFilters" toml:"gpsbabelFilters"`
	GPXOptions   string     `yaml:"gpxOptions" toml:"gpxOptions"`
}

// IconsConfig locates the leaflet-gpx pin icons.
type IconsConfig struct {
	Dir       string   `yaml:"dir" toml:"dir"`
	Filenames []string `yaml:"filenames" toml:"filenames"`
}

// MinifyConfig controls post-build GPX minification.
type MinifyConfig struct {
	Enabled  bool   `yaml:"enabled" toml:"enabled"`
	Minifier string `yaml:"minifier" toml:"minifier"` // "minify" or "builtin"
	Path     string `yaml:"path" toml:"path"`
}

// AssetsConfig defines asset loading options.
type AssetsConfig struct {
	BasePath string `yaml:"basePath" toml:"basePath"` // Empty = use embedded assets
	Style    string `yaml:"style" toml:"style"`
}

// BuildConfig tunes the CLI build.
type BuildConfig struct {
	Workers         int    `yaml:"workers" toml:"workers"` // 0 = auto
	Cache           *bool  `yaml:"cache" toml:"cache"`     // nil = enabled
	Snapshot        bool   `yaml:"snapshot" toml:"snapshot"`
	SnapshotTimeout string `yaml:"snapshotTimeout" toml:"snapshotTimeout"` // Go duration, e.g. "45s"
}

// LogConfig selects log level and format.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// CacheEnabled reports whether the track cache is on.
func (b BuildConfig) CacheEnabled() bool {
	return b.Cache == nil || *b.Cache
}

// Timeout parses SnapshotTimeout. Zero means the snapshotter default.
func (b BuildConfig) Timeout() time.Duration {
	d, err := time.ParseDuration(b.SnapshotTimeout)
	if err != nil {
		return 0
	}
	return d
}

// Validate checks field lengths and enumerations.
// Called automatically by LoadConfig, but available for configs built in code.
func (c *Config) Validate() error {
	lengths := []struct {
		field string
		value string
		max   int
	}{
		{"site.name", c.Site.Name, MaxNameLength},
		{"site.url", c.Site.URL, MaxURLLength},
		{"site.defaultLang", c.Site.DefaultLang, MaxSizeLength},
		{"site.contentDir", c.Site.ContentDir, MaxPathLength},
		{"site.outputDir", c.Site.OutputDir, MaxPathLength},
		{"site.themeStaticDir", c.Site.ThemeStaticDir, MaxPathLength},
		{"track.gpxOutputPath", c.Track.OutputPath, MaxPathLength},
		{"track.height", c.Track.Height, MaxSizeLength},
		{"track.width", c.Track.Width, MaxSizeLength},
		{"track.gpsbabelPath", c.Track.GPSBabelPath, MaxPathLength},
		{"track.gpxOptions", c.Track.GPXOptions, MaxOptionsLength},
		{"icons.dir", c.Icons.Dir, MaxPathLength},
		{"minify.path", c.Minify.Path, MaxPathLength},
		{"assets.basePath", c.Assets.BasePath, MaxPathLength},
	}
	for _, l := range lengths {
		if err := validateFieldLength(l.field, l.value, l.max); err != nil {
			return err
		}
	}
	for i, p := range c.Track.Provider {
		if err := validateFieldLength(fmt.Sprintf("track.provider[%d]", i), p, MaxProviderLength); err != nil {
			return err
		}
	}
	for key, loc := range c.Scripts {
		if err := validateFieldLength("scripts."+key, loc, MaxURLLength); err != nil {
			return err
		}
	}

	if err := validation.ValidateStruct(&c.Site,
		validation.Field(&c.Site.URL, validation.By(absoluteURL)),
		validation.Field(&c.Site.DefaultLang, validation.By(languageTag)),
	); err != nil {
		return fmt.Errorf("%w: site: %v", ErrInvalidConfig, err)
	}
	for i, f := range c.Track.Filters {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("%w: track.gpsbabelFilters[%d]: name is required", ErrInvalidConfig, i)
		}
	}
	if err := validation.ValidateStruct(&c.Build,
		validation.Field(&c.Build.Workers, validation.Min(0), validation.Max(MaxWorkers)),
		validation.Field(&c.Build.SnapshotTimeout, validation.By(duration)),
	); err != nil {
		return fmt.Errorf("%w: build: %v", ErrInvalidConfig, err)
	}
	if err := validation.ValidateStruct(&c.Log,
		validation.Field(&c.Log.Level, validation.In("debug", "info", "warn", "warning", "error")),
		validation.Field(&c.Log.Format, validation.In("console", "json")),
	); err != nil {
		return fmt.Errorf("%w: log: %v", ErrInvalidConfig, err)
	}

	return nil
}

func absoluteURL(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return validation.NewError("validation_absolute_url", "must be an absolute URL such as https://example.org")
	}
	return nil
}

func languageTag(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := language.Parse(strings.ReplaceAll(s, "_", "-")); err != nil {
		return validation.NewError("validation_language_tag", "must be a language tag such as en or pt-BR")
	}
	return nil
}

func duration(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if d, err := time.ParseDuration(s); err != nil || d < 0 {
		return validation.NewError("validation_duration", "must be a positive duration such as 30s")
	}
	return nil
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

// DefaultConfig returns an empty configuration; Apply then leaves the
// built-in settings untouched.
func DefaultConfig() *Config {
	return &Config{}
}

// Apply overlays the non-empty config values on s.
func (c *Config) Apply(s *pelitrack.Settings) {
	setString(&s.SiteURL, c.Site.URL)
	if c.Site.RelativeURLs {
		s.RelativeURLs = true
	}
	setString(&s.OutputDir, c.Site.OutputDir)
	setString(&s.ThemeStaticDir, c.Site.ThemeStaticDir)

	setString(&s.GPXOutputPath, c.Track.OutputPath)
	if len(c.Track.Provider) > 0 {
		s.Provider = append([]string(nil), c.Track.Provider...)
	}
	setString(&s.Height, c.Track.Height)
	setString(&s.Width, c.Track.Width)
	setString(&s.GPSBabelPath, c.Track.GPSBabelPath)
	if c.Track.UseGPSBabel != nil {
		s.UseGPSBabel = *c.Track.UseGPSBabel
	}
	if c.Track.Filters != nil {
		s.GPSBabelFilters = c.Track.Filters.Filters()
	}
	setString(&s.GPXOptions, c.Track.GPXOptions)

	if len(c.Scripts) > 0 {
		if s.ScriptLocations == nil {
			s.ScriptLocations = make(map[string]string, len(c.Scripts))
		}
		for k, v := range c.Scripts {
			s.ScriptLocations[k] = v
		}
	}

	setString(&s.GPXIconDir, c.Icons.Dir)
	if c.Icons.Filenames != nil {
		s.GPXIconFilenames = append([]string(nil), c.Icons.Filenames...)
	}

	if c.Minify.Enabled {
		s.MinifyGPX = true
	}
	setString(&s.GPXMinifier, c.Minify.Minifier)
	setString(&s.MinifyPath, c.Minify.Path)
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Returns error if the file is not found (no silent fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	cfg, _, err := LoadConfigPath(nameOrPath)
	return cfg, err
}

// LoadConfigPath is LoadConfig that also returns the file it read.
func LoadConfigPath(nameOrPath string) (*Config, string, error) {
	if nameOrPath == "" {
		return nil, "", ErrEmptyConfigName
	}

	var configPath string
	var err error

	if fileutil.IsFilePath(nameOrPath) || hasConfigExt(nameOrPath) {
		configPath = nameOrPath
	} else {
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, "", err
		}
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, "", fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := parse(configPath, data)
	if err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, configPath, nil
}

// parse decodes data by the file extension. Unknown keys are errors in
// both formats.
func parse(path string, data []byte) (*Config, error) {
	var cfg Config

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yamlutil.UnmarshalStrict(data, &cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s (want .yaml, .yml or .toml)", ErrUnsupportedExt, path)
	}
	return &cfg, nil
}

var configExtensions = []string{".yaml", ".yml", ".toml"}

func hasConfigExt(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range configExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// resolveConfigPath searches for a config file by name in standard locations.
// Tries extensions in order: .yaml, .yml, .toml
// Tries locations in order: current directory, <user config dir>/pelitrack/
func resolveConfigPath(name string) (string, error) {
	triedPaths := make([]string, 0, len(configExtensions)*2) // 2 locations

	for _, ext := range configExtensions {
		localPath := name + ext
		if fileutil.FileExists(localPath) {
			return localPath, nil
		}
		triedPaths = append(triedPaths, localPath)
	}

	userConfigDir, err := os.UserConfigDir()
	if err == nil {
		for _, ext := range configExtensions {
			userPath := filepath.Join(userConfigDir, appDir, name+ext)
			if fileutil.FileExists(userPath) {
				return userPath, nil
			}
			triedPaths = append(triedPaths, userPath)
		}
	}

	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(triedPaths, ", "))
}
