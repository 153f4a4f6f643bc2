package pelitrack

import (
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/pelitrack/go-pelitrack/internal/fileutil"
)

// onlineScriptLocations are the CDN URLs used for the "online" location.
var onlineScriptLocations = map[string]string{
	ScriptLeafletJS:   "https://unpkg.com/leaflet@1.7.1/dist/leaflet.js",
	ScriptLeafletCSS:  "https://unpkg.com/leaflet@1.7.1/dist/leaflet.css",
	ScriptGPXJS:       "https://cdnjs.cloudflare.com/ajax/libs/leaflet-gpx/1.7.0/gpx.min.js",
	ScriptProvidersJS: "http://leaflet-extras.github.io/leaflet-providers/leaflet-providers.js",
}

// themeScriptLocations are paths below the theme's static directory.
var themeScriptLocations = map[string]string{
	ScriptLeafletJS:   "js/leaflet.js",
	ScriptLeafletCSS:  "css/leaflet.css",
	ScriptGPXJS:       "js/gpx.min.js",
	ScriptProvidersJS: "js/leaflet-providers.js",
}

// ResolveScriptLocations turns the configured script locations into the
// URLs emitted in page heads. Unset keys fall back to the theme copy.
func (s *Settings) ResolveScriptLocations(logger *slog.Logger) (map[string]string, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	merged := DefaultScriptLocations()
	for key, value := range s.ScriptLocations {
		if !isScriptKey(key) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownScriptKey, key)
		}
		merged[key] = value
	}

	resolved := make(map[string]string, len(merged))
	for _, key := range scriptKeys {
		value := strings.TrimSpace(merged[key])
		switch value {
		case LocationOnline:
			if key == ScriptProvidersJS {
				logger.Warn("leaflet-providers.js is not meant to be loaded from its demo site; host it yourself",
					slog.String("script", key))
			}
			resolved[key] = onlineScriptLocations[key]
			continue
		case LocationTheme, "":
			value = path.Join(filepath.ToSlash(s.ThemeStaticDir), themeScriptLocations[key])
		}
		resolved[key] = s.PublicURL(value)
	}

	logger.Debug("resolved script locations", slog.Any("locations", resolved))
	return resolved, nil
}

// PublicURL converts a site-relative path into the URL used in pages.
// With RelativeURLs the slash path is returned as-is; otherwise relative
// paths are resolved against SiteURL. URLs and absolute paths pass through.
func (s *Settings) PublicURL(p string) string {
	p = filepath.ToSlash(p)
	if fileutil.IsURL(p) || s.RelativeURLs || strings.HasPrefix(p, "/") || s.SiteURL == "" {
		return p
	}

	base, err := url.Parse(strings.TrimSuffix(s.SiteURL, "/") + "/")
	if err != nil {
		return strings.TrimSuffix(s.SiteURL, "/") + "/" + p
	}
	ref, err := url.Parse(p)
	if err != nil {
		return strings.TrimSuffix(s.SiteURL, "/") + "/" + p
	}
	return base.ResolveReference(ref).String()
}
