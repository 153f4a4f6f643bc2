package pelitrack

import (
	"fmt"
	"strconv"
	"strings"
)

// providerSeparator joins provider names in a directive; a leading one appends
// to the site-wide providers instead of replacing them.
const providerSeparator = "+"

// TrackSettings is the configuration applied to one article's track.
type TrackSettings struct {
	GPXOutputPath   string
	Height          string
	Width           string
	Provider        []string
	UseGPSBabel     bool
	GPSBabelFilters Filters
	GPXOptions      string
}

// defaultTrackSettings derives the per-track defaults from the site settings.
func defaultTrackSettings(s *Settings) TrackSettings {
	return TrackSettings{
		GPXOutputPath:   s.GPXOutputPath,
		Height:          s.Height,
		Width:           s.Width,
		Provider:        append([]string(nil), s.Provider...),
		UseGPSBabel:     s.UseGPSBabel,
		GPSBabelFilters: append(Filters(nil), s.GPSBabelFilters...),
		GPXOptions:      s.GPXOptions,
	}
}

// ResolveTrackSettings overlays the directive options on the site settings.
// Later options win when a key repeats.
func ResolveTrackSettings(s *Settings, d Directive) (TrackSettings, error) {
	ts := defaultTrackSettings(s)

	for _, opt := range d.Options {
		switch opt.Key {
		case OptionGPXOutputPath:
			ts.GPXOutputPath = opt.Value
		case OptionHeight:
			ts.Height = opt.Value
		case OptionWidth:
			ts.Width = opt.Value
		case OptionGPXOptions:
			ts.GPXOptions = opt.Value
		case OptionProvider:
			ts.Provider = resolveProvider(s.Provider, opt.Value)
		case OptionUseGPSBabel:
			use, err := strconv.ParseBool(opt.Value)
			if err != nil {
				return TrackSettings{}, fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidTrackOption, opt.Key, opt.Value)
			}
			ts.UseGPSBabel = use
		case OptionGPSBabelFilters:
			filters, err := ParseFilters(opt.Value)
			if err != nil {
				return TrackSettings{}, err
			}
			ts.GPSBabelFilters = filters
		default:
			return TrackSettings{}, fmt.Errorf("%w: %q", ErrUnknownTrackOption, opt.Key)
		}
	}

	if strings.TrimSpace(ts.GPXOutputPath) == "" {
		return TrackSettings{}, ErrEmptyOutputPath
	}
	if len(ts.Provider) == 0 {
		return TrackSettings{}, ErrEmptyProvider
	}
	return ts, nil
}

// resolveProvider handles "A+B" (replace) and "+A+B" (append) forms.
func resolveProvider(global []string, value string) []string {
	if rest, ok := strings.CutPrefix(value, providerSeparator); ok {
		out := append([]string(nil), global...)
		return append(out, normalizeProvider(strings.Split(rest, providerSeparator))...)
	}
	return normalizeProvider(strings.Split(value, providerSeparator))
}
