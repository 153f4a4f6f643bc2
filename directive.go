package pelitrack

import (
	"fmt"
	"strings"
)

// MetadataKey is the article metadata key holding the track directive.
const MetadataKey = "track"

// Directive separators.
const (
	directiveSeparator = ";"
	optionSeparator    = "=>"
)

// Track option keys accepted after the source and input type.
const (
	OptionGPXOutputPath   = "gpx_output_path"
	OptionHeight          = "height"
	OptionWidth           = "width"
	OptionProvider        = "provider"
	OptionUseGPSBabel     = "use_gpsbabel"
	OptionGPSBabelFilters = "gpsbabel_filters"
	OptionGPXOptions      = "gpx_options"
)

// TrackOption is one key=>value override from a track directive.
type TrackOption struct {
	Key   string
	Value string
}

// Directive is a parsed track metadata value:
//
//	path/to/file.fit;garmin_fit;height=>300px;provider=>+Esri.WorldImagery
type Directive struct {
	Source    string   // track file path
	InputType string   // GPSBabel input format, empty when not given
	Options   []TrackOption // in directive order
}

// ParseDirective parses a raw track metadata value.
func ParseDirective(raw string) (Directive, error) {
	parts := strings.Split(raw, directiveSeparator)

	d := Directive{Source: strings.TrimSpace(parts[0])}
	if d.Source == "" {
		return Directive{}, ErrEmptyTrackSource
	}
	if len(parts) > 1 {
		d.InputType = strings.TrimSpace(parts[1])
	}

	for _, part := range parts[min(len(parts), 2):] {
		if strings.TrimSpace(part) == "" {
			continue
		}
		key, value, ok := strings.Cut(part, optionSeparator)
		if !ok {
			return Directive{}, fmt.Errorf("%w: %q (expected key=>value)", ErrInvalidTrackOption, part)
		}
		key = strings.TrimSpace(key)
		if !isOptionKey(key) {
			return Directive{}, fmt.Errorf("%w: %q", ErrUnknownTrackOption, key)
		}
		d.Options = append(d.Options, TrackOption{Key: key, Value: strings.TrimSpace(value)})
	}

	return d, nil
}

// HasOptions reports whether the directive overrides any setting.
func (d Directive) HasOptions() bool {
	return len(d.Options) > 0
}

func isOptionKey(key string) bool {
	switch key {
	case OptionGPXOutputPath, OptionHeight, OptionWidth, OptionProvider,
		OptionUseGPSBabel, OptionGPSBabelFilters, OptionGPXOptions:
		return true
	}
	return false
}
