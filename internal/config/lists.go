package config

import (
	"fmt"

	"github.com/pelitrack/go-pelitrack"
	"github.com/pelitrack/go-pelitrack/internal/yamlutil"
)

// StringList accepts a single YAML string or a list of strings.
type StringList []string

// UnmarshalYAML implements goccy/go-yaml's BytesUnmarshaler.
func (l *StringList) UnmarshalYAML(data []byte) error {
	var list []string
	if err := yamlutil.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}
	var single string
	if err := yamlutil.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("want a string or a list of strings: %w", err)
	}
	*l = StringList{single}
	return nil
}

// FilterEntry is one GPSBabel filter in list form.
type FilterEntry struct {
	Name    string `yaml:"name" toml:"name"`
	Options string `yaml:"options" toml:"options"`
}

// FilterList keeps GPSBabel filters in file order. YAML accepts a mapping
// (name: options) or a list of {name, options}; TOML uses an array of tables.
// A nil list means "not configured"; an empty one disables filtering.
type FilterList []FilterEntry

// UnmarshalYAML implements goccy/go-yaml's BytesUnmarshaler.
func (l *FilterList) UnmarshalYAML(data []byte) error {
	if pairs, err := yamlutil.UnmarshalOrdered(data); err == nil {
		out := make(FilterList, 0, len(pairs))
		for _, kv := range pairs {
			f, err := pelitrack.NewFilter(kv.Key, kv.Value)
			if err != nil {
				return err
			}
			out = append(out, FilterEntry{Name: f.Name, Options: f.Options})
		}
		*l = out
		return nil
	}

	var entries []FilterEntry
	if err := yamlutil.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("want a mapping or a list of {name, options}: %w", err)
	}
	if entries == nil {
		entries = []FilterEntry{}
	}
	*l = entries
	return nil
}

// Filters converts the list to the pipeline type.
func (l FilterList) Filters() pelitrack.Filters {
	out := make(pelitrack.Filters, len(l))
	for i, e := range l {
		out[i] = pelitrack.Filter{Name: e.Name, Options: e.Options}
	}
	return out
}
