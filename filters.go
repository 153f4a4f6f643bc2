package pelitrack

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/pelitrack/go-pelitrack/internal/yamlutil"
)

// Filter is a single GPSBabel filter, passed as "-x name,options".
type Filter struct {
	Name    string
	Options string
}

// Arg returns the value following -x on the GPSBabel command line.
func (f Filter) Arg() string {
	if f.Options == "" {
		return f.Name
	}
	return f.Name + "," + f.Options
}

// Filters is an ordered filter list. GPSBabel applies filters in command-line
// order, so the order given by the user is kept.
type Filters []Filter

// ParseFilters decodes a JSON or YAML flow mapping such as
// {"simplify": "error=0.01k", "nuketypes": "waypoints"} into Filters.
func ParseFilters(raw string) (Filters, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty value", ErrInvalidFilters)
	}

	pairs, err := yamlutil.UnmarshalOrdered([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilters, err)
	}

	filters := make(Filters, 0, len(pairs))
	for _, kv := range pairs {
		f, err := NewFilter(kv.Key, kv.Value)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, nil
}

// NewFilter builds a filter from a decoded name and options value. Options
// must be a scalar or null.
func NewFilter(name string, options any) (Filter, error) {
	if name == "" {
		return Filter{}, fmt.Errorf("%w: empty filter name", ErrInvalidFilters)
	}
	opts, ok := scalarString(options)
	if !ok {
		return Filter{}, fmt.Errorf("%w: options of %q must be a string, got %T", ErrInvalidFilters, name, options)
	}
	return Filter{Name: name, Options: opts}, nil
}

// String renders the filters the way they appear on the command line.
func (fs Filters) String() string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = f.Arg()
	}
	return strings.Join(parts, " ")
}

// scalarString formats a scalar filter option. Mappings and sequences have
// no command-line form.
func scalarString(v any) (string, bool) {
	if v == nil {
		return "", true
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return fmt.Sprint(v), true
	}
	return "", false
}
