// Package yamlutil decodes the YAML of config files and of gpsbabel_filters
// directive values through goccy/go-yaml.
package yamlutil

import (
	"errors"
	"fmt"

	"github.com/goccy/go-yaml"
)

// MaxInputSize bounds the accepted document size.
var MaxInputSize = 1 << 20

var (
	ErrNilData        = errors.New("yamlutil: nil or empty data")
	ErrNilDestination = errors.New("yamlutil: nil destination pointer")
	ErrInputTooLarge  = errors.New("yamlutil: input exceeds maximum size")
	ErrNotMapping     = errors.New("yamlutil: input is not a mapping")
	ErrSyntax         = errors.New("yamlutil: invalid document")
)

// KeyValue is one mapping entry, in document order.
type KeyValue struct {
	Key   string
	Value any
}

// Unmarshal decodes data into v. Unknown fields are ignored.
func Unmarshal(data []byte, v any) error {
	return decode(data, v)
}

// UnmarshalStrict decodes data into v and rejects unknown fields. The error
// quotes the offending source line.
func UnmarshalStrict(data []byte, v any) error {
	return decode(data, v, yaml.Strict())
}

// UnmarshalOrdered decodes a top-level mapping, keeping key order. A JSON
// object is a valid flow mapping, so directive values may use either form.
func UnmarshalOrdered(data []byte) ([]KeyValue, error) {
	var ms yaml.MapSlice
	if err := decode(data, &ms, yaml.UseOrderedMap()); err != nil {
		if errors.Is(err, ErrSyntax) {
			return nil, fmt.Errorf("%w: %v", ErrNotMapping, err)
		}
		return nil, err
	}

	pairs := make([]KeyValue, len(ms))
	for i, item := range ms {
		pairs[i] = KeyValue{Key: fmt.Sprint(item.Key), Value: item.Value}
	}
	return pairs, nil
}

func decode(data []byte, v any, opts ...yaml.DecodeOption) error {
	switch {
	case len(data) == 0:
		return ErrNilData
	case len(data) > MaxInputSize:
		return fmt.Errorf("%w: %d bytes (max %d)", ErrInputTooLarge, len(data), MaxInputSize)
	case v == nil:
		return ErrNilDestination
	}

	if err := yaml.UnmarshalWithOptions(data, v, opts...); err != nil {
		return fmt.Errorf("%w: %s", ErrSyntax, yaml.FormatError(err, false, true))
	}
	return nil
}
