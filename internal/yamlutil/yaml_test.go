package yamlutil_test

// Notes:
// - TestInputSizeLimit mutates MaxInputSize and cannot run in parallel.

import (
	"errors"
	"strings"
	"testing"

	"github.com/pelitrack/go-pelitrack/internal/yamlutil"
)

type testSettings struct {
	Height  string `yaml:"height"`
	Minify  bool   `yaml:"minify"`
	Workers int    `yaml:"workers"`
}

// ---------------------------------------------------------------------------
// TestUnmarshal - Parses YAML into Go structs
// ---------------------------------------------------------------------------

func TestUnmarshal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    []byte
		dest    any
		wantErr error
	}{
		{
			name: "valid YAML",
			data: []byte("height: 300px\nminify: true\nworkers: 2"),
			dest: &testSettings{},
		},
		{
			name:    "nil data",
			data:    nil,
			dest:    &testSettings{},
			wantErr: yamlutil.ErrNilData,
		},
		{
			name:    "nil destination",
			data:    []byte("height: 300px"),
			dest:    nil,
			wantErr: yamlutil.ErrNilDestination,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := yamlutil.Unmarshal(tt.data, tt.dest)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Unmarshal() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal() unexpected error: %v", err)
			}

			got := tt.dest.(*testSettings)
			if got.Height != "300px" || !got.Minify || got.Workers != 2 {
				t.Errorf("Unmarshal() = %+v", got)
			}
		})
	}
}

func TestUnmarshal_InvalidSyntax(t *testing.T) {
	t.Parallel()

	err := yamlutil.Unmarshal([]byte("height: [unclosed"), &testSettings{})
	if !errors.Is(err, yamlutil.ErrSyntax) {
		t.Fatalf("Unmarshal() error = %v, want ErrSyntax", err)
	}
}

// ---------------------------------------------------------------------------
// TestUnmarshalStrict - Rejects unknown fields
// ---------------------------------------------------------------------------

func TestUnmarshalStrict(t *testing.T) {
	t.Parallel()

	var s testSettings
	err := yamlutil.UnmarshalStrict([]byte("height: 1px\nbogus: true"), &s)
	if !errors.Is(err, yamlutil.ErrSyntax) {
		t.Fatalf("UnmarshalStrict() error = %v, want ErrSyntax", err)
	}
	if !strings.Contains(err.Error(), "bogus") {
		t.Errorf("UnmarshalStrict() error = %q, want the unknown field quoted", err)
	}

	if err := yamlutil.UnmarshalStrict([]byte("height: 1px"), &s); err != nil {
		t.Fatalf("UnmarshalStrict() unexpected error: %v", err)
	}
	if s.Height != "1px" {
		t.Errorf("Height = %q, want %q", s.Height, "1px")
	}
}

// ---------------------------------------------------------------------------
// TestUnmarshalOrdered - Keeps mapping order
// ---------------------------------------------------------------------------

func TestUnmarshalOrdered(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		data     string
		wantKeys []string
		wantErr  error
	}{
		{
			name:     "block mapping",
			data:     "simplify: error=0.01k\nnuketypes: waypoints\ndiscard: hdop=10",
			wantKeys: []string{"simplify", "nuketypes", "discard"},
		},
		{
			name:     "JSON object",
			data:     `{"nuketypes": "waypoints", "simplify": "error=0.01k"}`,
			wantKeys: []string{"nuketypes", "simplify"},
		},
		{
			name:    "sequence is not a mapping",
			data:    "- a\n- b",
			wantErr: yamlutil.ErrNotMapping,
		},
		{
			name:    "scalar is not a mapping",
			data:    "simplify",
			wantErr: yamlutil.ErrNotMapping,
		},
		{
			name:     "empty flow mapping",
			data:     "{}",
			wantKeys: []string{},
		},
		{
			name:    "empty input",
			data:    "",
			wantErr: yamlutil.ErrNilData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := yamlutil.UnmarshalOrdered([]byte(tt.data))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("UnmarshalOrdered() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("UnmarshalOrdered() unexpected error: %v", err)
			}
			if len(got) != len(tt.wantKeys) {
				t.Fatalf("got %d keys, want %d", len(got), len(tt.wantKeys))
			}
			for i, key := range tt.wantKeys {
				if got[i].Key != key {
					t.Errorf("key[%d] = %q, want %q", i, got[i].Key, key)
				}
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestInputSizeLimit - Rejects oversized input
// ---------------------------------------------------------------------------

func TestInputSizeLimit(t *testing.T) {
	// Not parallel: mutates package-level MaxInputSize.
	original := yamlutil.MaxInputSize
	yamlutil.MaxInputSize = 16
	defer func() { yamlutil.MaxInputSize = original }()

	err := yamlutil.Unmarshal([]byte("height: "+strings.Repeat("x", 32)), &testSettings{})
	if !errors.Is(err, yamlutil.ErrInputTooLarge) {
		t.Errorf("error = %v, want ErrInputTooLarge", err)
	}
}
