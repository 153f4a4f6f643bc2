package assets

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed styles templates
var embedded embed.FS

// EmbeddedLoader loads the assets compiled into the binary.
type EmbeddedLoader struct {
	fsys fs.FS
}

// NewEmbeddedLoader creates an EmbeddedLoader.
func NewEmbeddedLoader() *EmbeddedLoader {
	return &EmbeddedLoader{fsys: embedded}
}

// LoadStyle loads an embedded CSS style by name.
func (e *EmbeddedLoader) LoadStyle(name string) (string, error) {
	return e.load(KindStyle, name)
}

// LoadTemplate loads an embedded HTML template by name.
func (e *EmbeddedLoader) LoadTemplate(name string) (string, error) {
	return e.load(KindTemplate, name)
}

func (e *EmbeddedLoader) load(kind Kind, name string) (string, error) {
	if err := ValidateAssetName(name); err != nil {
		return "", err
	}
	content, err := fs.ReadFile(e.fsys, kind.file(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", kind.missing(name)
		}
		return "", fmt.Errorf("%w: %v", ErrAssetRead, err)
	}
	return string(content), nil
}

// Names lists the embedded assets of a kind, sorted.
func (e *EmbeddedLoader) Names(kind Kind) []string {
	entries, err := fs.ReadDir(e.fsys, kind.Dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, entry := range entries {
		if name, ok := strings.CutSuffix(entry.Name(), kind.Ext); ok && !entry.IsDir() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// EmbeddedStyles lists the style names built into the binary.
func EmbeddedStyles() []string {
	return NewEmbeddedLoader().Names(KindStyle)
}

// Compile-time interface check.
var _ AssetLoader = (*EmbeddedLoader)(nil)
