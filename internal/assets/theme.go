package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ThemeLoader loads assets from a theme directory on disk.
type ThemeLoader struct {
	dir string
}

// NewThemeLoader creates a ThemeLoader for dir.
// Returns ErrInvalidBasePath unless dir is a readable directory.
func NewThemeLoader(dir string) (*ThemeLoader, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidBasePath)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBasePath, err)
	}

	root, err := os.OpenRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBasePath, err)
	}
	defer root.Close()
	if _, err := fs.ReadDir(root.FS(), "."); err != nil {
		return nil, fmt.Errorf("%w: cannot read directory: %v", ErrInvalidBasePath, err)
	}

	return &ThemeLoader{dir: abs}, nil
}

// Dir returns the absolute theme directory.
func (t *ThemeLoader) Dir() string {
	return t.dir
}

// LoadStyle reads {dir}/styles/{name}.css.
func (t *ThemeLoader) LoadStyle(name string) (string, error) {
	return t.load(KindStyle, name)
}

// LoadTemplate reads {dir}/templates/{name}.html.
func (t *ThemeLoader) LoadTemplate(name string) (string, error) {
	return t.load(KindTemplate, name)
}

// load reads through an os.Root so neither the name nor a symlink can
// reach outside the theme directory.
func (t *ThemeLoader) load(kind Kind, name string) (string, error) {
	if err := ValidateAssetName(name); err != nil {
		return "", err
	}

	root, err := os.OpenRoot(t.dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAssetRead, err)
	}
	defer root.Close()

	content, err := root.ReadFile(filepath.FromSlash(kind.file(name)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", kind.missing(name)
		}
		return "", fmt.Errorf("%w: %s: %v", ErrAssetRead, kind.file(name), err)
	}
	return string(content), nil
}

// Compile-time interface check.
var _ AssetLoader = (*ThemeLoader)(nil)
