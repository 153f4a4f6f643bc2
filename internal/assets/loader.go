package assets

import (
	"fmt"
	"regexp"
)

// AssetLoader loads the widget templates and page styles.
type AssetLoader interface {
	// LoadStyle loads a CSS style by name (without .css extension).
	// Returns ErrStyleNotFound if the style doesn't exist.
	LoadStyle(name string) (string, error)

	// LoadTemplate loads an HTML template by name (without .html extension).
	// Returns ErrTemplateNotFound if the template doesn't exist.
	LoadTemplate(name string) (string, error)
}

// Template and style names shipped with the binary.
const (
	WidgetTemplateName = "map"
	HeadTemplateName   = "head"
	PageTemplateName   = "page"
	DefaultStyleName   = "default"
)

// maxNameLength bounds asset names; they become file names.
const maxNameLength = 64

// Kind is a family of assets stored in one directory with one extension.
type Kind struct {
	Dir      string
	Ext      string
	notFound error
}

// Asset kinds.
var (
	KindStyle    = Kind{Dir: "styles", Ext: ".css", notFound: ErrStyleNotFound}
	KindTemplate = Kind{Dir: "templates", Ext: ".html", notFound: ErrTemplateNotFound}
)

// file is the slash path of an asset relative to a theme root.
func (k Kind) file(name string) string {
	return k.Dir + "/" + name + k.Ext
}

func (k Kind) missing(name string) error {
	return fmt.Errorf("%w: %q", k.notFound, name)
}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// ValidateAssetName accepts letters, digits, '-' and '_', not starting
// with a separator. Anything else could name a path outside the kind's
// directory or change the extension.
func ValidateAssetName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidAssetName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidAssetName, maxNameLength)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidAssetName, name)
	}
	return nil
}
