package assets

import "errors"

// AssetResolver tries each layer in order, usually a theme directory then
// the embedded assets. Only a not-found error moves on to the next layer;
// invalid names and read errors are returned as is.
type AssetResolver struct {
	layers []AssetLoader
	theme  *ThemeLoader
}

// NewAssetResolver creates an AssetResolver. An empty themeDir means
// embedded assets only.
func NewAssetResolver(themeDir string) (*AssetResolver, error) {
	r := &AssetResolver{}
	if themeDir != "" {
		theme, err := NewThemeLoader(themeDir)
		if err != nil {
			return nil, err
		}
		r.theme = theme
		r.layers = append(r.layers, theme)
	}
	r.layers = append(r.layers, NewEmbeddedLoader())
	return r, nil
}

// LoadStyle loads a CSS style from the first layer that has it.
func (r *AssetResolver) LoadStyle(name string) (string, error) {
	return r.first(func(l AssetLoader) (string, error) { return l.LoadStyle(name) })
}

// LoadTemplate loads an HTML template from the first layer that has it.
func (r *AssetResolver) LoadTemplate(name string) (string, error) {
	return r.first(func(l AssetLoader) (string, error) { return l.LoadTemplate(name) })
}

func (r *AssetResolver) first(load func(AssetLoader) (string, error)) (string, error) {
	var err error
	for _, layer := range r.layers {
		var content string
		content, err = load(layer)
		if err == nil {
			return content, nil
		}
		if !errors.Is(err, ErrStyleNotFound) && !errors.Is(err, ErrTemplateNotFound) {
			return "", err
		}
	}
	return "", err
}

// ThemeDir returns the theme directory, or "" for embedded assets only.
func (r *AssetResolver) ThemeDir() string {
	if r.theme == nil {
		return ""
	}
	return r.theme.Dir()
}

// Compile-time interface check.
var _ AssetLoader = (*AssetResolver)(nil)
