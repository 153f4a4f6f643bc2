package pipeline

import "strings"

// SanitizeCSS escapes sequences that could break out of a <style> block.
func SanitizeCSS(css string) string {
	return strings.ReplaceAll(css, "</", `<\/`)
}
