package site

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrInvalidLang is returned for a lang value that is not a BCP 47 tag.
var ErrInvalidLang = errors.New("invalid language tag")

// CanonicalLang parses a BCP 47 tag, also accepting the POSIX "en_US"
// form, and returns its canonical spelling ("EN_us" becomes "en-US").
func CanonicalLang(raw string) (string, error) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), "_", "-")
	tag, err := language.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidLang, raw)
	}
	return tag.String(), nil
}

// titleFromName builds a title from a file name such as "col-du-galibier",
// cased by the rules of lang.
func titleFromName(name, lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.Und
	}
	words := strings.FieldsFunc(name, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	return cases.Title(tag).String(strings.Join(words, " "))
}
