package i18n

import (
	"strings"

	"golang.org/x/text/language"
)

// Language is one of the closed set of site languages.
type Language string

const (
	English    Language = "en"
	Indonesian Language = "id"
)

// DefaultLanguage is used whenever no preference or prefix is available.
const DefaultLanguage = English

// HomePath is the residual path that empty residuals resolve to.
const HomePath = "/home"

var supported = []Language{English, Indonesian}

// Supported returns the site languages in display order.
func Supported() []Language {
	return append([]Language(nil), supported...)
}

// ParseLanguage reports whether s names a supported language. Matching is exact,
// so "EN" or "en-US" are not language segments.
func ParseLanguage(s string) (Language, bool) {
	for _, l := range supported {
		if string(l) == s {
			return l, true
		}
	}
	return "", false
}

func (l Language) String() string { return string(l) }

// Tag returns the BCP 47 tag for the language.
func (l Language) Tag() language.Tag {
	switch l {
	case Indonesian:
		return language.Indonesian
	default:
		return language.English
	}
}

// LanguageOf inspects the first segment of p.
func LanguageOf(p string) (Language, bool) {
	if !strings.HasPrefix(p, "/") {
		return "", false
	}
	return ParseLanguage(firstSegment(p))
}

// StripLanguage removes leading language segments. Paths without one are
// returned unchanged, so stripping a residual path is a no-op.
func StripLanguage(p string) string {
	for {
		lang, ok := LanguageOf(p)
		if !ok {
			return p
		}
		p = strings.TrimPrefix(p, "/"+string(lang))
		if p == "" {
			return "/"
		}
	}
}

// WithLanguage builds the canonical path for residual in lang.
func WithLanguage(lang Language, residual string) string {
	if _, ok := ParseLanguage(string(lang)); !ok {
		lang = DefaultLanguage
	}
	residual = strings.TrimSpace(residual)
	if residual != "" && !strings.HasPrefix(residual, "/") {
		residual = "/" + residual
	}
	residual = StripLanguage(residual)
	if residual == "" || residual == "/" {
		residual = HomePath
	}
	return "/" + string(lang) + residual
}

// LangPath is the helper pages use to build internal links.
func LangPath(lang Language, residual string) string {
	return WithLanguage(lang, residual)
}

func firstSegment(p string) string {
	p = strings.TrimPrefix(p, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return p
}
