package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
)

//go:embed locales/*.json
var embedded embed.FS

// Bundle holds chrome labels for every supported language.
type Bundle struct {
	dict     map[Language]map[string]string
	fallback Language
}

// Default loads the bundle compiled into the binary.
func Default() (*Bundle, error) {
	return Load(embedded, "locales", DefaultLanguage)
}

// MustDefault is Default for package initialisation and tests.
func MustDefault() *Bundle {
	b, err := Default()
	if err != nil {
		panic(err)
	}
	return b
}

// Load reads <dir>/<lang>.json for each supported language from fsys.
func Load(fsys fs.FS, dir string, fallback Language) (*Bundle, error) {
	b := &Bundle{
		dict:     map[Language]map[string]string{},
		fallback: fallback,
	}
	for _, l := range supported {
		raw, err := fs.ReadFile(fsys, path.Join(dir, string(l)+".json"))
		if err != nil {
			// allow missing file for non-default locales
			if l == fallback {
				return nil, fmt.Errorf("load locale %s: %w", l, err)
			}
			continue
		}
		var m map[string]string
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", l, err)
		}
		b.dict[l] = m
	}
	if _, ok := b.dict[fallback]; !ok {
		return nil, fmt.Errorf("fallback locale %s not loaded", fallback)
	}
	return b, nil
}

// Fallback returns the configured fallback language.
func (b *Bundle) Fallback() Language { return b.fallback }

// T returns translation for key in lang, falling back to default and finally key.
func (b *Bundle) T(lang Language, key string) string {
	if b == nil {
		return key
	}
	if m, ok := b.dict[lang]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if m, ok := b.dict[b.fallback]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return key
}

// Translator binds the bundle to a single language.
func (b *Bundle) Translator(lang Language) func(string) string {
	return func(key string) string { return b.T(lang, key) }
}
