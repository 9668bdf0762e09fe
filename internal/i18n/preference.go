package i18n

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/observability"
)

const (
	defaultPreferenceCookie = "membersite_lang"
	preferenceMaxAge        = 365 * 24 * time.Hour
)

// Preference is the user's last explicitly chosen language.
type Preference interface {
	Preferred() Language
	SetPreferred(Language)
}

// MemoryPreference keeps the preference in process memory.
type MemoryPreference struct {
	mu   sync.RWMutex
	lang Language
}

// NewMemoryPreference returns a preference seeded with lang.
func NewMemoryPreference(lang Language) *MemoryPreference {
	if _, ok := ParseLanguage(string(lang)); !ok {
		lang = DefaultLanguage
	}
	return &MemoryPreference{lang: lang}
}

func (m *MemoryPreference) Preferred() Language {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lang
}

func (m *MemoryPreference) SetPreferred(lang Language) {
	if _, ok := ParseLanguage(string(lang)); !ok {
		return
	}
	m.mu.Lock()
	m.lang = lang
	m.mu.Unlock()
}

// CookieConfig controls the preference cookie.
type CookieConfig struct {
	Name     string
	HashKey  []byte
	BlockKey []byte
	Secure   bool
}

// CookiePreferences persists the preference in a signed cookie.
type CookiePreferences struct {
	name    string
	secure  bool
	codec   *securecookie.SecureCookie
	matcher language.Matcher
}

// NewCookiePreferences builds the cookie-backed store. HashKey is required by securecookie.
func NewCookiePreferences(cfg CookieConfig) *CookiePreferences {
	name := cfg.Name
	if name == "" {
		name = defaultPreferenceCookie
	}
	codec := securecookie.New(cfg.HashKey, cfg.BlockKey)
	codec.MaxAge(int(preferenceMaxAge.Seconds()))
	return &CookiePreferences{
		name:    name,
		secure:  cfg.Secure,
		codec:   codec,
		matcher: newMatcher(),
	}
}

// Bind returns the preference for a single request/response pair.
func (c *CookiePreferences) Bind(w http.ResponseWriter, r *http.Request) Preference {
	return &cookiePreference{store: c, w: w, r: r}
}

// Read decodes the stored preference. Missing or tampered cookies fall back to
// Accept-Language and finally the default language.
func (c *CookiePreferences) Read(r *http.Request) (Language, bool) {
	if cookie, err := r.Cookie(c.name); err == nil {
		var raw string
		if err := c.codec.Decode(c.name, cookie.Value, &raw); err == nil {
			if lang, ok := ParseLanguage(raw); ok {
				return lang, true
			}
		}
	}
	return c.acceptLanguage(r.Header.Get("Accept-Language")), false
}

// newMatcher matches Accept-Language against the supported languages in
// display order, so match indexes line up with Supported.
func newMatcher() language.Matcher {
	tags := make([]language.Tag, 0, len(supported))
	for _, l := range supported {
		tags = append(tags, l.Tag())
	}
	return language.NewMatcher(tags)
}

func (c *CookiePreferences) acceptLanguage(header string) Language {
	if header == "" {
		return DefaultLanguage
	}
	prefs, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(prefs) == 0 {
		return DefaultLanguage
	}
	_, idx, conf := c.matcher.Match(prefs...)
	if conf == language.No || idx < 0 || idx >= len(supported) {
		return DefaultLanguage
	}
	return supported[idx]
}

func (c *CookiePreferences) write(w http.ResponseWriter, lang Language) error {
	encoded, err := c.codec.Encode(c.name, string(lang))
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(preferenceMaxAge.Seconds()),
	})
	return nil
}

type cookiePreference struct {
	store *CookiePreferences
	w     http.ResponseWriter
	r     *http.Request
	once  sync.Once
	lang  Language
}

func (p *cookiePreference) Preferred() Language {
	p.once.Do(func() {
		if p.lang == "" {
			p.lang, _ = p.store.Read(p.r)
		}
	})
	return p.lang
}

func (p *cookiePreference) SetPreferred(lang Language) {
	if _, ok := ParseLanguage(string(lang)); !ok {
		return
	}
	p.once.Do(func() {})
	p.lang = lang
	// the previous cookie stays in place; reads fail open
	if err := p.store.write(p.w, lang); err != nil {
		observability.FromContext(p.r.Context()).Warn("language preference not saved",
			zap.String("lang", string(lang)),
			zap.Error(err),
		)
	}
}
