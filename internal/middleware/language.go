package middleware

import (
	"context"
	"net/http"

	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/i18n"
)

// PreferenceBinder binds the language preference store to one request.
type PreferenceBinder interface {
	Bind(w http.ResponseWriter, r *http.Request) i18n.Preference
}

// Language binds the visitor's language preference to the request and
// advertises the content language.
func Language(prefs PreferenceBinder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			pref := prefs.Bind(w, r)
			ctx := context.WithValue(r.Context(), prefContextKey, pref)
			r = r.WithContext(ctx)
			w.Header().Add("Vary", "Accept-Language")
			w.Header().Add("Vary", "Cookie")
			w.Header().Set("Content-Language", string(RequestLanguage(r)))
			next.ServeHTTP(w, r)
		})
	}
}

// PreferenceFromContext returns the bound preference, or nil.
func PreferenceFromContext(ctx context.Context) i18n.Preference {
	pref, _ := ctx.Value(prefContextKey).(i18n.Preference)
	return pref
}

// RequestLanguage is the path's language, then the stored preference, then
// the default.
func RequestLanguage(r *http.Request) i18n.Language {
	if lang, ok := i18n.LanguageOf(r.URL.Path); ok {
		return lang
	}
	if pref := PreferenceFromContext(r.Context()); pref != nil {
		return pref.Preferred()
	}
	return i18n.DefaultLanguage
}
