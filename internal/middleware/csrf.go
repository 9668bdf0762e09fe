package middleware

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"
)

// CSRFFormField is the hidden form field carrying the token.
const CSRFFormField = "csrf_token"

const csrfTokenBytes = 32

// CSRFConfig controls cookie/header behaviour.
type CSRFConfig struct {
	CookieName string
	CookiePath string
	HeaderName string
	MaxAge     time.Duration
	Secure     bool
}

func (c CSRFConfig) withDefaults() CSRFConfig {
	if c.CookieName == "" {
		c.CookieName = "membersite_csrf"
	}
	if c.HeaderName == "" {
		c.HeaderName = "X-CSRF-Token"
	}
	if c.CookiePath == "" {
		c.CookiePath = "/"
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 24 * time.Hour
	}
	return c
}

// CSRF attaches double-submit cookie protection. Every request gets a token;
// unsafe methods must echo it in the header (htmx) or the form field (plain
// forms).
func CSRF(cfg CSRFConfig) func(http.Handler) http.Handler {
	cfg = cfg.withDefaults()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := cfg.token(w, r)
			if err != nil {
				WriteError(w, r, http.StatusInternalServerError, "csrf token error")
				return
			}
			if !safeMethod(r.Method) && !cfg.echoed(r, token) {
				WriteError(w, r, http.StatusForbidden, "invalid CSRF token")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfContextKey, token)))
		})
	}
}

// CSRFTokenFromContext returns the token issued for the current request.
func CSRFTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(csrfContextKey).(string)
	return token
}

// token reuses the cookie value or issues a fresh one.
func (c CSRFConfig) token(w http.ResponseWriter, r *http.Request) (string, error) {
	if existing, err := r.Cookie(c.CookieName); err == nil && existing.Value != "" {
		return existing.Value, nil
	}
	raw := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("csrf: generate token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	http.SetCookie(w, &http.Cookie{
		Name:     c.CookieName,
		Value:    token,
		Path:     c.CookiePath,
		HttpOnly: true,
		Secure:   c.Secure || r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(c.MaxAge / time.Second),
	})
	return token, nil
}

func (c CSRFConfig) echoed(r *http.Request, token string) bool {
	submitted := r.Header.Get(c.HeaderName)
	if submitted == "" {
		submitted = r.PostFormValue(CSRFFormField)
	}
	return submitted != "" && subtle.ConstantTimeCompare([]byte(submitted), []byte(token)) == 1
}

func safeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead ||
		method == http.MethodOptions || method == http.MethodTrace
}
