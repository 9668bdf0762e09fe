package middleware

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/observability"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/session"
)

const (
	// ReasonMissingToken indicates an auth attempt without credentials.
	ReasonMissingToken = "missing_token"
	// ReasonTokenInvalid indicates a malformed or invalid token.
	ReasonTokenInvalid = "token_invalid"
	// ReasonTokenExpired indicates an expired token which may be recoverable.
	ReasonTokenExpired = "token_expired"
)

// Authenticate verifies a bearer ID token for requests the session cookie
// did not already sign in. A bad token never fails the request: the visitor
// continues anonymously and the gates decide.
func Authenticate(verifier session.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := session.UserFromContext(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}
			token := parseBearerToken(r.Header.Get("Authorization"))
			if token == "" {
				token = cookieToken(r)
			}
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := verifier.Verify(r.Context(), token)
			if err != nil || user == nil {
				observability.FromContext(r.Context()).Warn("auth failure",
					zap.String("reason", AuthFailureReason(err)),
					zap.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}
			ctx := session.ContextWithToken(r.Context(), token)
			ctx = session.ContextWithUser(ctx, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthFailureReason maps a verifier error onto its reason code.
func AuthFailureReason(err error) string {
	switch {
	case errors.Is(err, session.ErrMissingToken):
		return ReasonMissingToken
	case errors.Is(err, session.ErrTokenExpired):
		return ReasonTokenExpired
	default:
		return ReasonTokenInvalid
	}
}

func parseBearerToken(header string) string {
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// cookieToken reads a raw ID token cookie. The __session cookie holds the
// encoded session, not a token, so it is not a candidate.
func cookieToken(r *http.Request) string {
	for _, name := range []string{"idToken", "IDToken"} {
		if c, err := r.Cookie(name); err == nil {
			if value := strings.TrimSpace(c.Value); value != "" {
				return value
			}
		}
	}
	return ""
}
