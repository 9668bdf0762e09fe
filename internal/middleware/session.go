package middleware

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/observability"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/session"
)

// SessionStore abstracts the cookie manager for middleware integration.
type SessionStore interface {
	Load(*http.Request) (*session.Cookie, error)
	New() *session.Cookie
	Save(http.ResponseWriter, *session.Cookie) error
	Destroy(http.ResponseWriter)
}

// Session attaches the decoded session cookie to the request context, puts
// its user where the session source reads it, and persists changes before
// the response header is written.
func Session(store SessionStore) func(http.Handler) http.Handler {
	if store == nil {
		panic("session store is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := observability.FromContext(r.Context())
			sess, err := store.Load(r)
			if errors.Is(err, session.ErrExpired) {
				logger.Info("session expired: resetting")
				store.Destroy(w)
				sess = store.New()
			} else if err != nil || sess == nil {
				if err != nil {
					logger.Warn("session load failed", zap.Error(err))
				}
				sess = store.New()
			}

			ctx := context.WithValue(r.Context(), cookieContextKey, sess)
			if user := sess.User(); user != nil {
				ctx = session.ContextWithUser(ctx, user)
			}
			sw := &sessionWriter{ResponseWriter: w, save: func() {
				if err := store.Save(w, sess); err != nil {
					logger.Error("session save failed", zap.Error(err))
				}
			}}
			next.ServeHTTP(sw, r.WithContext(ctx))
			sw.flush()
		})
	}
}

// SessionFromContext retrieves the session attached to this request.
func SessionFromContext(ctx context.Context) (*session.Cookie, bool) {
	if ctx == nil {
		return nil, false
	}
	sess, ok := ctx.Value(cookieContextKey).(*session.Cookie)
	return sess, ok && sess != nil
}

type sessionWriter struct {
	http.ResponseWriter
	once sync.Once
	save func()
}

func (s *sessionWriter) flush() { s.once.Do(s.save) }

func (s *sessionWriter) WriteHeader(status int) {
	s.flush()
	s.ResponseWriter.WriteHeader(status)
}

func (s *sessionWriter) Write(b []byte) (int, error) {
	s.flush()
	return s.ResponseWriter.Write(b)
}

func (s *sessionWriter) Unwrap() http.ResponseWriter { return s.ResponseWriter }
