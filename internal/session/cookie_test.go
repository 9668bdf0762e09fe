package session

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fixedClock struct {
	current time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.current
}

func newTestManager(t *testing.T) (*CookieManager, *fixedClock) {
	t.Helper()

	clock := &fixedClock{current: time.Now().UTC().Truncate(time.Second)}
	mgr, err := NewCookieManager(CookieConfig{
		CookieName:  "test_session",
		HashKey:     []byte("12345678901234567890123456789012"),
		BlockKey:    []byte("abcdefghijklmnopqrstuv0123456789"),
		IdleTimeout: 10 * time.Minute,
		Lifetime:    2 * time.Hour,
		Now:         clock.Now,
	})
	if err != nil {
		t.Fatalf("NewCookieManager error: %v", err)
	}
	return mgr, clock
}

func TestCookieManagerRequiresHashKey(t *testing.T) {
	if _, err := NewCookieManager(CookieConfig{}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestCookieManagerAnonymousSessionIsNotWritten(t *testing.T) {
	mgr, _ := newTestManager(t)

	sess, err := mgr.Load(httptest.NewRequest(http.MethodGet, "/en/home", nil))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	rec := httptest.NewRecorder()
	if err := mgr.Save(rec, sess); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatalf("expected no cookie for anonymous session")
	}
}

func TestCookieManagerSignInLifecycle(t *testing.T) {
	mgr, clock := newTestManager(t)

	sess, _ := mgr.Load(httptest.NewRequest(http.MethodPost, "/session", nil))
	sess.SetUser(&User{UID: "user-1", Email: "member@example.com", EmailVerified: true}, clock.Now())

	rec := httptest.NewRecorder()
	if err := mgr.Save(rec, sess); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	cookie := findCookie(rec.Result().Cookies(), "test_session")
	if cookie == nil {
		t.Fatalf("expected session cookie to be set")
	}
	if !cookie.HttpOnly {
		t.Fatalf("session cookie must be http only")
	}

	clock.current = clock.current.Add(5 * time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/en/member/dashboard", nil)
	req.AddCookie(cookie)
	loaded, err := mgr.Load(req)
	if err != nil {
		t.Fatalf("Load existing error: %v", err)
	}
	if loaded.User() == nil || loaded.User().UID != "user-1" || !loaded.User().EmailVerified {
		t.Fatalf("expected user to persist, got %#v", loaded.User())
	}
	if loaded.ID() == "" {
		t.Fatalf("expected session id")
	}
}

func TestCookieManagerIdleTimeout(t *testing.T) {
	mgr, clock := newTestManager(t)

	sess := mgr.New()
	sess.SetUser(&User{UID: "user-1"}, clock.Now())
	rec := httptest.NewRecorder()
	if err := mgr.Save(rec, sess); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	cookie := findCookie(rec.Result().Cookies(), "test_session")

	clock.current = clock.current.Add(20 * time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	if _, err := mgr.Load(req); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestCookieManagerTamperedCookieIsAnonymous(t *testing.T) {
	mgr, _ := newTestManager(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "test_session", Value: "forged"})
	sess, err := mgr.Load(req)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if sess.User() != nil {
		t.Fatalf("forged cookie must not carry a user")
	}
}

func TestCookieManagerDestroy(t *testing.T) {
	mgr, _ := newTestManager(t)
	sess := mgr.New()
	sess.Destroy()
	rec := httptest.NewRecorder()
	if err := mgr.Save(rec, sess); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	cookie := findCookie(rec.Result().Cookies(), "test_session")
	if cookie == nil || cookie.MaxAge != -1 {
		t.Fatalf("expected session cookie cleared")
	}
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}
