package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
)

const (
	defaultCookieName  = "membersite_session"
	defaultCookiePath  = "/"
	defaultLifetime    = 14 * 24 * time.Hour
	defaultIdleTimeout = 72 * time.Hour
)

// ErrExpired indicates the stored session is no longer valid due to idle or absolute expiry.
var ErrExpired = errors.New("session expired")

// ErrInvalidConfig indicates the manager was initialised with missing or invalid options.
var ErrInvalidConfig = errors.New("session: invalid config")

// Data is the persisted cookie payload.
type Data struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	LastActive time.Time `json:"lastActive"`
	ExpiresAt  time.Time `json:"expiresAt,omitempty"`
	User       *User     `json:"user,omitempty"`
}

// Cookie holds the decoded session for one request.
type Cookie struct {
	data      Data
	dirty     bool
	destroyed bool
}

// CookieConfig controls cookie encoding and lifecycle limits.
type CookieConfig struct {
	CookieName     string
	HashKey        []byte
	BlockKey       []byte
	CookiePath     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite

	IdleTimeout time.Duration
	Lifetime    time.Duration
	Now         func() time.Time
}

// CookieManager persists signed (and optionally encrypted) session cookies.
type CookieManager struct {
	cfg   CookieConfig
	codec *securecookie.SecureCookie
	now   func() time.Time
}

// NewCookieManager constructs a CookieManager using cfg.
func NewCookieManager(cfg CookieConfig) (*CookieManager, error) {
	if len(cfg.HashKey) == 0 {
		return nil, fmt.Errorf("%w: hash key is required", ErrInvalidConfig)
	}
	if cfg.CookieName == "" {
		cfg.CookieName = defaultCookieName
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = defaultCookiePath
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = defaultLifetime
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.CookieSameSite == http.SameSiteDefaultMode {
		cfg.CookieSameSite = http.SameSiteLaxMode
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}

	codec := securecookie.New(cfg.HashKey, cfg.BlockKey)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(int(cfg.Lifetime.Seconds()))

	return &CookieManager{cfg: cfg, codec: codec, now: nowFn}, nil
}

// Name returns the cookie name.
func (m *CookieManager) Name() string { return m.cfg.CookieName }

// Load decodes the session cookie. A missing or undecodable cookie yields a
// fresh anonymous session; an expired one yields ErrExpired.
func (m *CookieManager) Load(r *http.Request) (*Cookie, error) {
	raw, err := r.Cookie(m.cfg.CookieName)
	if err != nil {
		return m.New(), nil
	}
	var stored Data
	if err := m.codec.Decode(m.cfg.CookieName, raw.Value, &stored); err != nil {
		return m.New(), nil
	}
	if m.isExpired(stored, m.now()) {
		return nil, ErrExpired
	}
	return &Cookie{data: stored}, nil
}

// New returns an anonymous session that is not written until modified.
func (m *CookieManager) New() *Cookie {
	now := m.now().UTC()
	return &Cookie{data: Data{CreatedAt: now, LastActive: now}}
}

// Save writes the session back when it changed or carries a user. Destroyed
// sessions clear the cookie.
func (m *CookieManager) Save(w http.ResponseWriter, sess *Cookie) error {
	if sess == nil {
		return errors.New("session: nil session")
	}
	if sess.destroyed {
		http.SetCookie(w, m.expiredCookie())
		return nil
	}
	if sess.data.User == nil && !sess.dirty {
		return nil
	}

	now := m.now().UTC()
	if now.After(sess.data.LastActive) {
		sess.data.LastActive = now
	}
	if sess.data.ID == "" {
		id, err := generateToken(32)
		if err != nil {
			return err
		}
		sess.data.ID = id
	}
	if sess.data.ExpiresAt.IsZero() {
		sess.data.ExpiresAt = sess.data.CreatedAt.Add(m.cfg.Lifetime).UTC()
	}

	encoded, err := m.codec.Encode(m.cfg.CookieName, sess.data)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	cookie := &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    encoded,
		Path:     m.cfg.CookiePath,
		Domain:   m.cfg.CookieDomain,
		Secure:   m.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: m.cfg.CookieSameSite,
		Expires:  sess.data.ExpiresAt,
	}
	if remaining := sess.data.ExpiresAt.Sub(now); remaining <= 0 {
		cookie.MaxAge = -1
	} else {
		cookie.MaxAge = int(remaining.Round(time.Second).Seconds())
	}
	http.SetCookie(w, cookie)
	sess.dirty = false
	return nil
}

// Destroy clears the session cookie immediately.
func (m *CookieManager) Destroy(w http.ResponseWriter) {
	http.SetCookie(w, m.expiredCookie())
}

func (m *CookieManager) isExpired(d Data, now time.Time) bool {
	now = now.UTC()
	if !d.ExpiresAt.IsZero() && now.After(d.ExpiresAt.UTC()) {
		return true
	}
	last := d.LastActive
	if last.IsZero() {
		last = d.CreatedAt
	}
	return !last.IsZero() && now.Sub(last) > m.cfg.IdleTimeout
}

func (m *CookieManager) expiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     m.cfg.CookiePath,
		Domain:   m.cfg.CookieDomain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   m.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: m.cfg.CookieSameSite,
	}
}

// ID returns the session identifier, empty until first saved.
func (s *Cookie) ID() string { return s.data.ID }

// User returns the signed-in user, if any.
func (s *Cookie) User() *User { return s.data.User }

// SetUser records a sign-in. The session restarts so a signed-in session never
// inherits an anonymous identifier.
func (s *Cookie) SetUser(user *User, now time.Time) {
	if user == nil {
		s.data.User = nil
		s.dirty = true
		return
	}
	copied := *user
	now = now.UTC()
	s.data = Data{CreatedAt: now, LastActive: now, User: &copied}
	s.dirty = true
}

// Destroy marks the session for deletion at the end of the request.
func (s *Cookie) Destroy() {
	s.destroyed = true
	s.dirty = true
}

// Destroyed exposes the destroy marker.
func (s *Cookie) Destroyed() bool { return s.destroyed }

func generateToken(length int) (string, error) {
	if length <= 0 {
		length = 32
	}
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
