package httpserver_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/gate"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/httpserver"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/i18n"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/metrics"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/routes"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/session"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/settings"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/testutil"
)

const (
	csrfCookie = "membersite_csrf"
	csrfToken  = "test-csrf-token"
)

var hashKey = []byte("0123456789abcdef0123456789abcdef")

type harness struct {
	handler  http.Handler
	registry *prometheus.Registry
	dir      *session.StaticDirectory
	sessions *session.CookieManager
}

type options struct {
	settings settings.AppSettings
	profiles session.ProfileStore
	gateWait time.Duration
	table    func([]routes.Descriptor) []routes.Descriptor
}

type option func(*options)

func withMaintenance(message string) option {
	return func(o *options) {
		o.settings = settings.AppSettings{MaintenanceMode: true, MaintenanceMessage: message}
	}
}

func withProfiles(p session.ProfileStore, wait time.Duration) option {
	return func(o *options) {
		o.profiles = p
		o.gateWait = wait
	}
}

func withTable(fn func([]routes.Descriptor) []routes.Descriptor) option {
	return func(o *options) { o.table = fn }
}

func fixtures() *session.StaticDirectory {
	complete := func(uid, name, role string) session.Profile {
		return session.Profile{
			UID:             uid,
			FullName:        name,
			Phone:           "+62 812 0000",
			MessagingHandle: "@" + uid,
			City:            "Jakarta",
			Role:            role,
		}
	}
	return session.NewStaticDirectory(session.Fixtures{
		Users: []session.User{
			{UID: "ayu", Email: "ayu@example.com", EmailVerified: true},
			{UID: "budi", Email: "budi@example.com"},
			{UID: "sari", Email: "sari@example.com", EmailVerified: true},
		},
		Profiles: []session.Profile{
			complete("ayu", "Ayu Lestari", "member"),
			complete("sari", "Sari Dewi", "admin"),
		},
		Admins: []string{"sari"},
	})
}

func newHarness(t *testing.T, opts ...option) *harness {
	t.Helper()

	o := options{gateWait: time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	dir := fixtures()
	var profiles session.ProfileStore = dir
	if o.profiles != nil {
		profiles = o.profiles
	}
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	watcher := settings.NewWatcher(settings.Static(o.settings))
	watcher.Load(context.Background())

	cookies, err := session.NewCookieManager(session.CookieConfig{CookieName: "__session", HashKey: hashKey})
	require.NoError(t, err)

	table := routes.Table(routes.Deps{Members: dir})
	if o.table != nil {
		table = o.table(table)
	}
	srv, err := httpserver.New(httpserver.Config{GateWait: o.gateWait}, httpserver.Deps{
		Table:       table,
		Resolver:    gate.NewResolver(session.ContextSource{}, profiles, dir, m),
		Settings:    watcher,
		Sessions:    cookies,
		Verifier:    dir,
		Preferences: i18n.NewCookiePreferences(i18n.CookieConfig{HashKey: hashKey}),
		Members:     dir,
		Metrics:     m,
		Gatherer:    registry,
	})
	require.NoError(t, err)
	return &harness{handler: srv.Handler(), registry: registry, dir: dir, sessions: cookies}
}

type request struct {
	method  string
	target  string
	uid     string
	htmx    bool
	form    url.Values
	headers map[string]string
	cookies []*http.Cookie
}

func (h *harness) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()

	method := req.method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if req.form != nil {
		body = strings.NewReader(req.form.Encode())
	}
	r := httptest.NewRequest(method, req.target, body)
	if req.form != nil {
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if req.uid != "" {
		r.Header.Set("Authorization", "Bearer "+session.DebugTokenPrefix+req.uid)
	}
	if req.htmx {
		r.Header.Set("HX-Request", "true")
	}
	for k, v := range req.headers {
		r.Header.Set(k, v)
	}
	for _, c := range req.cookies {
		r.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, r)
	return rr
}

func document(t *testing.T, rr *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	return testutil.ParseHTML(t, rr.Body.Bytes())
}

func cookieNamed(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func csrf() *http.Cookie {
	return &http.Cookie{Name: csrfCookie, Value: csrfToken}
}

// heldProfiles answers profile reads only after release is closed.
type heldProfiles struct {
	inner   session.ProfileStore
	release chan struct{}
}

func (h heldProfiles) Profile(ctx context.Context, uid string) (*session.Profile, error) {
	select {
	case <-h.release:
		return h.inner.Profile(ctx, uid)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
