package httpserver_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/require"

	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/httpserver"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/pages"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/routes"
)

func TestNonCanonicalFullLoadRedirects(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	tests := []struct {
		name    string
		target  string
		headers map[string]string
		want    string
	}{
		{name: "missing language", target: "/news", want: "/en/news"},
		{name: "accept-language decides first visit", target: "/news", headers: map[string]string{"Accept-Language": "id-ID,id;q=0.9"}, want: "/id/news"},
		{name: "query survives", target: "/news?page=2", want: "/en/news?page=2"},
		{name: "bare language gets home", target: "/id", want: "/id/home"},
		{name: "root", target: "/", want: "/en/home"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rr := h.do(t, request{target: tc.target, headers: tc.headers})
			require.Equal(t, http.StatusFound, rr.Code)
			require.Equal(t, tc.want, rr.Header().Get("Location"))
		})
	}
}

func TestHTMXRewriteReplacesURL(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	rr := h.do(t, request{target: "/news", htmx: true})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "/en/news", rr.Header().Get("HX-Replace-Url"))
	require.Empty(t, rr.Header().Get("HX-Push-Url"))

	doc := document(t, rr)
	require.Zero(t, doc.Find("html head").Children().Length())
	require.Equal(t, "news", doc.Find("#app").AttrOr("data-route", ""))
}

func TestHTMXNavigationRewritePushes(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	rr := h.do(t, request{
		target:  "/news",
		htmx:    true,
		headers: map[string]string{"HX-Current-URL": "http://example.com/en/home"},
	})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "/en/news", rr.Header().Get("HX-Push-Url"))
	require.Empty(t, rr.Header().Get("HX-Replace-Url"))

	// refreshing the page it is already on keeps a single entry
	rr = h.do(t, request{
		target:  "/news",
		htmx:    true,
		headers: map[string]string{"HX-Current-URL": "http://example.com/news"},
	})
	require.Equal(t, "/en/news", rr.Header().Get("HX-Replace-Url"))
	require.Empty(t, rr.Header().Get("HX-Push-Url"))
}

func TestCanonicalPageRendersDocument(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	rr := h.do(t, request{target: "/id/about"})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "id", rr.Header().Get("Content-Language"))
	require.Equal(t, "no-store, max-age=0", rr.Header().Get("Cache-Control"))

	doc := document(t, rr)
	require.Equal(t, "Tentang kami · TPC Global", doc.Find("title").Text())
	require.Equal(t, "about", doc.Find("#app").AttrOr("data-route", ""))
}

func TestUnknownPathIsSoftNotFound(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	rr := h.do(t, request{target: "/en/does/not/exist"})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "home", document(t, rr).Find("#app").AttrOr("data-route", ""))
}

func TestGatedScreens(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	t.Run("anonymous member page asks to sign in", func(t *testing.T) {
		doc := document(t, h.do(t, request{target: "/en/member/dashboard"}))
		blocked := doc.Find("section.blocked")
		require.Equal(t, "needs-login", blocked.AttrOr("data-state", ""))
		require.Equal(t, "/en/signin", blocked.Find("a").AttrOr("href", ""))
		require.Zero(t, doc.Find("section.page").Length())
	})

	t.Run("unverified member is sent to verification", func(t *testing.T) {
		doc := document(t, h.do(t, request{target: "/en/member/dashboard", uid: "budi"}))
		require.Equal(t, "/en/member/verify-email", doc.Find("section.blocked a").AttrOr("href", ""))
	})

	t.Run("complete member sees the dashboard", func(t *testing.T) {
		doc := document(t, h.do(t, request{target: "/en/member/dashboard", uid: "ayu"}))
		require.Equal(t, "Ayu Lestari", doc.Find("section.page .greeting").Text())
	})

	t.Run("moderation shows the needs-role message", func(t *testing.T) {
		doc := document(t, h.do(t, request{target: "/en/moderator/queue", uid: "ayu"}))
		require.Equal(t, "needs-role", doc.Find("section.blocked").AttrOr("data-state", ""))
	})

	t.Run("console redirects members home", func(t *testing.T) {
		rr := h.do(t, request{target: "/id/admin/control", uid: "ayu"})
		require.Equal(t, http.StatusSeeOther, rr.Code)
		require.Equal(t, "/id/home", rr.Header().Get("Location"))
	})

	t.Run("console redirect over htmx pushes home", func(t *testing.T) {
		rr := h.do(t, request{target: "/id/admin/control", uid: "ayu", htmx: true})
		require.Equal(t, http.StatusOK, rr.Code)
		require.Equal(t, "/id/home", rr.Header().Get("HX-Push-Url"))
		require.Equal(t, "home", document(t, rr).Find("#app").AttrOr("data-route", ""))
	})

	t.Run("allow-listed admin reaches the console", func(t *testing.T) {
		rr := h.do(t, request{target: "/en/admin/control", uid: "sari"})
		require.Equal(t, http.StatusOK, rr.Code)
		doc := document(t, rr)
		require.Equal(t, "admin-control", doc.Find("#app").AttrOr("data-route", ""))
		require.Equal(t, "render", doc.Find("#app").AttrOr("data-outcome", ""))
		require.Zero(t, doc.Find(".bottom-nav").Length())
	})
}

func TestSlowFactsRenderPollingPlaceholder(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	h := newHarness(t, withProfiles(heldProfiles{inner: fixtures(), release: release}, 50*time.Millisecond))

	rr := h.do(t, request{target: "/en/member/dashboard", uid: "ayu"})
	require.Equal(t, http.StatusOK, rr.Code)
	doc := document(t, rr)
	require.Equal(t, "/en/member/dashboard", doc.Find(".loading").AttrOr("hx-get", ""))
	require.Zero(t, doc.Find("section.page").Length())
}

func TestMaintenance(t *testing.T) {
	t.Parallel()

	h := newHarness(t, withMaintenance("Back at **noon**"))

	rr := h.do(t, request{target: "/en/news"})
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	doc := document(t, rr)
	require.Equal(t, "noon", doc.Find("#maintenance strong").Text())
	require.Zero(t, doc.Find("header").Length())

	signin := h.do(t, request{target: "/en/signin"})
	require.Equal(t, http.StatusOK, signin.Code)
	require.Equal(t, "auth", document(t, signin).Find("#app").AttrOr("data-layout", ""))

	htmx := h.do(t, request{target: "/en/news", htmx: true})
	require.Equal(t, http.StatusOK, htmx.Code)
}

func TestLanguageSwitch(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	rr := h.do(t, request{target: "/lang/id?from=" + url.QueryEscape("/en/news/abc")})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, "/id/news/abc", rr.Header().Get("Location"))
	pref := cookieNamed(rr, "membersite_lang")
	require.NotNil(t, pref)

	// the stored preference now decides unprefixed paths
	next := h.do(t, request{target: "/news", cookies: []*http.Cookie{pref}})
	require.Equal(t, "/id/news", next.Header().Get("Location"))

	htmx := h.do(t, request{target: "/lang/en?from=" + url.QueryEscape("/id/about"), htmx: true})
	require.Equal(t, http.StatusOK, htmx.Code)
	var location map[string]string
	require.NoError(t, json.Unmarshal([]byte(htmx.Header().Get("HX-Location")), &location))
	require.Equal(t, "/en/about", location["path"])
	require.Equal(t, "#app", location["target"])

	offsite := h.do(t, request{target: "/lang/id?from=" + url.QueryEscape("//evil.example/x")})
	require.Equal(t, "/id/home", offsite.Header().Get("Location"))

	unknown := h.do(t, request{target: "/lang/fr?from=/en/home"})
	require.Equal(t, http.StatusNotFound, unknown.Code)
}

func TestSignInAndOut(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	rejected := h.do(t, request{
		method: http.MethodPost,
		target: "/session",
		form:   url.Values{"idToken": {"debug:ayu"}},
	})
	require.Equal(t, http.StatusForbidden, rejected.Code)

	bad := h.do(t, request{
		method:  http.MethodPost,
		target:  "/session",
		form:    url.Values{"csrf_token": {csrfToken}, "idToken": {"forged"}},
		cookies: []*http.Cookie{csrf()},
	})
	require.Equal(t, http.StatusUnauthorized, bad.Code)
	require.Nil(t, cookieNamed(bad, "__session"))

	rr := h.do(t, request{
		method:  http.MethodPost,
		target:  "/session",
		form:    url.Values{"csrf_token": {csrfToken}, "idToken": {"debug:ayu"}, "from": {"/id/member/dashboard"}},
		cookies: []*http.Cookie{csrf()},
	})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, "/id/member/dashboard", rr.Header().Get("Location"))
	sess := cookieNamed(rr, "__session")
	require.NotNil(t, sess)

	dashboard := h.do(t, request{target: "/id/member/dashboard", cookies: []*http.Cookie{sess}})
	doc := document(t, dashboard)
	require.Equal(t, "Ayu Lestari", doc.Find(".greeting").Text())
	require.Equal(t, 1, doc.Find("form.signout").Length())

	out := h.do(t, request{
		method:  http.MethodPost,
		target:  "/session/signout",
		form:    url.Values{"csrf_token": {csrfToken}},
		cookies: []*http.Cookie{sess, csrf()},
	})
	require.Equal(t, http.StatusSeeOther, out.Code)
	require.Equal(t, "/en/home", out.Header().Get("Location"))
	cleared := cookieNamed(out, "__session")
	require.NotNil(t, cleared)
	require.Less(t, cleared.MaxAge, 0)
}

func TestSignInOverHTMXUsesHXRedirect(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	rr := h.do(t, request{
		method:  http.MethodPost,
		target:  "/session",
		htmx:    true,
		form:    url.Values{"csrf_token": {csrfToken}, "idToken": {"debug:ayu"}, "from": {"/en/signin"}},
		cookies: []*http.Cookie{csrf()},
	})
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, "/en/member/dashboard", rr.Header().Get("HX-Redirect"))
}

func TestAPIGates(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	anon := h.do(t, request{target: "/api/session"})
	require.Equal(t, http.StatusSeeOther, anon.Code)
	require.Equal(t, "/en/signin", anon.Header().Get("Location"))

	me := h.do(t, request{target: "/api/session", uid: "budi"})
	require.Equal(t, http.StatusOK, me.Code)
	var user struct {
		UID string `json:"uid"`
	}
	require.NoError(t, json.Unmarshal(me.Body.Bytes(), &user))
	require.Equal(t, "budi", user.UID)

	unverified := h.do(t, request{target: "/api/profile", uid: "budi"})
	require.Equal(t, "/en/member/verify-email", unverified.Header().Get("Location"))

	profile := h.do(t, request{target: "/api/profile", uid: "ayu"})
	require.Equal(t, http.StatusOK, profile.Code)
	require.Contains(t, profile.Body.String(), `"complete":true`)

	forbidden := h.do(t, request{target: "/api/admin/members", uid: "ayu"})
	require.Equal(t, http.StatusForbidden, forbidden.Code)

	members := h.do(t, request{target: "/api/admin/members", uid: "sari"})
	require.Equal(t, http.StatusOK, members.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(members.Body.Bytes(), &list))
	require.Len(t, list, 2)
}

func TestOperationalEndpoints(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	health := h.do(t, request{target: "/healthz"})
	require.Equal(t, http.StatusOK, health.Code)
	require.JSONEq(t, `{"status":"ok","settings":"loaded"}`, health.Body.String())

	h.do(t, request{target: "/en/home"})
	m := h.do(t, request{target: "/metrics"})
	require.Equal(t, http.StatusOK, m.Code)
	require.Contains(t, m.Body.String(), `membersite_gate_decisions_total{outcome="render",state="none"}`)

	css := h.do(t, request{target: "/static/app.css"})
	require.Equal(t, http.StatusOK, css.Code)
	require.Contains(t, css.Header().Get("Content-Type"), "text/css")
}

func TestPanicRendersReloadPrompt(t *testing.T) {
	t.Parallel()

	h := newHarness(t, withTable(func(table []routes.Descriptor) []routes.Descriptor {
		for i := range table {
			if table[i].Name == "about" {
				table[i].Page = func(pages.Context) templ.Component {
					return templ.ComponentFunc(func(context.Context, io.Writer) error {
						panic("boom")
					})
				}
			}
		}
		return table
	}))

	rr := h.do(t, request{target: "/en/about"})
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	doc := document(t, rr)
	require.Equal(t, "/en/about", doc.Find("a.reload").AttrOr("href", ""))
	require.Zero(t, doc.Find("section.page").Length())
}

func TestNewRejectsBrokenTable(t *testing.T) {
	t.Parallel()

	_, err := httpserver.New(httpserver.Config{}, httpserver.Deps{Table: []routes.Descriptor{}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "route table")
}
