package shell

import (
	"github.com/a-h/templ"

	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/app"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/gate"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/i18n"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/nav"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/pages"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/rbac"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/session"
)

// Assets locates the static files the document head links.
type Assets struct {
	Stylesheet string
	HTMX       string
}

// DefaultAssets serves the stylesheet locally and htmx from its CDN.
var DefaultAssets = Assets{
	Stylesheet: "/static/app.css",
	HTMX:       "https://unpkg.com/htmx.org@2.0.3",
}

// View is everything needed to compose one screen.
type View struct {
	Screen app.Screen
	Bundle *i18n.Bundle
	// User is the request's signed-in user when the screen did not fetch one.
	User      *session.User
	CSRFToken string
	Assets    Assets
}

func (v View) lang() i18n.Language {
	if _, ok := i18n.ParseLanguage(string(v.Screen.Lang)); ok {
		return v.Screen.Lang
	}
	return i18n.DefaultLanguage
}

func (v View) t() func(string) string {
	return v.Bundle.Translator(v.lang())
}

func (v View) user() *session.User {
	if u := v.Screen.Facts.Session.User; u != nil {
		return u
	}
	return v.User
}

func (v View) viewer() nav.Viewer {
	viewer := nav.Viewer{SignedIn: v.user() != nil}
	if p := v.Screen.Facts.Profile.Profile; p != nil {
		viewer.Role = p.Role
	} else if viewer.SignedIn {
		// menus only; the gate still decides
		viewer.Role = string(rbac.RoleMember)
	}
	return viewer
}

// Frame is the chrome decision for the view.
func (v View) Frame() Frame {
	return Decide(v.Screen.Route(), v.Screen.Decision, v.Screen.Residual)
}

// Title is the document title.
func (v View) Title() string {
	t := v.t()
	site := t("site.name")
	route := v.Screen.Route()
	if route == nil || route.TitleKey == "" {
		return site
	}
	if v.Frame().Layout == LayoutMaintenance {
		return t("maintenance.title") + " · " + site
	}
	return t(route.TitleKey) + " · " + site
}

// Content is the gated body: the page itself only when the chain allowed it.
func (v View) Content() templ.Component {
	t := v.t()
	d := v.Screen.Decision
	switch d.Outcome {
	case gate.Render:
		route := v.Screen.Route()
		if route == nil || route.Page == nil {
			return nil
		}
		return route.Page(pages.Context{
			Lang:      v.lang(),
			Canonical: v.Screen.Canonical,
			Residual:  v.Screen.Residual,
			Params:    v.Screen.Match.Params,
			T:         t,
			User:      v.user(),
			Profile:   v.Screen.Facts.Profile.Profile,
			CSRFToken: v.CSRFToken,
		})
	case gate.Loading:
		return LoadingView(t, v.Screen.Canonical)
	case gate.Blocked:
		if d.State == gate.Maintenance {
			return MaintenanceView(t, d.Message)
		}
		return BlockedView(t, d)
	default:
		// redirecting role gate renders nothing
		return nil
	}
}

// App renders the swap target: the whole visible page inside #app.
func App(v View) templ.Component {
	t := v.t()
	frame := v.Frame()
	canonical := v.Screen.Canonical
	return component(func(h *htmlWriter) {
		h.raw(`<div id="app"`)
		h.attr("data-layout", frame.Layout.String())
		if route := v.Screen.Route(); route != nil {
			h.attr("data-route", route.Name)
		}
		h.attr("data-outcome", v.Screen.Decision.Outcome.String())
		h.raw(">")

		if frame.Layout == LayoutMaintenance {
			h.render(v.Content())
			h.raw("</div>")
			return
		}

		if frame.Banner {
			h.raw(`<div class="banner" role="note">`)
			h.text(t("banner.text"))
			h.raw("</div>")
		}
		if frame.Header {
			h.raw(`<header class="site-header">`)
			h.render(nav.TextLink(i18n.WithLanguage(v.lang(), i18n.HomePath), "brand", t("site.name")))
			if frame.Layout == LayoutFull {
				h.raw(`<nav class="main-nav">`)
				h.render(menu("menu", t, nav.Build(canonical, v.viewer())))
				h.raw("</nav>")
				if v.user() != nil {
					h.render(signOutForm(t, v.CSRFToken))
				}
			}
			if frame.LangMenu {
				h.render(languageMenu(t, canonical))
			}
			h.raw("</header>")
		}

		h.raw(`<main id="content" class="content">`)
		if frame.Layout == LayoutFull {
			h.render(breadcrumbs(t, canonical))
		}
		h.render(v.Content())
		h.raw("</main>")

		if frame.Footer {
			lang := v.lang()
			h.raw(`<footer class="legal">`)
			h.render(nav.TextLink(i18n.WithLanguage(lang, "/legal/terms"), "", t("footer.terms")))
			h.render(nav.TextLink(i18n.WithLanguage(lang, "/legal/privacy"), "", t("footer.privacy")))
			h.raw(`<small>`)
			h.text(t("footer.copyright"))
			h.raw("</small></footer>")
		}
		if frame.Toasts {
			h.raw(`<div id="toasts" class="toast-host" aria-live="polite"></div>`)
		}
		if frame.BottomNav {
			h.raw(`<nav class="bottom-nav" style="padding-bottom: env(safe-area-inset-bottom)">`)
			h.render(menu("menu", t, nav.BuildBottom(canonical, v.viewer())))
			h.raw("</nav>")
		}
		h.raw("</div>")
	})
}

// Document renders a full HTML page around App for non-htmx loads.
func Document(v View) templ.Component {
	return page(v.lang(), v.Title(), v.Assets, App(v))
}

// ErrorDocument is the recovery page. It carries no chrome.
func ErrorDocument(bundle *i18n.Bundle, lang i18n.Language, reload string, assets Assets) templ.Component {
	t := bundle.Translator(lang)
	body := component(func(h *htmlWriter) {
		h.raw(`<div id="app" data-layout="error">`)
		h.render(ErrorView(t, reload))
		h.raw("</div>")
	})
	return page(lang, t("error.title")+" · "+t("site.name"), assets, body)
}

func page(lang i18n.Language, title string, assets Assets, body templ.Component) templ.Component {
	if assets == (Assets{}) {
		assets = DefaultAssets
	}
	return component(func(h *htmlWriter) {
		h.raw("<!DOCTYPE html><html")
		h.attr("lang", string(lang))
		h.raw(`><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1, viewport-fit=cover"><title>`)
		h.text(title)
		h.raw(`</title><link rel="stylesheet"`)
		h.attr("href", assets.Stylesheet)
		h.raw(`><script defer`)
		h.attr("src", assets.HTMX)
		h.raw("></script></head><body>")
		h.render(body)
		h.raw("</body></html>")
	})
}
