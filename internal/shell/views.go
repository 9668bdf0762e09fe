package shell

import (
	"context"
	"io"
	"net/url"

	"github.com/a-h/templ"

	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/gate"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/i18n"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/nav"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/settings"
)

// LoadingPollDelay is how long the placeholder waits before asking again.
const LoadingPollDelay = "750ms"

// htmlWriter keeps the first write error so markup reads top to bottom.
type htmlWriter struct {
	ctx context.Context
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *htmlWriter) attr(name, value string) {
	h.raw(" " + name + `="` + templ.EscapeString(value) + `"`)
}

func (h *htmlWriter) render(c templ.Component) {
	if h.err == nil && c != nil {
		h.err = c.Render(h.ctx, h.w)
	}
}

func component(fn func(h *htmlWriter)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{ctx: ctx, w: w}
		fn(h)
		return h.err
	})
}

// LoadingView is the placeholder shown while gate facts are pending. It polls
// canonical until the screen settles.
func LoadingView(t func(string) string, canonical string) templ.Component {
	return component(func(h *htmlWriter) {
		h.raw(`<div class="loading" role="status"`)
		h.attr("hx-get", canonical)
		h.attr("hx-trigger", "load delay:"+LoadingPollDelay)
		h.attr("hx-target", nav.AppTarget)
		h.attr("hx-select", nav.AppTarget)
		h.attr("hx-swap", "outerHTML")
		h.raw(">")
		h.text(t("loading"))
		h.raw("</div>")
	})
}

// BlockedView explains why the page is withheld and offers its one way
// forward.
func BlockedView(t func(string) string, d gate.Decision) templ.Component {
	return component(func(h *htmlWriter) {
		h.raw(`<section class="blocked"`)
		h.attr("data-state", d.State.String())
		h.raw(`><p class="blocked-message">`)
		h.text(t(d.State.MessageKey()))
		h.raw("</p>")
		if d.Action != "" {
			h.render(nav.TextLink(d.Action, "cta", t(d.State.MessageKey()+".cta")))
		}
		h.raw("</section>")
	})
}

// MaintenanceView renders the operator message, or the stock notice when the
// message is empty or cannot be rendered.
func MaintenanceView(t func(string) string, message string) templ.Component {
	return component(func(h *htmlWriter) {
		h.raw(`<main id="maintenance" class="maintenance"><h1>`)
		h.text(t("maintenance.title"))
		h.raw(`</h1><div class="maintenance-message">`)
		rendered, err := settings.RenderMessage(message)
		if err != nil || rendered == "" {
			h.raw("<p>")
			h.text(t("maintenance.default"))
			h.raw("</p>")
		} else {
			h.render(templ.Raw(rendered))
		}
		h.raw("</div></main>")
	})
}

// ErrorView is the last-resort reload prompt. The reload link is a plain
// anchor so the browser starts over with a full load.
func ErrorView(t func(string) string, reload string) templ.Component {
	return component(func(h *htmlWriter) {
		h.raw(`<section class="error" role="alert"><h1>`)
		h.text(t("error.title"))
		h.raw(`</h1><a class="reload"`)
		h.attr("href", reload)
		h.raw(">")
		h.text(t("error.reload"))
		h.raw("</a></section>")
	})
}

// LanguageSwitchHref is the endpoint that persists lang and returns to the
// same page in that language.
func LanguageSwitchHref(lang i18n.Language, canonical string) string {
	return "/lang/" + string(lang) + "?from=" + url.QueryEscape(canonical)
}

func languageMenu(t func(string) string, canonical string) templ.Component {
	current, _ := i18n.LanguageOf(canonical)
	return component(func(h *htmlWriter) {
		h.raw(`<nav class="lang-switch"`)
		h.attr("aria-label", t("nav.language"))
		h.raw(">")
		for _, lang := range i18n.Supported() {
			class := "lang"
			if lang == current {
				class = "lang active"
			}
			h.render(nav.TextLink(LanguageSwitchHref(lang, canonical), class, string(lang)))
		}
		h.raw("</nav>")
	})
}

func menu(class string, t func(string) string, items []nav.RenderedItem) templ.Component {
	return component(func(h *htmlWriter) {
		h.raw("<ul")
		h.attr("class", class)
		h.raw(">")
		for _, it := range items {
			cls := "nav-item"
			if it.Active {
				cls = "nav-item active"
			}
			h.raw("<li>")
			h.render(nav.TextLink(it.Href, cls, t(it.LabelKey)))
			h.raw("</li>")
		}
		h.raw("</ul>")
	})
}

func breadcrumbs(t func(string) string, canonical string) templ.Component {
	crumbs := nav.Breadcrumbs(canonical)
	if len(crumbs) < 2 {
		return nil
	}
	return component(func(h *htmlWriter) {
		h.raw(`<nav class="breadcrumbs"><ol>`)
		for _, c := range crumbs {
			label := c.Label
			if c.LabelKey != "" {
				label = t(c.LabelKey)
			}
			if c.Active {
				h.raw(`<li aria-current="page">`)
				h.text(label)
				h.raw("</li>")
				continue
			}
			h.raw("<li>")
			h.render(nav.TextLink(c.Href, "", label))
			h.raw("</li>")
		}
		h.raw("</ol></nav>")
	})
}

func signOutForm(t func(string) string, csrfToken string) templ.Component {
	return component(func(h *htmlWriter) {
		h.raw(`<form class="signout" method="post" action="/session/signout"><input type="hidden" name="csrf_token"`)
		h.attr("value", csrfToken)
		h.raw(`><button type="submit">`)
		h.text(t("nav.signout"))
		h.raw("</button></form>")
	})
}
