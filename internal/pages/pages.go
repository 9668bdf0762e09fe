// Package pages holds the page bodies the dispatcher hands to the shell.
// Content is deliberately thin: data-driven pages live behind the remote
// data service.
package pages

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/i18n"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/nav"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/session"
)

// Context is what a page factory receives.
type Context struct {
	Lang      i18n.Language
	Canonical string
	Residual  string
	// Params holds captured segments, verbatim.
	Params  map[string]string
	T       func(string) string
	User    *session.User
	Profile *session.Profile
	// CSRFToken is embedded in forms that post back.
	CSRFToken string
}

// Param returns a captured segment.
func (c Context) Param(name string) string {
	return c.Params[name]
}

// Href builds an in-app link in the page language.
func (c Context) Href(residual string) string {
	return i18n.LangPath(c.Lang, residual)
}

func (c Context) t(key string) string {
	if c.T == nil {
		return key
	}
	return c.T(key)
}

// Factory builds a page body.
type Factory func(Context) templ.Component

// Titled renders a page with its heading and a short lead.
func Titled(titleKey string) Factory {
	return func(c Context) templ.Component {
		return section(c.t(titleKey), nil)
	}
}

// Home is the landing page.
func Home(c Context) templ.Component {
	return section(c.t("page.home.title"), templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<ul class="home-links">`); err != nil {
			return err
		}
		for _, residual := range []string{"/news", "/announcements", "/marketplace"} {
			label := c.t("nav." + strings.TrimPrefix(residual, "/"))
			if _, err := io.WriteString(w, "<li>"); err != nil {
				return err
			}
			if err := nav.TextLink(c.Href(residual), "", label).Render(ctx, w); err != nil {
				return err
			}
			if _, err := io.WriteString(w, "</li>"); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "</ul>")
		return err
	}))
}

// Captured renders a detail page that shows which record it was asked for.
// The value is passed through untouched; lookups validate it.
func Captured(titleKey, param string) Factory {
	return func(c Context) templ.Component {
		value := c.Param(param)
		return section(c.t(titleKey), text("p", "record", value))
	}
}

// SignIn renders the ID-token exchange form.
func SignIn(c Context) templ.Component {
	return section(c.t("page.signin.title"), templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<form method="post" action="/session" hx-post="/session" data-lang="%s"><input type="hidden" name="csrf_token" value="%s"><input type="hidden" name="idToken" value=""><input type="hidden" name="from" value="%s"><button type="submit">%s</button></form>`,
			templ.EscapeString(string(c.Lang)),
			templ.EscapeString(c.CSRFToken),
			templ.EscapeString(c.Href("/member/dashboard")),
			templ.EscapeString(c.t("nav.signin")),
		)
		return err
	}))
}

// VerifyEmail tells the member where the verification mail went.
func VerifyEmail(c Context) templ.Component {
	email := ""
	if c.User != nil {
		email = c.User.Email
	}
	return section(c.t("page.verify_email.title"), text("p", "email", email))
}

// CompleteProfile lists the required fields still missing.
func CompleteProfile(c Context) templ.Component {
	missing := session.MissingFields(c.Profile)
	return section(c.t("page.complete_profile.title"), templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<ul class="missing-fields">`); err != nil {
			return err
		}
		for _, f := range missing {
			if _, err := fmt.Fprintf(w, `<li data-field="%s">%s</li>`, templ.EscapeString(f), templ.EscapeString(f)); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "</ul>")
		return err
	}))
}

// Dashboard greets the member.
func Dashboard(c Context) templ.Component {
	name := ""
	if c.Profile != nil {
		name = c.Profile.FullName
	}
	return section(c.t("page.member_dashboard.title"), text("p", "greeting", name))
}

func section(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<section class="page"><h1>`+templ.EscapeString(title)+`</h1>`); err != nil {
			return err
		}
		if body != nil {
			if err := body.Render(ctx, w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "</section>")
		return err
	})
}

func text(tag, class, value string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<%s class="%s">%s</%s>`, tag, class, templ.EscapeString(value), tag)
		return err
	})
}
