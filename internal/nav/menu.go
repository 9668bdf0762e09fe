package nav

import (
	"strings"

	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/i18n"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/rbac"
)

// Item represents a navigation entry on a residual path.
type Item struct {
	Path       string // residual, e.g. "/news"
	LabelKey   string // i18n key, e.g. "nav.news"
	Capability rbac.Capability
	// Signed restricts the item to signed-in visitors.
	Signed bool
	// Anonymous restricts the item to signed-out visitors.
	Anonymous bool
}

// RenderedItem is a view model for templates.
type RenderedItem struct {
	Href     string
	LabelKey string
	Active   bool
}

// Crumb represents a breadcrumb entry. If LabelKey is empty, use Label.
type Crumb struct {
	Href     string
	LabelKey string
	Label    string
	Active   bool
}

// Viewer is what menus need to know about the visitor.
type Viewer struct {
	SignedIn bool
	Role     string
}

// Main is the header navigation definition.
var Main = []Item{
	{Path: "/home", LabelKey: "nav.home"},
	{Path: "/news", LabelKey: "nav.news"},
	{Path: "/announcements", LabelKey: "nav.announcements"},
	{Path: "/marketplace", LabelKey: "nav.marketplace"},
	{Path: "/about", LabelKey: "nav.about"},
	{Path: "/member/dashboard", LabelKey: "nav.dashboard", Signed: true, Capability: rbac.CapMemberArea},
	{Path: "/moderator/queue", LabelKey: "nav.moderation", Signed: true, Capability: rbac.CapModeration},
	{Path: "/admin/control", LabelKey: "nav.admin", Signed: true, Capability: rbac.CapAdminConsole},
	{Path: "/signin", LabelKey: "nav.signin", Anonymous: true},
}

// Bottom is the mobile bottom bar.
var Bottom = []Item{
	{Path: "/home", LabelKey: "nav.home"},
	{Path: "/news", LabelKey: "nav.news"},
	{Path: "/marketplace", LabelKey: "nav.marketplace"},
	{Path: "/member/dashboard", LabelKey: "nav.dashboard", Signed: true},
	{Path: "/signin", LabelKey: "nav.signin", Anonymous: true},
}

// Build renders the header menu for canonical in its language. An item is
// active only on an exact canonical match.
func Build(canonical string, viewer Viewer) []RenderedItem {
	return render(Main, canonical, viewer)
}

// BuildBottom renders the bottom bar for canonical.
func BuildBottom(canonical string, viewer Viewer) []RenderedItem {
	return render(Bottom, canonical, viewer)
}

func render(menu []Item, canonical string, viewer Viewer) []RenderedItem {
	lang, ok := i18n.LanguageOf(canonical)
	if !ok {
		lang = i18n.DefaultLanguage
	}
	items := make([]RenderedItem, 0, len(menu))
	for _, it := range menu {
		if !visible(it, viewer) {
			continue
		}
		href := i18n.WithLanguage(lang, it.Path)
		items = append(items, RenderedItem{
			Href:     href,
			LabelKey: it.LabelKey,
			Active:   isActive(href, canonical),
		})
	}
	return items
}

func visible(it Item, viewer Viewer) bool {
	if it.Signed && !viewer.SignedIn {
		return false
	}
	if it.Anonymous && viewer.SignedIn {
		return false
	}
	if it.Capability != "" && !rbac.HasCapability(viewer.Role, it.Capability) {
		return false
	}
	return true
}

func isActive(href, canonical string) bool {
	return href == strings.TrimSuffix(canonical, "/") || href == canonical
}

// Breadcrumbs builds breadcrumb entries for a canonical path.
// Rules:
// - Always start with the language home
// - For known top-level sections, use nav label keys
// - For deeper segments, use a prettified segment label
func Breadcrumbs(canonical string) []Crumb {
	lang, ok := i18n.LanguageOf(canonical)
	if !ok {
		lang = i18n.DefaultLanguage
	}
	home := i18n.WithLanguage(lang, i18n.HomePath)
	residual := strings.TrimSuffix(i18n.StripLanguage(canonical), "/")
	crumbs := []Crumb{{Href: home, LabelKey: "nav.home", Active: residual == "" || residual == i18n.HomePath}}
	if residual == "" || residual == i18n.HomePath {
		return crumbs
	}

	parts := strings.Split(strings.TrimPrefix(residual, "/"), "/")
	href := "/" + string(lang)
	for i, part := range parts {
		if part == "" {
			continue
		}
		href += "/" + part
		crumb := Crumb{Href: href, Label: titleFromSegment(part), Active: i == len(parts)-1}
		if i == 0 {
			for _, it := range Main {
				if it.Path == "/"+part {
					crumb.LabelKey = it.LabelKey
					break
				}
			}
		}
		crumbs = append(crumbs, crumb)
	}
	return crumbs
}

func titleFromSegment(seg string) string {
	if seg == "" {
		return seg
	}
	s := strings.ReplaceAll(seg, "-", " ")
	s = strings.ReplaceAll(s, "_", " ")
	r := []rune(s)
	// ASCII only is sufficient for slugs here
	if r[0] >= 'a' && r[0] <= 'z' {
		r[0] -= 'a' - 'A'
	}
	return string(r)
}
