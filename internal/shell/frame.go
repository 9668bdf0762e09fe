// Package shell composes the chrome around a gated page.
package shell

import (
	"strings"

	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/gate"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/routes"
)

// Layout is the outer frame a screen renders in.
type Layout int

const (
	// LayoutFull is banner, header, content, footer and toast host.
	LayoutFull Layout = iota
	// LayoutAuth is the minimal header with the language switch.
	LayoutAuth
	// LayoutMaintenance is the maintenance view with no shell at all.
	LayoutMaintenance
)

func (l Layout) String() string {
	switch l {
	case LayoutAuth:
		return "auth"
	case LayoutMaintenance:
		return "maintenance"
	default:
		return "full"
	}
}

// Frame says which chrome pieces surround the content.
type Frame struct {
	Layout    Layout
	Banner    bool
	Header    bool
	LangMenu  bool
	Footer    bool
	Toasts    bool
	BottomNav bool
}

var authResiduals = map[string]bool{
	"/signin":          true,
	"/signup":          true,
	"/forgot-password": true,
	"/reset-password":  true,
}

// IsAuthPath reports whether residual is one of the sign-in family pages.
func IsAuthPath(residual string) bool {
	return authResiduals[trimSlash(residual)]
}

// IsAdminPath reports whether residual is in the admin console.
func IsAdminPath(residual string) bool {
	residual = trimSlash(residual)
	return residual == "/admin" || strings.HasPrefix(residual, "/admin/")
}

// Decide picks the frame for a dispatched route and its gate decision.
// Auth pages win over maintenance since sign-in stays reachable.
func Decide(route *routes.Descriptor, decision gate.Decision, residual string) Frame {
	if route != nil && route.AuthPage {
		return Frame{Layout: LayoutAuth, Header: true, LangMenu: true}
	}
	if decision.Outcome == gate.Blocked && decision.State == gate.Maintenance {
		return Frame{Layout: LayoutMaintenance}
	}
	return Frame{
		Layout:    LayoutFull,
		Banner:    true,
		Header:    true,
		LangMenu:  true,
		Footer:    true,
		Toasts:    true,
		BottomNav: !IsAuthPath(residual) && !IsAdminPath(residual),
	}
}

func trimSlash(residual string) string {
	if len(residual) > 1 {
		return strings.TrimSuffix(residual, "/")
	}
	return residual
}
