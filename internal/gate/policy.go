// Package gate decides whether a dispatched page may render.
package gate

import (
	"sort"
	"strings"

	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/rbac"
)

// Kind identifies a gate. Gates always run in Kind order, whatever order a
// route declares them in.
type Kind int

const (
	KindMaintenance Kind = iota
	KindSession
	KindEmailVerified
	KindProfileComplete
	KindRole
	KindAdminAllowList
)

func (k Kind) String() string {
	switch k {
	case KindMaintenance:
		return "maintenance"
	case KindSession:
		return "session"
	case KindEmailVerified:
		return "email_verified"
	case KindProfileComplete:
		return "profile_complete"
	case KindRole:
		return "role"
	case KindAdminAllowList:
		return "admin_allow_list"
	default:
		return "unknown"
	}
}

// RoleVariant selects what a failed role check does.
type RoleVariant int

const (
	// MessagingRoleGate renders the needs-role blocked view.
	MessagingRoleGate RoleVariant = iota
	// RedirectingRoleGate renders nothing and redirects to the language home.
	RedirectingRoleGate
)

func (v RoleVariant) String() string {
	if v == RedirectingRoleGate {
		return "redirecting"
	}
	return "messaging"
}

// Policy is the gate requirement a route declares. Maintenance is
// process-wide and never part of a policy.
type Policy struct {
	Gates       []Kind
	Roles       rbac.Roles
	RoleVariant RoleVariant
}

// Public requires nothing beyond the maintenance check.
func Public() Policy { return Policy{} }

// RequireSession admits any signed-in visitor.
func RequireSession() Policy {
	return Policy{Gates: []Kind{KindSession}}
}

// RequireVerified admits signed-in visitors with a verified email.
func RequireVerified() Policy {
	return Policy{Gates: []Kind{KindSession, KindEmailVerified}}
}

// RequireVerifiedAndComplete is the member-area policy.
func RequireVerifiedAndComplete() Policy {
	return Policy{Gates: []Kind{KindSession, KindEmailVerified, KindProfileComplete}}
}

// RequireRole admits signed-in visitors whose role is in roles.
func RequireRole(variant RoleVariant, roles ...rbac.Role) Policy {
	return Policy{
		Gates:       []Kind{KindSession, KindRole},
		Roles:       rbac.NormaliseRoles(rbac.Roles(roles).Strings()),
		RoleVariant: variant,
	}
}

// RequireAdminConsole is the admin-console policy: role check with the
// redirecting variant plus the allow-list.
func RequireAdminConsole(roles ...rbac.Role) Policy {
	p := RequireRole(RedirectingRoleGate, roles...)
	p.Gates = append(p.Gates, KindAdminAllowList)
	return p
}

// Compose merges policies. Gates are unioned, roles are unioned, and the
// redirecting variant wins if any policy asks for it.
func Compose(policies ...Policy) Policy {
	var out Policy
	seen := map[Kind]bool{}
	var roles []string
	for _, p := range policies {
		for _, k := range p.Gates {
			if !seen[k] {
				seen[k] = true
				out.Gates = append(out.Gates, k)
			}
		}
		roles = append(roles, p.Roles.Strings()...)
		if p.RoleVariant == RedirectingRoleGate {
			out.RoleVariant = RedirectingRoleGate
		}
	}
	out.Roles = rbac.NormaliseRoles(roles)
	sort.Slice(out.Gates, func(i, j int) bool { return out.Gates[i] < out.Gates[j] })
	return out
}

// Requires reports whether the policy opts into gate k.
func (p Policy) Requires(k Kind) bool {
	for _, g := range p.Gates {
		if g == k {
			return true
		}
	}
	return false
}

// NeedsProfile reports whether evaluating the policy reads the profile.
func (p Policy) NeedsProfile() bool {
	return p.Requires(KindEmailVerified) || p.Requires(KindProfileComplete) || p.Requires(KindRole)
}

// Gated reports whether the policy requires any per-route gate.
func (p Policy) Gated() bool { return len(p.Gates) > 0 }

func (p Policy) String() string {
	if !p.Gated() {
		return "public"
	}
	parts := make([]string, 0, len(p.Gates))
	for _, k := range p.Gates {
		parts = append(parts, k.String())
	}
	s := strings.Join(parts, "+")
	if p.Requires(KindRole) {
		s += "(" + strings.Join(p.Roles.Strings(), ",") + ";" + p.RoleVariant.String() + ")"
	}
	return s
}
