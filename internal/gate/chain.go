package gate

import (
	"fmt"
	"strings"

	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/i18n"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/rbac"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/session"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/settings"
)

// SessionStatus is the tri-state session answer.
type SessionStatus int

const (
	SessionLoading SessionStatus = iota
	SessionAbsent
	SessionPresent
)

func (s SessionStatus) String() string {
	switch s {
	case SessionAbsent:
		return "absent"
	case SessionPresent:
		return "present"
	default:
		return "loading"
	}
}

// SessionFact is what the provider said about the session.
type SessionFact struct {
	Status SessionStatus
	User   *session.User
	Err    error
}

// ProfileFact is the profile lookup for a present session. Done is false
// while the lookup is in flight.
type ProfileFact struct {
	Done    bool
	Profile *session.Profile
	Err     error
}

// AdminFact is the allow-list lookup for a present session.
type AdminFact struct {
	Done    bool
	Allowed bool
	Err     error
}

// Facts is everything the chain reads. The chain never mutates them.
type Facts struct {
	Settings settings.State
	Session  SessionFact
	Profile  ProfileFact
	Admin    AdminFact
}

// Input is one evaluation: the route's policy at a canonical location.
type Input struct {
	Lang     i18n.Language
	Residual string
	Policy   Policy
	Facts    Facts
}

// MaintenanceExempt reports whether residual stays reachable during
// maintenance: admin-prefixed paths and sign-in.
func MaintenanceExempt(residual string) bool {
	if residual != "/" {
		residual = strings.TrimSuffix(residual, "/")
	}
	return residual == "/signin" || residual == "/admin" || strings.HasPrefix(residual, "/admin/")
}

// Evaluate runs the gates in their fixed order; the first blocking condition
// wins. Indeterminate or failed reads never render protected content.
func Evaluate(in Input) Decision {
	f := in.Facts
	lang := in.Lang
	if _, ok := i18n.ParseLanguage(string(lang)); !ok {
		lang = i18n.DefaultLanguage
	}

	if !MaintenanceExempt(in.Residual) {
		switch {
		case !f.Settings.Loaded:
			return loading(KindMaintenance)
		case f.Settings.Err != nil:
			return blocked(lang, KindMaintenance, Maintenance, f.Settings.Err)
		case f.Settings.Settings.MaintenanceMode:
			d := blocked(lang, KindMaintenance, Maintenance, nil)
			d.Message = f.Settings.Settings.MaintenanceMessage
			return d
		}
	}

	p := in.Policy
	if !p.Gated() {
		return Decision{Outcome: Render}
	}

	switch {
	case f.Session.Err != nil:
		return blocked(lang, KindSession, NeedsLogin, f.Session.Err)
	case f.Session.Status == SessionLoading:
		return loading(KindSession)
	case f.Session.Status == SessionAbsent || f.Session.User == nil:
		return blocked(lang, KindSession, NeedsLogin, nil)
	}
	user := f.Session.User

	if p.Requires(KindEmailVerified) && !user.EmailVerified {
		switch {
		case f.Profile.Err != nil:
			return blocked(lang, KindEmailVerified, NeedsVerification, f.Profile.Err)
		case !f.Profile.Done:
			return loading(KindEmailVerified)
		case !session.EmailVerified(user, f.Profile.Profile):
			return blocked(lang, KindEmailVerified, NeedsVerification, nil)
		}
	}

	if p.Requires(KindProfileComplete) {
		switch {
		case f.Profile.Err != nil:
			return blocked(lang, KindProfileComplete, NeedsProfileCompletion, f.Profile.Err)
		case !f.Profile.Done:
			return loading(KindProfileComplete)
		case !session.ProfileComplete(f.Profile.Profile):
			return blocked(lang, KindProfileComplete, NeedsProfileCompletion, nil)
		}
	}

	if p.Requires(KindRole) {
		switch {
		case f.Profile.Err != nil:
			return roleFailure(lang, p.RoleVariant, KindRole, f.Profile.Err)
		case !f.Profile.Done:
			return loading(KindRole)
		case f.Profile.Profile == nil || !rbac.Allowed(f.Profile.Profile.Role, p.Roles):
			return roleFailure(lang, p.RoleVariant, KindRole, nil)
		}
	}

	if p.Requires(KindAdminAllowList) {
		switch {
		case f.Admin.Err != nil:
			return roleFailure(lang, p.RoleVariant, KindAdminAllowList, f.Admin.Err)
		case !f.Admin.Done:
			return loading(KindAdminAllowList)
		case !f.Admin.Allowed:
			return roleFailure(lang, p.RoleVariant, KindAdminAllowList, nil)
		}
	}

	return Decision{Outcome: Render}
}

func loading(k Kind) Decision {
	return Decision{Outcome: Loading, Gate: k}
}

func blocked(lang i18n.Language, k Kind, state BlockedState, cause error) Decision {
	d := Decision{
		Outcome: Blocked,
		State:   state,
		Gate:    k,
		Err:     wrapCause(state, cause),
	}
	if residual := state.ActionResidual(); residual != "" {
		d.Action = i18n.WithLanguage(lang, residual)
	}
	return d
}

func roleFailure(lang i18n.Language, variant RoleVariant, k Kind, cause error) Decision {
	if variant == RedirectingRoleGate {
		return Decision{
			Outcome:    Redirect,
			State:      NeedsRole,
			Gate:       k,
			RedirectTo: i18n.WithLanguage(lang, i18n.HomePath),
			Err:        wrapCause(NeedsRole, cause),
		}
	}
	return blocked(lang, k, NeedsRole, cause)
}

func wrapCause(state BlockedState, cause error) error {
	if cause == nil {
		return state.Err()
	}
	return fmt.Errorf("%w: %w: %w", state.Err(), ErrDataFetchFailed, cause)
}
