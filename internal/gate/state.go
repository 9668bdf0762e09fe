package gate

import "errors"

// BlockedState is the reason rendering is withheld.
type BlockedState int

const (
	None BlockedState = iota
	NeedsLogin
	NeedsVerification
	NeedsProfileCompletion
	NeedsRole
	Maintenance
)

func (s BlockedState) String() string {
	switch s {
	case None:
		return "none"
	case NeedsLogin:
		return "needs-login"
	case NeedsVerification:
		return "needs-verification"
	case NeedsProfileCompletion:
		return "needs-profile-completion"
	case NeedsRole:
		return "needs-role"
	case Maintenance:
		return "maintenance"
	default:
		return "unknown"
	}
}

// MessageKey is the i18n key of the blocked view's message.
func (s BlockedState) MessageKey() string {
	switch s {
	case NeedsLogin:
		return "blocked.needs_login"
	case NeedsVerification:
		return "blocked.needs_verification"
	case NeedsProfileCompletion:
		return "blocked.needs_profile_completion"
	case NeedsRole:
		return "blocked.needs_role"
	case Maintenance:
		return "maintenance.default"
	default:
		return ""
	}
}

// ActionResidual is where the blocked view's only link points.
func (s BlockedState) ActionResidual() string {
	switch s {
	case NeedsLogin:
		return "/signin"
	case NeedsVerification:
		return "/member/verify-email"
	case NeedsProfileCompletion:
		return "/member/complete-profile"
	case NeedsRole:
		return "/home"
	default:
		return ""
	}
}

var (
	ErrUnauthenticated   = errors.New("gate: unauthenticated")
	ErrUnverified        = errors.New("gate: email not verified")
	ErrProfileIncomplete = errors.New("gate: profile incomplete")
	ErrRoleDenied        = errors.New("gate: role denied")
	ErrMaintenanceActive = errors.New("gate: maintenance active")
	ErrDataFetchFailed   = errors.New("gate: data fetch failed")
)

// Err maps the state onto the error taxonomy. None maps to nil.
func (s BlockedState) Err() error {
	switch s {
	case NeedsLogin:
		return ErrUnauthenticated
	case NeedsVerification:
		return ErrUnverified
	case NeedsProfileCompletion:
		return ErrProfileIncomplete
	case NeedsRole:
		return ErrRoleDenied
	case Maintenance:
		return ErrMaintenanceActive
	default:
		return nil
	}
}

// Outcome is what the shell does with a decision.
type Outcome int

const (
	// Render shows the protected page.
	Render Outcome = iota
	// Loading shows the placeholder while facts are still arriving.
	Loading
	// Blocked shows the blocked-state view.
	Blocked
	// Redirect renders nothing and navigates to RedirectTo.
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case Render:
		return "render"
	case Loading:
		return "loading"
	case Blocked:
		return "blocked"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decision is the result of running the chain.
type Decision struct {
	Outcome Outcome
	State   BlockedState
	// Gate is the gate that decided; zero for Render.
	Gate Kind
	// Action is the canonical path of the call-to-action link.
	Action string
	// RedirectTo is set for Redirect outcomes.
	RedirectTo string
	// Message carries the maintenance message, if any.
	Message string
	// Err wraps the taxonomy error and, for failed fetches, the cause.
	Err error
}

// Allowed reports whether the protected content may render.
func (d Decision) Allowed() bool { return d.Outcome == Render }
