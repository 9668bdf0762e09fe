package gate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/i18n"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/rbac"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/session"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/settings"
)

var (
	ready = settings.State{Loaded: true}

	verifiedUser   = &session.User{UID: "ayu", EmailVerified: true}
	unverifiedUser = &session.User{UID: "budi"}

	completeProfile = &session.Profile{
		UID:             "ayu",
		FullName:        "Ayu Lestari",
		Phone:           "+62 812",
		MessagingHandle: "@ayu",
		City:            "Bandung",
		Role:            "member",
	}
)

func present(u *session.User) SessionFact {
	return SessionFact{Status: SessionPresent, User: u}
}

func loaded(p *session.Profile) ProfileFact {
	return ProfileFact{Done: true, Profile: p}
}

func withRole(role string) *session.Profile {
	p := *completeProfile
	p.Role = role
	return &p
}

func TestMemberChainScenarios(t *testing.T) {
	t.Parallel()

	incomplete := *completeProfile
	incomplete.City = ""

	tests := []struct {
		name    string
		facts   Facts
		outcome Outcome
		state   BlockedState
		action  string
		err     error
	}{
		{
			name:    "session loading shows placeholder",
			facts:   Facts{Settings: ready},
			outcome: Loading,
		},
		{
			name:    "absent session needs login",
			facts:   Facts{Settings: ready, Session: SessionFact{Status: SessionAbsent}},
			outcome: Blocked,
			state:   NeedsLogin,
			action:  "/en/signin",
			err:     ErrUnauthenticated,
		},
		{
			name:    "unverified email",
			facts:   Facts{Settings: ready, Session: present(unverifiedUser), Profile: loaded(&session.Profile{})},
			outcome: Blocked,
			state:   NeedsVerification,
			action:  "/en/member/verify-email",
			err:     ErrUnverified,
		},
		{
			name:    "verified but incomplete profile",
			facts:   Facts{Settings: ready, Session: present(verifiedUser), Profile: loaded(&incomplete)},
			outcome: Blocked,
			state:   NeedsProfileCompletion,
			action:  "/en/member/complete-profile",
			err:     ErrProfileIncomplete,
		},
		{
			name:    "all required fields present",
			facts:   Facts{Settings: ready, Session: present(verifiedUser), Profile: loaded(completeProfile)},
			outcome: Render,
			state:   None,
		},
		{
			name:    "profile flag verifies email",
			facts:   Facts{Settings: ready, Session: present(unverifiedUser), Profile: loaded(&session.Profile{EmailVerified: true, FullName: "B", Phone: "1", MessagingHandle: "@b", City: "Solo"})},
			outcome: Render,
		},
		{
			name:    "profile in flight is loading, not blocked",
			facts:   Facts{Settings: ready, Session: present(verifiedUser)},
			outcome: Loading,
		},
		{
			name:    "missing profile is incomplete",
			facts:   Facts{Settings: ready, Session: present(verifiedUser), Profile: loaded(nil)},
			outcome: Blocked,
			state:   NeedsProfileCompletion,
			err:     ErrProfileIncomplete,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d := Evaluate(Input{Lang: i18n.English, Residual: "/member/dashboard", Policy: RequireVerifiedAndComplete(), Facts: tc.facts})
			require.Equal(t, tc.outcome, d.Outcome)
			require.Equal(t, tc.state, d.State)
			if tc.action != "" {
				require.Equal(t, tc.action, d.Action)
			}
			if tc.err != nil {
				require.ErrorIs(t, d.Err, tc.err)
			} else {
				require.NoError(t, d.Err)
			}
			require.Equal(t, tc.outcome == Render, d.Allowed())
		})
	}
}

func TestFailClosedOnFetchErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("deadline exceeded")

	d := Evaluate(Input{Lang: i18n.Indonesian, Residual: "/member/dashboard", Policy: RequireVerifiedAndComplete(), Facts: Facts{
		Settings: ready,
		Session:  SessionFact{Status: SessionAbsent, Err: boom},
	}})
	require.Equal(t, NeedsLogin, d.State)
	require.ErrorIs(t, d.Err, ErrDataFetchFailed)
	require.ErrorIs(t, d.Err, boom)
	require.Equal(t, "/id/signin", d.Action)

	// claim verified, profile fetch failed: most restrictive remaining state
	d = Evaluate(Input{Lang: i18n.English, Residual: "/member/dashboard", Policy: RequireVerifiedAndComplete(), Facts: Facts{
		Settings: ready,
		Session:  present(verifiedUser),
		Profile:  ProfileFact{Done: true, Err: boom},
	}})
	require.Equal(t, Blocked, d.Outcome)
	require.Equal(t, NeedsProfileCompletion, d.State)
	require.ErrorIs(t, d.Err, ErrProfileIncomplete)
	require.ErrorIs(t, d.Err, ErrDataFetchFailed)

	d = Evaluate(Input{Lang: i18n.English, Residual: "/member/dashboard", Policy: RequireVerifiedAndComplete(), Facts: Facts{
		Settings: ready,
		Session:  present(unverifiedUser),
		Profile:  ProfileFact{Done: true, Err: boom},
	}})
	require.Equal(t, NeedsVerification, d.State)

	d = Evaluate(Input{Lang: i18n.English, Residual: "/moderator/queue", Policy: RequireRole(MessagingRoleGate, rbac.RoleModerator), Facts: Facts{
		Settings: ready,
		Session:  present(verifiedUser),
		Profile:  ProfileFact{Done: true, Err: boom},
	}})
	require.Equal(t, Blocked, d.Outcome)
	require.Equal(t, NeedsRole, d.State)
}

func TestMaintenanceGate(t *testing.T) {
	t.Parallel()

	on := settings.State{Loaded: true, Settings: settings.AppSettings{MaintenanceMode: true, MaintenanceMessage: "Back soon"}}
	admin := Facts{Settings: on, Session: present(verifiedUser), Profile: loaded(withRole("admin")), Admin: AdminFact{Done: true, Allowed: true}}

	d := Evaluate(Input{Lang: i18n.English, Residual: "/home", Policy: Public(), Facts: admin})
	require.Equal(t, Blocked, d.Outcome)
	require.Equal(t, Maintenance, d.State)
	require.Equal(t, KindMaintenance, d.Gate)
	require.Equal(t, "Back soon", d.Message)
	require.ErrorIs(t, d.Err, ErrMaintenanceActive)

	d = Evaluate(Input{Lang: i18n.English, Residual: "/admin/control", Policy: RequireAdminConsole(rbac.RoleAdmin, rbac.RoleSuperAdmin), Facts: admin})
	require.Equal(t, Render, d.Outcome)

	d = Evaluate(Input{Lang: i18n.English, Residual: "/signin", Policy: Public(), Facts: admin})
	require.Equal(t, Render, d.Outcome)

	d = Evaluate(Input{Lang: i18n.English, Residual: "/signup", Policy: Public(), Facts: admin})
	require.Equal(t, Maintenance, d.State)

	d = Evaluate(Input{Lang: i18n.English, Residual: "/administrator", Policy: Public(), Facts: admin})
	require.Equal(t, Maintenance, d.State)

	// maintenance fires before any per-route gate
	d = Evaluate(Input{Lang: i18n.English, Residual: "/member/dashboard", Policy: RequireVerifiedAndComplete(), Facts: Facts{Settings: on}})
	require.Equal(t, Maintenance, d.State)
}

func TestMaintenanceFailsClosed(t *testing.T) {
	t.Parallel()

	failed := settings.State{Loaded: true, Err: errors.New("unavailable")}
	d := Evaluate(Input{Lang: i18n.English, Residual: "/news", Policy: Public(), Facts: Facts{Settings: failed}})
	require.Equal(t, Maintenance, d.State)
	require.ErrorIs(t, d.Err, ErrDataFetchFailed)

	d = Evaluate(Input{Lang: i18n.English, Residual: "/news", Policy: Public(), Facts: Facts{}})
	require.Equal(t, Loading, d.Outcome)

	d = Evaluate(Input{Lang: i18n.English, Residual: "/signin", Policy: Public(), Facts: Facts{}})
	require.Equal(t, Render, d.Outcome)
}

func TestRoleGateVariants(t *testing.T) {
	t.Parallel()

	member := Facts{Settings: ready, Session: present(verifiedUser), Profile: loaded(withRole("member")), Admin: AdminFact{Done: true, Allowed: true}}

	d := Evaluate(Input{Lang: i18n.Indonesian, Residual: "/moderator/queue", Policy: RequireRole(MessagingRoleGate, rbac.RoleModerator, rbac.RoleAdmin), Facts: member})
	require.Equal(t, Blocked, d.Outcome)
	require.Equal(t, NeedsRole, d.State)
	require.Equal(t, "/id/home", d.Action)
	require.ErrorIs(t, d.Err, ErrRoleDenied)

	d = Evaluate(Input{Lang: i18n.Indonesian, Residual: "/admin/control", Policy: RequireAdminConsole(rbac.RoleAdmin), Facts: member})
	require.Equal(t, Redirect, d.Outcome)
	require.Equal(t, "/id/home", d.RedirectTo)
	require.Equal(t, NeedsRole, d.State)
	require.False(t, d.Allowed())

	moderator := member
	moderator.Profile = loaded(withRole("MODERATOR"))
	d = Evaluate(Input{Lang: i18n.English, Residual: "/moderator/queue", Policy: RequireRole(MessagingRoleGate, rbac.RoleModerator), Facts: moderator})
	require.Equal(t, Render, d.Outcome)

	inFlight := member
	inFlight.Profile = ProfileFact{}
	d = Evaluate(Input{Lang: i18n.English, Residual: "/admin/control", Policy: RequireAdminConsole(rbac.RoleAdmin), Facts: inFlight})
	require.Equal(t, Loading, d.Outcome)
}

func TestAdminAllowList(t *testing.T) {
	t.Parallel()

	admin := Facts{Settings: ready, Session: present(verifiedUser), Profile: loaded(withRole("admin"))}
	policy := RequireAdminConsole(rbac.RoleAdmin, rbac.RoleSuperAdmin)

	d := Evaluate(Input{Lang: i18n.English, Residual: "/admin/control", Policy: policy, Facts: admin})
	require.Equal(t, Loading, d.Outcome)
	require.Equal(t, KindAdminAllowList, d.Gate)

	admin.Admin = AdminFact{Done: true, Allowed: false}
	d = Evaluate(Input{Lang: i18n.English, Residual: "/admin/control", Policy: policy, Facts: admin})
	require.Equal(t, Redirect, d.Outcome)
	require.Equal(t, KindAdminAllowList, d.Gate)

	admin.Admin = AdminFact{Done: true, Err: errors.New("permission denied")}
	d = Evaluate(Input{Lang: i18n.English, Residual: "/admin/control", Policy: policy, Facts: admin})
	require.Equal(t, Redirect, d.Outcome)
	require.ErrorIs(t, d.Err, ErrDataFetchFailed)

	admin.Admin = AdminFact{Done: true, Allowed: true}
	d = Evaluate(Input{Lang: i18n.English, Residual: "/admin/control", Policy: policy, Facts: admin})
	require.Equal(t, Render, d.Outcome)
}

func TestPublicRoutesIgnoreSession(t *testing.T) {
	t.Parallel()

	d := Evaluate(Input{Lang: i18n.English, Residual: "/news/launch", Policy: Public(), Facts: Facts{Settings: ready}})
	require.Equal(t, Render, d.Outcome)
}

func TestComposeKeepsGlobalOrder(t *testing.T) {
	t.Parallel()

	p := Compose(RequireRole(MessagingRoleGate, "Admin"), RequireVerifiedAndComplete(), RequireAdminConsole(rbac.RoleSuperAdmin))
	require.Equal(t, []Kind{KindSession, KindEmailVerified, KindProfileComplete, KindRole, KindAdminAllowList}, p.Gates)
	require.Equal(t, rbac.Roles{rbac.RoleAdmin, rbac.RoleSuperAdmin}, p.Roles)
	require.Equal(t, RedirectingRoleGate, p.RoleVariant)
	require.True(t, p.NeedsProfile())
	require.Equal(t, "public", Public().String())
}

func TestBlockedStateErrors(t *testing.T) {
	t.Parallel()

	require.NoError(t, None.Err())
	require.ErrorIs(t, NeedsLogin.Err(), ErrUnauthenticated)
	require.ErrorIs(t, Maintenance.Err(), ErrMaintenanceActive)
	require.Equal(t, "needs-profile-completion", NeedsProfileCompletion.String())
	require.True(t, MaintenanceExempt("/admin/"))
	require.False(t, MaintenanceExempt("/signup"))
}
