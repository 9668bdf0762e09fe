package gate

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/metrics"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/rbac"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/session"
)

type countingProfiles struct {
	calls   atomic.Int32
	profile *session.Profile
	err     error
}

func (c *countingProfiles) Profile(context.Context, string) (*session.Profile, error) {
	c.calls.Add(1)
	return c.profile, c.err
}

type stubAdmins struct {
	allowed bool
	err     error
}

func (s stubAdmins) IsAdmin(context.Context, string) (bool, error) {
	return s.allowed, s.err
}

func TestResolverPublicPolicyFetchesNothing(t *testing.T) {
	t.Parallel()

	profiles := &countingProfiles{}
	r := NewResolver(session.NewLocalSessions(verifiedUser), profiles, nil, nil)
	f := r.Resolve(context.Background(), Public())
	require.Equal(t, SessionLoading, f.Session.Status)
	require.Zero(t, profiles.calls.Load())
}

func TestResolverGathersFacts(t *testing.T) {
	t.Parallel()

	profiles := &countingProfiles{profile: withRole("admin")}
	m := metrics.New(prometheus.NewRegistry())
	r := NewResolver(session.NewLocalSessions(verifiedUser), profiles, stubAdmins{allowed: true}, m)

	f := r.Resolve(context.Background(), RequireAdminConsole(rbac.RoleAdmin))
	require.Equal(t, SessionPresent, f.Session.Status)
	require.True(t, f.Profile.Done)
	require.Equal(t, "admin", f.Profile.Profile.Role)
	require.Equal(t, AdminFact{Done: true, Allowed: true}, f.Admin)
	require.EqualValues(t, 1, profiles.calls.Load())
}

func TestResolverAbsentSessionSkipsProfile(t *testing.T) {
	t.Parallel()

	profiles := &countingProfiles{}
	r := NewResolver(session.NewLocalSessions(nil), profiles, stubAdmins{}, nil)
	f := r.Resolve(context.Background(), RequireVerifiedAndComplete())
	require.Equal(t, SessionAbsent, f.Session.Status)
	require.False(t, f.Profile.Done)
	require.Zero(t, profiles.calls.Load())
}

func TestResolverKeepsErrorsPerFact(t *testing.T) {
	t.Parallel()

	boom := errors.New("unavailable")
	r := NewResolver(session.NewLocalSessions(verifiedUser), &countingProfiles{err: boom}, stubAdmins{allowed: true}, nil)
	f := r.Resolve(context.Background(), RequireAdminConsole(rbac.RoleAdmin))
	require.ErrorIs(t, f.Profile.Err, boom)
	require.True(t, f.Admin.Allowed)

	r = NewResolver(session.NewLocalSessions(verifiedUser), &countingProfiles{}, nil, nil)
	f = r.Resolve(context.Background(), RequireAdminConsole(rbac.RoleAdmin))
	require.Equal(t, AdminFact{Done: true}, f.Admin)
}
