package gate

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/metrics"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/session"
)

var tracer = otel.Tracer("github.com/tpcglobalcommunity/tpcglobal-sub000/internal/gate")

// Resolver gathers the session, profile and allow-list facts a policy needs.
type Resolver struct {
	sessions session.SessionSource
	profiles session.ProfileStore
	admins   session.AdminDirectory
	metrics  *metrics.Metrics
}

// NewResolver wires the collaborators. admins may be nil when no route uses
// the allow-list; such policies then fail closed.
func NewResolver(sessions session.SessionSource, profiles session.ProfileStore, admins session.AdminDirectory, m *metrics.Metrics) *Resolver {
	return &Resolver{sessions: sessions, profiles: profiles, admins: admins, metrics: m}
}

// SessionFact asks the session source who is signed in.
func (r *Resolver) SessionFact(ctx context.Context) SessionFact {
	ctx, span := tracer.Start(ctx, "gate.session")
	defer span.End()

	start := time.Now()
	user, err := r.sessions.Session(ctx)
	r.metrics.ObserveFetch("session", time.Since(start), err)
	if err != nil {
		recordError(span, err)
		return SessionFact{Status: SessionAbsent, Err: err}
	}
	if user == nil {
		return SessionFact{Status: SessionAbsent}
	}
	span.SetAttributes(attribute.Bool("session.present", true))
	return SessionFact{Status: SessionPresent, User: user}
}

// Gather fetches the facts policy needs for a present session. The profile
// and the allow-list are fetched concurrently; neither failure cancels the
// other since the chain maps each to its own blocked state.
func (r *Resolver) Gather(ctx context.Context, policy Policy, sess SessionFact) (ProfileFact, AdminFact) {
	var profile ProfileFact
	var admin AdminFact
	if sess.Status != SessionPresent || sess.User == nil {
		return profile, admin
	}
	uid := sess.User.UID

	ctx, span := tracer.Start(ctx, "gate.gather", trace.WithAttributes(
		attribute.String("gate.policy", policy.String()),
	))
	defer span.End()

	var g errgroup.Group
	if policy.NeedsProfile() {
		g.Go(func() error {
			profile = r.fetchProfile(ctx, uid)
			return nil
		})
	}
	if policy.Requires(KindAdminAllowList) {
		g.Go(func() error {
			admin = r.fetchAdmin(ctx, uid)
			return nil
		})
	}
	_ = g.Wait()
	return profile, admin
}

// Resolve gathers every fact for policy in one pass.
func (r *Resolver) Resolve(ctx context.Context, policy Policy) Facts {
	var f Facts
	if !policy.Gated() {
		return f
	}
	f.Session = r.SessionFact(ctx)
	f.Profile, f.Admin = r.Gather(ctx, policy, f.Session)
	return f
}

func (r *Resolver) fetchProfile(ctx context.Context, uid string) ProfileFact {
	ctx, span := tracer.Start(ctx, "gate.profile")
	defer span.End()
	if r.profiles == nil {
		return ProfileFact{Done: true}
	}
	start := time.Now()
	p, err := r.profiles.Profile(ctx, uid)
	r.metrics.ObserveFetch("profile", time.Since(start), err)
	if err != nil {
		recordError(span, err)
		return ProfileFact{Done: true, Err: err}
	}
	return ProfileFact{Done: true, Profile: p}
}

func (r *Resolver) fetchAdmin(ctx context.Context, uid string) AdminFact {
	ctx, span := tracer.Start(ctx, "gate.admin_allow_list")
	defer span.End()
	if r.admins == nil {
		return AdminFact{Done: true}
	}
	start := time.Now()
	ok, err := r.admins.IsAdmin(ctx, uid)
	r.metrics.ObserveFetch("admin", time.Since(start), err)
	if err != nil {
		recordError(span, err)
		return AdminFact{Done: true, Err: err}
	}
	span.SetAttributes(attribute.Bool("admin.allowed", ok))
	return AdminFact{Done: true, Allowed: ok}
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
