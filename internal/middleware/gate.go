package middleware

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/gate"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/i18n"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/observability"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/rbac"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/settings"
)

// SettingsSnapshot is the current settings view.
type SettingsSnapshot interface {
	Snapshot() settings.State
}

// Gates runs the authorization chain in front of plain handlers. It reads
// facts synchronously, so it never answers Loading unless settings have not
// been read yet.
type Gates struct {
	resolver *gate.Resolver
	settings SettingsSnapshot
}

// NewGates builds the gate middlewares. A nil settings snapshot means no
// maintenance.
func NewGates(resolver *gate.Resolver, snapshot SettingsSnapshot) *Gates {
	return &Gates{resolver: resolver, settings: snapshot}
}

// RequireSession admits any signed-in visitor.
func (g *Gates) RequireSession() func(http.Handler) http.Handler {
	return g.Require(gate.RequireSession())
}

// RequireVerifiedAndComplete admits members with a verified email and a
// complete profile.
func (g *Gates) RequireVerifiedAndComplete() func(http.Handler) http.Handler {
	return g.Require(gate.RequireVerifiedAndComplete())
}

// RequireRole admits visitors with a verified email holding one of roles.
func (g *Gates) RequireRole(roles ...rbac.Role) func(http.Handler) http.Handler {
	return g.Require(gate.RequireVerified(), gate.RequireRole(gate.MessagingRoleGate, roles...))
}

// Require evaluates the composition of policies for every request. Allowed
// requests carry the gathered facts; see FactsFromContext.
func (g *Gates) Require(policies ...gate.Policy) func(http.Handler) http.Handler {
	policy := gate.Compose(policies...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			lang := RequestLanguage(r)
			residual := i18n.StripLanguage(r.URL.Path)

			facts := g.resolver.Resolve(ctx, policy)
			facts.Settings = settings.State{Loaded: true}
			if g.settings != nil {
				facts.Settings = g.settings.Snapshot()
			}
			d := gate.Evaluate(gate.Input{Lang: lang, Residual: residual, Policy: policy, Facts: facts})
			if d.Allowed() {
				next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, gateFactsKey, facts)))
				return
			}

			observability.FromContext(ctx).Info("gate denied request",
				zap.String("policy", policy.String()),
				zap.String("outcome", d.Outcome.String()),
				zap.String("state", d.State.String()),
				zap.Error(d.Err),
			)
			denied(w, r, d)
		})
	}
}

// FactsFromContext returns the facts an allowed request was gated on.
func FactsFromContext(ctx context.Context) (gate.Facts, bool) {
	facts, ok := ctx.Value(gateFactsKey).(gate.Facts)
	return facts, ok
}

func denied(w http.ResponseWriter, r *http.Request, d gate.Decision) {
	switch d.Outcome {
	case gate.Loading:
		w.Header().Set("Retry-After", "1")
		WriteError(w, r, http.StatusServiceUnavailable, "gate pending")
		return
	case gate.Redirect:
		Redirect(w, r, d.RedirectTo)
		return
	}

	code := http.StatusForbidden
	switch d.State {
	case gate.NeedsLogin:
		code = http.StatusUnauthorized
	case gate.Maintenance:
		code = http.StatusServiceUnavailable
	}
	if d.Action == "" || d.State == gate.NeedsRole {
		WriteError(w, r, code, d.State.String())
		return
	}
	if IsHTMXRequest(r.Context()) {
		w.Header().Set("HX-Redirect", d.Action)
		writeEnvelope(w, r, code, ErrorResponse{Error: d.State.String(), Redirect: d.Action})
		return
	}
	http.Redirect(w, r, d.Action, http.StatusSeeOther)
}
