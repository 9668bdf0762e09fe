package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/i18n"
	custommw "github.com/tpcglobalcommunity/tpcglobal-sub000/internal/middleware"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/nav"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/observability"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/rbac"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/session"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/shell"
)

const membersAPILimit = 50

var memberListRoles = []rbac.Role{rbac.RoleAdmin, rbac.RoleSuperAdmin}

type healthResponse struct {
	Status   string `json:"status"`
	Settings string `json:"settings"`
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	state := "static"
	if s.deps.Settings != nil {
		snap := s.deps.Settings.Snapshot()
		switch {
		case !snap.Loaded:
			state = "pending"
		case snap.Err != nil:
			state = "error"
		default:
			state = "loaded"
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Settings: state})
}

// switchLanguage persists lang and returns to from in that language.
func (s *Server) switchLanguage(w http.ResponseWriter, r *http.Request) {
	lang, ok := i18n.ParseLanguage(chi.URLParam(r, "lang"))
	if !ok {
		custommw.WriteError(w, r, http.StatusNotFound, "unsupported language")
		return
	}
	from := localPath(r.URL.Query().Get("from"))
	if from == "" {
		from = i18n.WithLanguage(lang, i18n.HomePath)
	}

	pref := custommw.PreferenceFromContext(r.Context())
	history := newRequestHistory(from)
	navigator := nav.NewNavigator(history, pref)
	navigator.SwitchLanguage(lang, from)
	target, _ := nav.Canonicalize(history.Current(), lang)

	if custommw.IsHTMXRequest(r.Context()) {
		location, err := json.Marshal(map[string]string{
			"path":   target,
			"target": nav.AppTarget,
			"select": nav.AppTarget,
			"swap":   "outerHTML",
		})
		if err != nil {
			custommw.WriteError(w, r, http.StatusInternalServerError, "language switch failed")
			return
		}
		w.Header().Set("HX-Location", string(location))
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// signIn exchanges a Firebase ID token for the session cookie.
func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	logger := observability.FromContext(r.Context())
	sess, ok := custommw.SessionFromContext(r.Context())
	if !ok || s.deps.Verifier == nil {
		custommw.WriteError(w, r, http.StatusServiceUnavailable, "sign-in unavailable")
		return
	}
	token := strings.TrimSpace(r.PostFormValue("idToken"))
	user, err := s.deps.Verifier.Verify(r.Context(), token)
	if err != nil || user == nil {
		reason := custommw.AuthFailureReason(err)
		logger.Warn("sign-in rejected", zap.String("reason", reason), zap.Error(err))
		code := http.StatusUnauthorized
		if errors.Is(err, session.ErrMissingToken) {
			code = http.StatusBadRequest
		}
		custommw.WriteError(w, r, code, reason)
		return
	}
	sess.SetUser(user, time.Now())
	logger.Info("signed in", zap.String("user_id", user.UID))

	lang := custommw.RequestLanguage(r)
	target := localPath(r.PostFormValue("from"))
	if target == "" || isAuthTarget(target) {
		target = i18n.WithLanguage(lang, "/member/dashboard")
	}
	custommw.Redirect(w, r, target)
}

func (s *Server) signOut(w http.ResponseWriter, r *http.Request) {
	if sess, ok := custommw.SessionFromContext(r.Context()); ok {
		sess.Destroy()
	}
	lang := custommw.RequestLanguage(r)
	custommw.Redirect(w, r, i18n.WithLanguage(lang, i18n.HomePath))
}

type sessionResponse struct {
	UID           string `json:"uid"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"emailVerified"`
	DisplayName   string `json:"displayName,omitempty"`
}

type profileResponse struct {
	UID       string    `json:"uid"`
	Username  string    `json:"username,omitempty"`
	FullName  string    `json:"fullName"`
	City      string    `json:"city"`
	Role      string    `json:"role"`
	Complete  bool      `json:"complete"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toProfileResponse(p session.Profile) profileResponse {
	return profileResponse{
		UID:       p.UID,
		Username:  p.Username,
		FullName:  p.FullName,
		City:      p.City,
		Role:      string(rbac.NormaliseRole(p.Role)),
		Complete:  session.ProfileComplete(&p),
		UpdatedAt: p.UpdatedAt,
	}
}

func (s *Server) apiSession(w http.ResponseWriter, r *http.Request) {
	facts, _ := custommw.FactsFromContext(r.Context())
	user := facts.Session.User
	if user == nil {
		custommw.WriteError(w, r, http.StatusUnauthorized, "needs-login")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		UID:           user.UID,
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
		DisplayName:   user.DisplayName,
	})
}

func (s *Server) apiProfile(w http.ResponseWriter, r *http.Request) {
	facts, _ := custommw.FactsFromContext(r.Context())
	profile := facts.Profile.Profile
	if profile == nil {
		custommw.WriteError(w, r, http.StatusNotFound, "no profile")
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(*profile))
}

func (s *Server) apiMembers(w http.ResponseWriter, r *http.Request) {
	out := []profileResponse{}
	if s.deps.Members != nil {
		members, err := s.deps.Members.ListProfiles(r.Context(), membersAPILimit)
		if err != nil {
			observability.FromContext(r.Context()).Error("list members", zap.Error(err))
			custommw.WriteError(w, r, http.StatusBadGateway, "member directory unavailable")
			return
		}
		for _, m := range members {
			out = append(out, toProfileResponse(m))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// localPath accepts only same-origin absolute paths.
func localPath(p string) string {
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.ContainsAny(p, "\\\r\n") {
		return ""
	}
	return p
}

func isAuthTarget(p string) bool {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	return shell.IsAuthPath(i18n.StripLanguage(p))
}
