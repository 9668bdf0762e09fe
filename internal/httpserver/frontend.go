package httpserver

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"

	"github.com/a-h/templ"
	"go.uber.org/zap"

	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/app"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/gate"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/i18n"
	custommw "github.com/tpcglobalcommunity/tpcglobal-sub000/internal/middleware"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/nav"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/observability"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/session"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/shell"
)

// historyOp is the strongest change the runtime made to a request's history.
type historyOp int

const (
	historyNone historyOp = iota
	historyReplace
	historyPush
)

// requestHistory is the History of one request. The browser owns the real
// history; what the runtime records here becomes a redirect or an htmx
// history header.
type requestHistory struct {
	mu      sync.Mutex
	current string
	op      historyOp
}

func newRequestHistory(initial string) *requestHistory {
	return &requestHistory{current: initial}
}

func (h *requestHistory) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

func (h *requestHistory) Push(path string) {
	h.mu.Lock()
	h.current = path
	h.op = historyPush
	h.mu.Unlock()
}

func (h *requestHistory) Replace(path string) {
	h.mu.Lock()
	h.current = path
	if h.op < historyReplace {
		h.op = historyReplace
	}
	h.mu.Unlock()
}

func (h *requestHistory) result() (string, historyOp) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current, h.op
}

// page runs the navigation pipeline for one request: normalize, dispatch,
// gate, compose.
func (s *Server) page(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.FromContext(ctx)
	observed := r.URL.EscapedPath()

	pref := custommw.PreferenceFromContext(ctx)
	if pref == nil {
		pref = i18n.NewMemoryPreference(i18n.DefaultLanguage)
	}
	history := newRequestHistory(observed)
	rt := app.New(ctx, app.Options{
		History:    history,
		Preference: pref,
		Dispatcher: s.dispatcher,
		Resolver:   s.deps.Resolver,
		Settings:   s.settingsSource(),
		Metrics:    s.deps.Metrics,
		Logger:     logger,
	})
	defer rt.Close()
	rt.Start()

	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.GateWait)
	screen, err := rt.Settle(waitCtx)
	cancel()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		logger.Info("gate facts still pending; rendering placeholder",
			zap.String("canonical", screen.Canonical),
			zap.Duration("wait", s.cfg.GateWait),
		)
	case err != nil:
		// client went away
		return
	}

	target, op := history.result()
	if screen.Match.Fallback {
		logger.Debug("no route matched; rendering home", zap.String("residual", screen.Residual))
	}

	htmx := custommw.IsHTMXRequest(ctx)
	if !htmx && op != historyNone {
		status := http.StatusFound
		if op == historyPush {
			status = http.StatusSeeOther
		}
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, target, status)
		return
	}

	user, _ := session.UserFromContext(ctx)
	view := shell.View{
		Screen:    screen,
		Bundle:    s.deps.Bundle,
		User:      user,
		CSRFToken: custommw.CSRFTokenFromContext(ctx),
		Assets:    s.cfg.Assets,
	}
	var body templ.Component
	if htmx {
		body = shell.App(view)
	} else {
		body = shell.Document(view)
	}

	var buf bytes.Buffer
	if err := body.Render(ctx, &buf); err != nil {
		logger.Error("render screen", zap.String("canonical", screen.Canonical), zap.Error(err))
		s.renderError(w, r)
		return
	}

	header := w.Header()
	header.Set("Content-Type", "text/html; charset=utf-8")
	header.Set("Content-Language", string(screen.Lang))
	if htmx {
		switch op {
		case historyPush:
			header.Set("HX-Push-Url", target)
		case historyReplace:
			// a rewritten navigation still needs its own entry
			if navigatedAway(custommw.HTMXInfoFromContext(ctx), observed) {
				header.Set("HX-Push-Url", target)
			} else {
				header.Set("HX-Replace-Url", target)
			}
		}
	}
	status := http.StatusOK
	if !htmx && screen.Decision.Outcome == gate.Blocked && screen.Decision.State == gate.Maintenance {
		header.Set("Retry-After", "300")
		status = http.StatusServiceUnavailable
	}
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderError is the recovery page: a reload prompt that never opens any
// gate.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request) {
	lang := custommw.RequestLanguage(r)
	reload := r.URL.EscapedPath()
	if canonical, rewritten := nav.Canonicalize(reload, lang); rewritten {
		reload = canonical
	}
	var buf bytes.Buffer
	if err := shell.ErrorDocument(s.deps.Bundle, lang, reload, s.cfg.Assets).Render(r.Context(), &buf); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store, max-age=0")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = buf.WriteTo(w)
}

// navigatedAway reports whether an htmx request asked for a different page
// than the one it was sent from.
func navigatedAway(info custommw.HTMXInfo, observed string) bool {
	if info.CurrentURL == "" {
		return false
	}
	from, err := url.Parse(info.CurrentURL)
	if err != nil {
		return false
	}
	return from.EscapedPath() != observed
}

func (s *Server) settingsSource() app.SettingsSource {
	if s.deps.Settings == nil {
		return nil
	}
	return s.deps.Settings
}
