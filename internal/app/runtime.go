// Package app runs the navigation pipeline: history events flow through the
// normalizer into dispatch, and each canonical path is gated against the
// session, profile and settings facts as they arrive.
package app

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/gate"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/i18n"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/metrics"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/nav"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/routes"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/session"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/settings"
)

// ErrClosed is returned by Settle once the runtime is closed.
var ErrClosed = errors.New("app: runtime closed")

// SettingsSource is the process-wide settings view.
type SettingsSource interface {
	Snapshot() settings.State
	Subscribe(fn func(settings.State)) func()
}

// SessionNotifier reports sign-in, sign-out and profile mutations.
type SessionNotifier interface {
	OnSessionChange(fn func(*session.User)) func()
}

// Screen is what the shell renders for the current canonical path.
type Screen struct {
	Canonical string
	Lang      i18n.Language
	Residual  string
	Match     routes.Match
	Decision  gate.Decision
	Facts     gate.Facts
	// Pending is set while facts for this screen are still being fetched.
	Pending    bool
	Generation uint64
}

// Route returns the dispatched descriptor.
func (s Screen) Route() *routes.Descriptor { return s.Match.Route }

// Options wires a Runtime.
type Options struct {
	History    nav.History
	Preference i18n.Preference
	// Fallback is the language for unprefixed paths; defaults to the
	// preference, then the default language.
	Fallback   i18n.Language
	Dispatcher *routes.Dispatcher
	Resolver   *gate.Resolver
	Settings   SettingsSource
	Sessions   SessionNotifier
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

// Runtime owns one visitor's navigation state. Every navigation or session
// change starts a new generation; fetch results are applied only while their
// generation is current and the runtime is open.
type Runtime struct {
	nav        *nav.Navigator
	normalizer *nav.Normalizer
	dispatcher *routes.Dispatcher
	resolver   *gate.Resolver
	settings   SettingsSource
	metrics    *metrics.Metrics
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	gen      uint64
	closed   bool
	screen   Screen
	done     chan struct{}
	nextID   int
	subs     map[int]func(Screen)
	teardown []func()

	// queue holds published screens not yet delivered; one goroutine at a
	// time drains it without holding mu.
	queue      []delivery
	delivering bool
	// redirected is the last generation whose redirect was scheduled.
	redirected uint64
	// redirects counts scheduled redirects not yet navigated; navigated is
	// closed when it drops to zero.
	redirects int
	navigated chan struct{}
}

type delivery struct {
	screen   Screen
	subs     []func(Screen)
	redirect string
}

// New builds a runtime. Fetches run with ctx, so request-scoped values such
// as the signed-in user reach the session source. Call Start to observe the
// initial address.
func New(ctx context.Context, opts Options) *Runtime {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fallback := opts.Fallback
	if _, ok := i18n.ParseLanguage(string(fallback)); !ok {
		fallback = i18n.DefaultLanguage
		if opts.Preference != nil {
			fallback = opts.Preference.Preferred()
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	close(done)

	r := &Runtime{
		nav:        nav.NewNavigator(opts.History, opts.Preference),
		dispatcher: opts.Dispatcher,
		resolver:   opts.Resolver,
		settings:   opts.Settings,
		metrics:    opts.Metrics,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		done:       done,
		subs:       map[int]func(Screen){},
	}

	// counting listener must run before the normalizer rewrites
	r.teardown = append(r.teardown, r.nav.OnNavigate(func(ev nav.Event) {
		if _, rewritten := nav.Canonicalize(ev.Path, fallback); rewritten {
			r.metrics.IncrementRewrite()
		}
	}))
	r.normalizer = nav.NewNormalizer(r.nav, fallback)
	r.teardown = append(r.teardown,
		r.normalizer.Close,
		r.normalizer.Current().Subscribe(r.onCanonical),
	)
	if r.settings != nil {
		r.teardown = append(r.teardown, r.settings.Subscribe(r.onSettings))
	}
	if opts.Sessions != nil {
		r.teardown = append(r.teardown, opts.Sessions.OnSessionChange(func(*session.User) {
			r.Refresh()
		}))
	}
	return r
}

// Navigator is the runtime's navigator, for links and language switches.
func (r *Runtime) Navigator() *nav.Navigator { return r.nav }

// Current is the canonical path the runtime last dispatched.
func (r *Runtime) Current() *nav.Current { return r.normalizer.Current() }

// Start observes the address currently in history as the initial load.
func (r *Runtime) Start() {
	r.nav.Pop(r.nav.Current())
}

// Screen returns the last published screen.
func (r *Runtime) Screen() Screen {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.screen
}

// Subscribe calls fn with published screens in publication order. fn runs
// without the runtime's lock held, so it may read the screen or navigate;
// screens superseded by a newer navigation before delivery are skipped.
func (r *Runtime) Subscribe(fn func(Screen)) func() {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.subs[id] = fn
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

// Refresh re-gates the current path with freshly fetched facts.
func (r *Runtime) Refresh() {
	if canonical := r.normalizer.Current().Get(); canonical != "" {
		r.onCanonical(canonical)
	}
}

// Settle waits until the current generation has all of its facts and any
// redirect it decided has been followed, and returns its screen. When ctx
// ends first the latest screen is returned with the context error. Settle
// must not be called from a subscriber.
func (r *Runtime) Settle(ctx context.Context) (Screen, error) {
	for {
		r.mu.Lock()
		if r.closed {
			s := r.screen
			r.mu.Unlock()
			return s, ErrClosed
		}
		gen, done := r.gen, r.done
		r.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return r.Screen(), ctx.Err()
		}

		r.mu.Lock()
		if r.gen != gen {
			r.mu.Unlock()
			continue
		}
		if r.redirects > 0 {
			navigated := r.navigated
			r.mu.Unlock()
			select {
			case <-navigated:
				continue
			case <-ctx.Done():
				return r.Screen(), ctx.Err()
			}
		}
		s := r.screen
		r.mu.Unlock()
		return s, nil
	}
}

// Close stops listening and discards every fetch still in flight.
func (r *Runtime) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	teardown := r.teardown
	r.teardown = nil
	r.mu.Unlock()

	for i := len(teardown) - 1; i >= 0; i-- {
		teardown[i]()
	}
	r.cancel()
}

// Wait blocks until every fetch goroutine has returned.
func (r *Runtime) Wait() {
	r.wg.Wait()
}

func (r *Runtime) onCanonical(canonical string) {
	lang, _ := i18n.LanguageOf(canonical)
	residual := i18n.StripLanguage(canonical)
	match := r.dispatcher.Dispatch(residual)
	policy := match.Route.Policy

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.gen++
	gen := r.gen
	done := make(chan struct{})
	r.done = done
	screen := Screen{
		Canonical:  canonical,
		Lang:       lang,
		Residual:   residual,
		Match:      match,
		Facts:      gate.Facts{Settings: r.settingsState()},
		Pending:    policy.Gated(),
		Generation: gen,
	}
	if !policy.Gated() {
		close(done)
	} else {
		r.wg.Add(1)
		go r.fetch(gen, policy, done)
	}
	r.publishLocked(screen)
}

func (r *Runtime) onSettings(state settings.State) {
	r.mu.Lock()
	if r.closed || r.screen.Generation == 0 {
		r.mu.Unlock()
		return
	}
	screen := r.screen
	screen.Facts.Settings = state
	r.publishLocked(screen)
}

func (r *Runtime) fetch(gen uint64, policy gate.Policy, done chan struct{}) {
	defer r.wg.Done()
	defer close(done)

	sess := r.resolver.SessionFact(r.ctx)
	if !r.apply(gen, func(f *gate.Facts) { f.Session = sess }, sess.Status != gate.SessionPresent) {
		return
	}
	if sess.Status != gate.SessionPresent {
		return
	}
	profile, admin := r.resolver.Gather(r.ctx, policy, sess)
	r.apply(gen, func(f *gate.Facts) {
		f.Profile = profile
		f.Admin = admin
	}, true)
}

// apply merges a fetch result into the screen of generation gen. It reports
// false when the result is stale.
func (r *Runtime) apply(gen uint64, update func(*gate.Facts), final bool) bool {
	r.mu.Lock()
	if r.closed || gen != r.gen {
		current, closed := r.gen, r.closed
		r.mu.Unlock()
		r.metrics.IncrementStale()
		r.logger.Debug("discarding stale fetch result",
			zap.Uint64("generation", gen),
			zap.Uint64("current", current),
			zap.Bool("closed", closed),
		)
		return false
	}
	screen := r.screen
	update(&screen.Facts)
	screen.Pending = !final
	r.publishLocked(screen)
	return true
}

// publishLocked evaluates screen, stores it and queues it for subscribers.
// It is called with r.mu held and releases it. A redirect decision is
// followed at most once per generation.
func (r *Runtime) publishLocked(screen Screen) {
	screen.Decision = gate.Evaluate(gate.Input{
		Lang:     screen.Lang,
		Residual: screen.Residual,
		Policy:   screen.Match.Route.Policy,
		Facts:    screen.Facts,
	})
	r.screen = screen

	d := delivery{screen: screen, subs: make([]func(Screen), 0, len(r.subs))}
	for id := 1; id <= r.nextID; id++ {
		if fn, ok := r.subs[id]; ok {
			d.subs = append(d.subs, fn)
		}
	}
	if screen.Decision.Outcome == gate.Redirect && !screen.Pending && r.redirected != screen.Generation {
		r.redirected = screen.Generation
		d.redirect = screen.Decision.RedirectTo
		if r.redirects == 0 {
			r.navigated = make(chan struct{})
		}
		r.redirects++
	}
	r.queue = append(r.queue, d)
	if r.delivering {
		r.mu.Unlock()
		return
	}
	r.delivering = true
	r.mu.Unlock()
	r.drain()
}

// drain delivers queued screens until the queue is empty. Deliveries whose
// generation was superseded are dropped along with their redirect.
func (r *Runtime) drain() {
	for {
		r.mu.Lock()
		if len(r.queue) == 0 {
			r.delivering = false
			r.mu.Unlock()
			return
		}
		d := r.queue[0]
		r.queue[0] = delivery{}
		r.queue = r.queue[1:]
		stale := d.screen.Generation != r.gen
		r.mu.Unlock()

		if !stale {
			if !d.screen.Pending {
				r.metrics.IncrementDecision(d.screen.Decision.Outcome.String(), d.screen.Decision.State.String())
			}
			for _, fn := range d.subs {
				fn(d.screen)
			}
		}
		if d.redirect == "" {
			continue
		}
		if !stale {
			r.logger.Info("role gate redirect",
				zap.String("from", d.screen.Canonical),
				zap.String("to", d.redirect),
			)
			r.nav.Navigate(d.redirect)
		}
		r.mu.Lock()
		r.redirects--
		if r.redirects == 0 {
			close(r.navigated)
		}
		r.mu.Unlock()
	}
}

func (r *Runtime) settingsState() settings.State {
	if r.settings == nil {
		return settings.State{Loaded: true}
	}
	return r.settings.Snapshot()
}
