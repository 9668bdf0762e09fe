package nav

import (
	"strings"

	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/i18n"
)

// Canonicalize returns the canonical form of observed and whether it differs.
// Paths without a recognised language segment are prefixed with fallback;
// "/" and "" become the fallback home.
func Canonicalize(observed string, fallback i18n.Language) (string, bool) {
	if _, ok := i18n.ParseLanguage(string(fallback)); !ok {
		fallback = i18n.DefaultLanguage
	}
	if observed == "" || observed == "/" {
		return i18n.WithLanguage(fallback, i18n.HomePath), true
	}
	if !strings.HasPrefix(observed, "/") {
		return i18n.WithLanguage(fallback, observed), true
	}
	if _, ok := i18n.LanguageOf(observed); !ok {
		return "/" + string(fallback) + observed, true
	}
	// "/en" and "/en/" have no residual; send them to the language home.
	if residual := i18n.StripLanguage(observed); residual == "/" {
		lang, _ := i18n.LanguageOf(observed)
		return i18n.WithLanguage(lang, i18n.HomePath), true
	}
	return observed, false
}

// Normalizer listens to navigation events and keeps Current canonical. A
// rewrite replaces the history entry in place and is re-broadcast as a replace
// event. Dispatch subscribes to Current, never to raw events, so it only ever
// observes canonical paths.
type Normalizer struct {
	nav      *Navigator
	fallback i18n.Language
	current  *Current
	stop     func()
}

// NewNormalizer subscribes to nav. fallback is the language preference read at
// startup; it is never written here.
func NewNormalizer(n *Navigator, fallback i18n.Language) *Normalizer {
	norm := &Normalizer{nav: n, fallback: fallback, current: newCurrent()}
	norm.stop = n.OnNavigate(norm.handle)
	return norm
}

// Current exposes the tracked canonical path.
func (n *Normalizer) Current() *Current { return n.current }

// Fallback is the language used for unprefixed paths.
func (n *Normalizer) Fallback() i18n.Language { return n.fallback }

// Close stops listening to navigation events.
func (n *Normalizer) Close() {
	if n.stop != nil {
		n.stop()
	}
}

func (n *Normalizer) handle(ev Event) {
	canonical, rewritten := Canonicalize(ev.Path, n.fallback)
	if rewritten {
		n.nav.Replace(canonical)
		return
	}
	n.current.set(canonical)
}

// IsCanonical reports whether p carries a recognised language segment and a
// residual.
func IsCanonical(p string) bool {
	_, rewritten := Canonicalize(p, i18n.DefaultLanguage)
	return !rewritten
}
