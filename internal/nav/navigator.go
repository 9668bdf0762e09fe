package nav

import (
	"sync"

	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/i18n"
)

// EventKind describes how the address changed.
type EventKind int

const (
	// EventPush is an in-app link activation or programmatic navigation.
	EventPush EventKind = iota
	// EventPop is a back/forward traversal or the initial page load.
	EventPop
	// EventReplace is an in-place rewrite of the current entry.
	EventReplace
)

func (k EventKind) String() string {
	switch k {
	case EventPush:
		return "push"
	case EventPop:
		return "pop"
	case EventReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// Event is broadcast for every address change.
type Event struct {
	Path string
	Kind EventKind
}

// Listener receives navigation events.
type Listener func(Event)

type listenerEntry struct {
	id int
	fn Listener
}

// Navigator updates history without full reloads and broadcasts navigation
// events. Events are delivered in emission order: an event emitted from inside a
// listener is queued until every listener has seen the current one.
type Navigator struct {
	history History
	prefs   i18n.Preference

	mu        sync.Mutex
	nextID    int
	listeners []listenerEntry
	queue     []Event
	draining  bool
}

// NewNavigator wires a navigator over history. prefs may be nil when language
// switching is not used.
func NewNavigator(history History, prefs i18n.Preference) *Navigator {
	return &Navigator{history: history, prefs: prefs}
}

// Current returns the address currently recorded in history.
func (n *Navigator) Current() string {
	return n.history.Current()
}

// Navigate records target as a new history entry and emits a push event.
func (n *Navigator) Navigate(target string) {
	n.history.Push(target)
	n.emit(Event{Path: target, Kind: EventPush})
}

// Replace rewrites the current entry in place and emits a replace event.
func (n *Navigator) Replace(target string) {
	n.history.Replace(target)
	n.emit(Event{Path: target, Kind: EventReplace})
}

// Pop reports an address change made by the host (back/forward, initial load).
func (n *Navigator) Pop(path string) {
	n.emit(Event{Path: path, Kind: EventPop})
}

// Back walks history backwards when the history supports it.
func (n *Navigator) Back() bool {
	h, ok := n.history.(interface{ Back() (string, bool) })
	if !ok {
		return false
	}
	path, moved := h.Back()
	if moved {
		n.Pop(path)
	}
	return moved
}

// Forward walks history forwards when the history supports it.
func (n *Navigator) Forward() bool {
	h, ok := n.history.(interface{ Forward() (string, bool) })
	if !ok {
		return false
	}
	path, moved := h.Forward()
	if moved {
		n.Pop(path)
	}
	return moved
}

// OnNavigate registers listener and returns its unsubscribe function.
func (n *Navigator) OnNavigate(listener Listener) func() {
	n.mu.Lock()
	n.nextID++
	id := n.nextID
	n.listeners = append(n.listeners, listenerEntry{id: id, fn: listener})
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			for i, l := range n.listeners {
				if l.id == id {
					n.listeners = append(n.listeners[:i:i], n.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// SwitchLanguage persists lang and navigates to the same residual path in lang.
// It reports whether a navigation happened; none does when the address is
// already the target.
func (n *Navigator) SwitchLanguage(lang i18n.Language, current string) bool {
	if _, ok := i18n.ParseLanguage(string(lang)); !ok {
		return false
	}
	if current == "" {
		current = n.history.Current()
	}
	target := i18n.WithLanguage(lang, i18n.StripLanguage(current))
	if n.prefs != nil {
		n.prefs.SetPreferred(lang)
	}
	if target == current || target == n.history.Current() {
		return false
	}
	n.Navigate(target)
	return true
}

func (n *Navigator) emit(ev Event) {
	n.mu.Lock()
	n.queue = append(n.queue, ev)
	if n.draining {
		n.mu.Unlock()
		return
	}
	n.draining = true
	for len(n.queue) > 0 {
		next := n.queue[0]
		n.queue = n.queue[1:]
		listeners := append([]listenerEntry(nil), n.listeners...)
		n.mu.Unlock()
		for _, l := range listeners {
			l.fn(next)
		}
		n.mu.Lock()
	}
	n.draining = false
	n.mu.Unlock()
}
