package nav

import "sync"

// Current is the tracked canonical path. Readers subscribe; only the
// Normalizer writes it.
type Current struct {
	mu     sync.RWMutex
	value  string
	nextID int
	subs   map[int]func(string)
}

func newCurrent() *Current {
	return &Current{subs: map[int]func(string){}}
}

// Get returns the last canonical path, or "" before the first navigation.
func (c *Current) Get() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Subscribe calls fn with every new canonical path.
func (c *Current) Subscribe(fn func(string)) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.subs[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Current) set(path string) {
	c.mu.Lock()
	if c.value == path {
		c.mu.Unlock()
		return
	}
	c.value = path
	subs := make([]func(string), 0, len(c.subs))
	for id := 1; id <= c.nextID; id++ {
		if fn, ok := c.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	c.mu.Unlock()
	for _, fn := range subs {
		fn(path)
	}
}
