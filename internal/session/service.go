package session

import (
	"context"
	"sync"
)

// Broadcaster fans session changes out to subscribers.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(*User)
}

// Subscribe registers fn and returns its unsubscribe function.
func (b *Broadcaster) Subscribe(fn func(*User)) func() {
	b.mu.Lock()
	if b.subs == nil {
		b.subs = map[int]func(*User){}
	}
	b.nextID++
	id := b.nextID
	b.subs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Notify calls every subscriber with user, outside the lock.
func (b *Broadcaster) Notify(user *User) {
	b.mu.Lock()
	subs := make([]func(*User), 0, len(b.subs))
	for id := 1; id <= b.nextID; id++ {
		if fn, ok := b.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	b.mu.Unlock()
	for _, fn := range subs {
		fn(user)
	}
}

// LocalSessions is a settable SessionSource for a single visitor.
type LocalSessions struct {
	mu   sync.RWMutex
	user *User
}

// NewLocalSessions starts signed in as user, or signed out when nil.
func NewLocalSessions(user *User) *LocalSessions {
	return &LocalSessions{user: user}
}

func (l *LocalSessions) Session(context.Context) (*User, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.user == nil {
		return nil, nil
	}
	copied := *l.user
	return &copied, nil
}

// Set replaces the signed-in user.
func (l *LocalSessions) Set(user *User) {
	l.mu.Lock()
	l.user = user
	l.mu.Unlock()
}

// Service composes a session source and profile store into a Provider and
// owns the sign-in/sign-out mutations.
type Service struct {
	sessions  SessionSource
	profiles  ProfileStore
	broadcast Broadcaster
}

var _ Provider = (*Service)(nil)

// NewService wires sessions and profiles.
func NewService(sessions SessionSource, profiles ProfileStore) *Service {
	return &Service{sessions: sessions, profiles: profiles}
}

func (s *Service) Session(ctx context.Context) (*User, error) {
	return s.sessions.Session(ctx)
}

func (s *Service) Profile(ctx context.Context, uid string) (*Profile, error) {
	if s.profiles == nil {
		return nil, nil
	}
	return s.profiles.Profile(ctx, uid)
}

func (s *Service) OnSessionChange(fn func(*User)) func() {
	return s.broadcast.Subscribe(fn)
}

// SignIn records user as signed in when the source is settable and notifies.
func (s *Service) SignIn(user *User) {
	if setter, ok := s.sessions.(interface{ Set(*User) }); ok {
		setter.Set(user)
	}
	s.broadcast.Notify(user)
}

// SignOut clears the session and notifies.
func (s *Service) SignOut() {
	if setter, ok := s.sessions.(interface{ Set(*User) }); ok {
		setter.Set(nil)
	}
	s.broadcast.Notify(nil)
}

// ProfileUpdated tells subscribers to refetch the profile of the current user.
func (s *Service) ProfileUpdated(ctx context.Context) {
	user, err := s.sessions.Session(ctx)
	if err != nil {
		return
	}
	s.broadcast.Notify(user)
}
