package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// DebugTokenPrefix marks development ID tokens accepted by the static
// directory: "debug:<uid>" signs in as that fixture user.
const DebugTokenPrefix = "debug:"

// Fixtures is the on-disk shape of a local member directory.
type Fixtures struct {
	Users    []User    `yaml:"users"`
	Profiles []Profile `yaml:"profiles"`
	Admins   []string  `yaml:"admins"`
}

// StaticDirectory serves users, profiles and the allow-list from memory.
type StaticDirectory struct {
	mu       sync.RWMutex
	users    map[string]User
	profiles map[string]Profile
	admins   map[string]bool
}

var (
	_ ProfileStore   = (*StaticDirectory)(nil)
	_ AdminDirectory = (*StaticDirectory)(nil)
	_ Verifier       = (*StaticDirectory)(nil)
)

// NewStaticDirectory indexes fixtures.
func NewStaticDirectory(f Fixtures) *StaticDirectory {
	d := &StaticDirectory{
		users:    make(map[string]User, len(f.Users)),
		profiles: make(map[string]Profile, len(f.Profiles)),
		admins:   make(map[string]bool, len(f.Admins)),
	}
	for _, u := range f.Users {
		d.users[u.UID] = u
	}
	for _, p := range f.Profiles {
		d.profiles[p.UID] = p
	}
	for _, uid := range f.Admins {
		d.admins[strings.TrimSpace(uid)] = true
	}
	return d
}

// DecodeFixtures parses YAML fixtures from r.
func DecodeFixtures(r io.Reader) (Fixtures, error) {
	var f Fixtures
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return Fixtures{}, fmt.Errorf("session: decode fixtures: %w", err)
	}
	return f, nil
}

// LoadFixtures reads a YAML fixtures file.
func LoadFixtures(path string) (*StaticDirectory, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("session: open fixtures: %w", err)
	}
	defer file.Close()
	f, err := DecodeFixtures(file)
	if err != nil {
		return nil, err
	}
	return NewStaticDirectory(f), nil
}

func (d *StaticDirectory) Verify(_ context.Context, idToken string) (*User, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return nil, ErrMissingToken
	}
	uid, ok := strings.CutPrefix(idToken, DebugTokenPrefix)
	if !ok {
		return nil, ErrTokenInvalid
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	user, ok := d.users[uid]
	if !ok {
		return nil, fmt.Errorf("%w: unknown user %s", ErrTokenInvalid, uid)
	}
	return &user, nil
}

func (d *StaticDirectory) Profile(_ context.Context, uid string) (*Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.profiles[uid]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (d *StaticDirectory) IsAdmin(_ context.Context, uid string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.admins[uid], nil
}

// ListProfiles returns profiles ordered by most recent update.
func (d *StaticDirectory) ListProfiles(_ context.Context, limit int) ([]Profile, error) {
	d.mu.RLock()
	out := make([]Profile, 0, len(d.profiles))
	for _, p := range d.profiles {
		out = append(out, p)
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].UID < out[j].UID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
