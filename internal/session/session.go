// Package session supplies the visitor's session, profile and admin
// eligibility to the gate chain.
package session

import (
	"context"
	"strings"
	"time"
)

// User is a signed-in visitor.
type User struct {
	UID           string `json:"uid" yaml:"uid"`
	Email         string `json:"email,omitempty" yaml:"email"`
	EmailVerified bool   `json:"emailVerified" yaml:"emailVerified"`
	DisplayName   string `json:"displayName,omitempty" yaml:"displayName"`
}

// Profile is the member record the gates read.
type Profile struct {
	UID             string    `firestore:"-" yaml:"uid"`
	Username        string    `firestore:"username" yaml:"username"`
	FullName        string    `firestore:"fullName" yaml:"fullName"`
	Phone           string    `firestore:"phone" yaml:"phone"`
	MessagingHandle string    `firestore:"telegram" yaml:"telegram"`
	City            string    `firestore:"city" yaml:"city"`
	Role            string    `firestore:"role" yaml:"role"`
	EmailVerified   bool      `firestore:"emailVerified" yaml:"emailVerified"`
	UpdatedAt       time.Time `firestore:"updatedAt" yaml:"updatedAt"`
}

// Required profile fields, in the order the completion form shows them.
const (
	FieldFullName        = "fullName"
	FieldPhone           = "phone"
	FieldMessagingHandle = "telegram"
	FieldCity            = "city"
)

// MissingFields lists the required fields that are blank. A nil profile is
// missing everything.
func MissingFields(p *Profile) []string {
	if p == nil {
		return []string{FieldFullName, FieldPhone, FieldMessagingHandle, FieldCity}
	}
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{FieldFullName, p.FullName},
		{FieldPhone, p.Phone},
		{FieldMessagingHandle, p.MessagingHandle},
		{FieldCity, p.City},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// ProfileComplete reports whether every required field is present.
func ProfileComplete(p *Profile) bool {
	return p != nil && len(MissingFields(p)) == 0
}

// EmailVerified combines the identity claim with the profile flag.
func EmailVerified(u *User, p *Profile) bool {
	if u != nil && u.EmailVerified {
		return true
	}
	return p != nil && p.EmailVerified
}

// SessionSource answers who is signed in. A nil user with a nil error means
// nobody is.
type SessionSource interface {
	Session(ctx context.Context) (*User, error)
}

// ProfileStore loads member profiles. A nil profile with a nil error means the
// profile does not exist.
type ProfileStore interface {
	Profile(ctx context.Context, uid string) (*Profile, error)
}

// AdminDirectory is the maintained list of admin-eligible identities.
type AdminDirectory interface {
	IsAdmin(ctx context.Context, uid string) (bool, error)
}

// Provider is the session/profile collaborator the runtime consumes.
type Provider interface {
	SessionSource
	ProfileStore
	// OnSessionChange registers fn for sign-in, sign-out and profile updates.
	OnSessionChange(fn func(*User)) (unsubscribe func())
}
