package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	firebaseauth "firebase.google.com/go/v4/auth"
)

var (
	// ErrMissingToken indicates a sign-in attempt without credentials.
	ErrMissingToken = errors.New("session: missing id token")
	// ErrTokenExpired is returned when the ID token has expired.
	ErrTokenExpired = errors.New("session: id token expired")
	// ErrTokenInvalid indicates a malformed or rejected token.
	ErrTokenInvalid = errors.New("session: id token invalid")
)

// TokenVerifier abstracts the Firebase Admin SDK client for testability.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// Verifier turns an ID token into a User.
type Verifier interface {
	Verify(ctx context.Context, idToken string) (*User, error)
}

// FirebaseVerifier validates Firebase ID tokens and maps their claims onto a User.
type FirebaseVerifier struct {
	verifier TokenVerifier
}

// NewFirebaseVerifier constructs a Verifier backed by the provided client.
func NewFirebaseVerifier(verifier TokenVerifier) *FirebaseVerifier {
	if verifier == nil {
		panic("firebase token verifier is required")
	}
	return &FirebaseVerifier{verifier: verifier}
}

func (f *FirebaseVerifier) Verify(ctx context.Context, idToken string) (*User, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, ErrMissingToken
	}
	verified, err := f.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		if firebaseauth.IsIDTokenExpired(err) {
			return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	return &User{
		UID:           verified.UID,
		Email:         claimString(verified.Claims["email"]),
		EmailVerified: claimBool(verified.Claims["email_verified"]),
		DisplayName:   claimString(verified.Claims["name"]),
	}, nil
}

// TokenSource verifies the ID token carried on the request context on every
// call. It suits deployments that forward the Firebase token instead of
// issuing a session cookie.
type TokenSource struct {
	Verifier Verifier
}

func (s TokenSource) Session(ctx context.Context) (*User, error) {
	token := TokenFromContext(ctx)
	if token == "" {
		return nil, nil
	}
	return s.Verifier.Verify(ctx, token)
}

func claimString(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case *string:
		if v == nil {
			return ""
		}
		return strings.TrimSpace(*v)
	default:
		return ""
	}
}

func claimBool(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	default:
		return false
	}
}
