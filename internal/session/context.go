package session

import "context"

type contextKey string

const (
	userContextKey  contextKey = "membersite.user"
	tokenContextKey contextKey = "membersite.idtoken"
)

// ContextWithUser stores the signed-in user on ctx.
func ContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext returns the user stored by ContextWithUser.
func UserFromContext(ctx context.Context) (*User, bool) {
	if ctx == nil {
		return nil, false
	}
	user, ok := ctx.Value(userContextKey).(*User)
	return user, ok && user != nil
}

// ContextWithToken stores a raw ID token on ctx for sources that verify per
// request.
func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey, token)
}

// TokenFromContext returns the token stored by ContextWithToken.
func TokenFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	token, _ := ctx.Value(tokenContextKey).(string)
	return token
}

// ContextSource reads the session the middleware attached to the request.
type ContextSource struct{}

func (ContextSource) Session(ctx context.Context) (*User, error) {
	user, ok := UserFromContext(ctx)
	if !ok {
		return nil, nil
	}
	return user, nil
}
