// Package auth carries the caller identity asserted by the fronting proxy.
package auth

import (
	"context"
	"strings"
)

const (
	HeaderEmail = "X-User-Email"
	HeaderName  = "X-User-Name"
)

type User struct {
	Email string
	Name  string
}

type ctxKey struct{}

func WithUser(ctx context.Context, u User) context.Context {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Name = strings.TrimSpace(u.Name)
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFrom returns the identity stored in ctx; ok is false when no email
// was asserted.
func UserFrom(ctx context.Context) (User, bool) {
	u, _ := ctx.Value(ctxKey{}).(User)
	return u, u.Email != ""
}
