package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserRoundTrip(t *testing.T) {
	ctx := WithUser(context.Background(), User{Email: "  Alice@Example.com ", Name: " Alice "})
	u, ok := UserFrom(ctx)
	assert.True(t, ok)
	assert.Equal(t, User{Email: "alice@example.com", Name: "Alice"}, u)
}

func TestUserMissing(t *testing.T) {
	_, ok := UserFrom(context.Background())
	assert.False(t, ok)

	_, ok = UserFrom(WithUser(context.Background(), User{Name: "anon"}))
	assert.False(t, ok)
}
