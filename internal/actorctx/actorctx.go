package actorctx

import (
	"context"

	"github.com/geocoder89/visionhub/internal/domain/user"
)

type ctxKey struct{}

// WithUser attaches the resolved caller to ctx so code below the HTTP layer
// can act on its behalf.
func WithUser(ctx context.Context, u user.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

func UserFrom(ctx context.Context) (user.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(user.User)

	return u, ok && u.ExternalID != ""
}
