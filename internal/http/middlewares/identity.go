package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/geocoder89/visionhub/internal/actorctx"
	"github.com/geocoder89/visionhub/internal/domain/user"
	"github.com/geocoder89/visionhub/internal/identity"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type IdentityResolver interface {
	Resolve(ctx context.Context, raw string) (user.User, error)
}

type IdentityMiddleware struct {
	resolver IdentityResolver
}

func NewIdentityMiddleware(resolver IdentityResolver) *IdentityMiddleware {
	return &IdentityMiddleware{resolver: resolver}
}

// RequireIdentity rejects the request with 401 unless a valid token resolves
// to a profile.
func (m *IdentityMiddleware) RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := m.resolver.Resolve(c.Request.Context(), bearerToken(c))
		if err != nil {
			abortIdentity(c, err)
			return
		}

		setUser(c, u)
		c.Next()
	}
}

// OptionalIdentity resolves the caller when a token is present and lets
// anonymous requests through. A token that fails verification is still 401.
func (m *IdentityMiddleware) OptionalIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := m.resolver.Resolve(c.Request.Context(), bearerToken(c))
		if errors.Is(err, identity.ErrUnauthenticated) {
			c.Next()
			return
		}
		if err != nil {
			abortIdentity(c, err)
			return
		}

		setUser(c, u)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) < 7 || !strings.EqualFold(authHeader[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(authHeader[7:])
}

func setUser(c *gin.Context, u user.User) {
	c.Set(CtxUser, u)
	c.Request = c.Request.WithContext(actorctx.WithUser(c.Request.Context(), u))
}

func abortIdentity(c *gin.Context, err error) {
	switch {
	case errors.Is(err, identity.ErrUnauthenticated):
		abortWithError(c, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
	case errors.Is(err, identity.ErrInvalidToken):
		abortWithError(c, http.StatusUnauthorized, "unauthorized", "Invalid or expired identity token")
	default:
		slog.Default().ErrorContext(c.Request.Context(), "identity resolution failed", "err", err)
		abortWithError(c, http.StatusInternalServerError, "internal_error", "Could not resolve identity")
	}
}

// Optional helpers so handlers don't need to know the magic keys.

func CurrentUser(c *gin.Context) (user.User, bool) {
	v, ok := c.Get(CtxUser)
	if !ok {
		return user.User{}, false
	}
	u, ok := v.(user.User)
	return u, ok && u.ExternalID != ""
}

// UserIDFromContext returns the caller's external id.
func UserIDFromContext(c *gin.Context) (string, bool) {
	u, ok := CurrentUser(c)
	if !ok {
		return "", false
	}
	return u.ExternalID, true
}

func RoleFromContext(c *gin.Context) (string, bool) {
	u, ok := CurrentUser(c)
	if !ok || u.Role == nil {
		return "", false
	}
	return *u.Role, true
}
