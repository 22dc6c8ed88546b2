package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/geocoder89/visionhub/internal/auth"
	"github.com/geocoder89/visionhub/internal/domain/user"
)

var (
	// ErrUnauthenticated means no token was presented.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidToken means a token was presented but did not verify.
	ErrInvalidToken = errors.New("invalid identity token")
)

type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*auth.Claims, error)
}

type UserStore interface {
	FindOrCreateByExternalID(ctx context.Context, p user.Profile) (user.User, bool, error)
}

type Resolver struct {
	verifier TokenVerifier
	users    UserStore
	log      *slog.Logger
}

func NewResolver(verifier TokenVerifier, users UserStore, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{verifier: verifier, users: users, log: log}
}

// Resolve turns a raw identity token into the caller's stored profile,
// creating the profile on first sight. Store failures are returned as is.
func (r *Resolver) Resolve(ctx context.Context, raw string) (user.User, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return user.User{}, ErrUnauthenticated
	}

	claims, err := r.verifier.Verify(ctx, raw)
	if err != nil {
		r.log.DebugContext(ctx, "identity token rejected", "err", err)
		return user.User{}, ErrInvalidToken
	}

	u, created, err := r.users.FindOrCreateByExternalID(ctx, user.Profile{
		ExternalID: claims.ExternalID(),
		Name:       claims.Name,
		Email:      claims.Email,
		Image:      claims.Picture,
	})
	if err != nil {
		return user.User{}, err
	}

	if created {
		r.log.InfoContext(ctx, "user profile created", "user_id", u.ID, "external_id", u.ExternalID)
	}

	return u, nil
}
