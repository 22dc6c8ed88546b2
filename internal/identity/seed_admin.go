package identity

import (
	"context"

	"github.com/geocoder89/visionhub/internal/config"
	"github.com/geocoder89/visionhub/internal/domain/user"
)

type AdminStore interface {
	UserStore
	SetRole(ctx context.Context, externalID, role string) error
}

// EnsureAdminUser makes sure the configured external id exists and carries
// the admin role. When the person later signs in, the stored record is
// returned unchanged, role included.
func EnsureAdminUser(ctx context.Context, users AdminStore, cfg config.Config) error {
	if cfg.AdminExternalID == "" {
		return nil
	}

	u, _, err := users.FindOrCreateByExternalID(ctx, user.Profile{
		ExternalID: cfg.AdminExternalID,
		Name:       cfg.AdminName,
		Email:      cfg.AdminEmail,
	})
	if err != nil {
		return err
	}

	if u.HasRole(user.RoleAdmin) {
		return nil
	}

	return users.SetRole(ctx, u.ExternalID, user.RoleAdmin)
}
