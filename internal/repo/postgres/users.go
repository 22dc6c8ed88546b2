package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/visionhub/internal/domain/user"
	"github.com/geocoder89/visionhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, external_id, name, email, image, role, created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

// FindOrCreateByExternalID returns the user for p.ExternalID, inserting it on
// first sight. An existing row is returned as stored; the profile is not
// refreshed. created reports whether this call inserted the row.
func (r *UsersRepo) FindOrCreateByExternalID(ctx context.Context, p user.Profile) (u user.User, created bool, err error) {
	candidate := user.NewFromProfile(p)

	var tag pgconn.CommandTag
	err = r.prom.ObserveDB("users.find_or_create.insert", func() error {
		tag, err = r.pool.Exec(ctx, `
			INSERT INTO users (id, external_id, name, email, image, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (external_id) DO NOTHING`,
			candidate.ID, candidate.ExternalID, candidate.Name, candidate.Email, candidate.Image,
			candidate.CreatedAt, candidate.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return user.User{}, false, err
	}

	u, err = r.GetByExternalID(ctx, p.ExternalID)
	if err != nil {
		return user.User{}, false, err
	}

	return u, tag.RowsAffected() == 1, nil
}

func (r *UsersRepo) GetByExternalID(ctx context.Context, externalID string) (user.User, error) {
	var u user.User

	err := r.prom.ObserveDB("users.get_by_external_id", func() error {
		return scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE external_id = $1`,
			externalID,
		), &u)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

// SetRole assigns a role to an existing user.
func (r *UsersRepo) SetRole(ctx context.Context, externalID, role string) error {
	var tag pgconn.CommandTag
	var err error

	err = r.prom.ObserveDB("users.set_role", func() error {
		tag, err = r.pool.Exec(ctx,
			`UPDATE users SET role = $2, updated_at = NOW() WHERE external_id = $1`,
			externalID, role,
		)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row, u *user.User) error {
	return row.Scan(
		&u.ID,
		&u.ExternalID,
		&u.Name,
		&u.Email,
		&u.Image,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
}
