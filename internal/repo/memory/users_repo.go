package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/visionhub/internal/domain/user"
)

type UsersRepo struct {
	mu    sync.RWMutex
	items map[string]user.User // keyed by external id
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items: make(map[string]user.User),
	}
}

func (r *UsersRepo) FindOrCreateByExternalID(_ context.Context, p user.Profile) (user.User, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.items[p.ExternalID]; ok {
		return u, false, nil
	}

	u := user.NewFromProfile(p)
	r.items[p.ExternalID] = u
	return u, true, nil
}

func (r *UsersRepo) GetByExternalID(_ context.Context, externalID string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[externalID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) SetRole(_ context.Context, externalID, role string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[externalID]
	if !ok {
		return user.ErrNotFound
	}

	u.Role = &role
	u.UpdatedAt = nowUTC()
	r.items[externalID] = u
	return nil
}

// Count is used by tests to check that no duplicate records exist.
func (r *UsersRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
