package user

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const RoleAdmin = "admin"

type User struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"externalId"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Image      string    `json:"image"`
	Role       *string   `json:"role,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Profile is what an identity provider tells us about a person.
type Profile struct {
	ExternalID string
	Name       string
	Email      string
	Image      string
}

var ErrNotFound = errors.New("user not found")

func NewFromProfile(p Profile) User {
	now := time.Now().UTC()

	return User{
		ID:         uuid.NewString(),
		ExternalID: p.ExternalID,
		Name:       strings.TrimSpace(p.Name),
		Email:      strings.ToLower(strings.TrimSpace(p.Email)),
		Image:      p.Image,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (u User) HasRole(role string) bool {
	return u.Role != nil && *u.Role == role
}
