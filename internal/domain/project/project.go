package project

import (
	"errors"
	"time"
)

// Known project types. Any lowercase alphanumeric tag is accepted.
const (
	TypeHub      = "hub"
	TypePersonal = "personal"
	TypeRemote   = "remote"
	TypeCampus   = "campus"
)

type Project struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	Icon        string    `json:"icon"`
	Type        string    `json:"type"`
	ViewCount   int64     `json:"viewCount"`
	OwnerID     string    `json:"ownerId"`
	Archived    bool      `json:"archived"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// OwnerID is always the caller; it is never read from the request.
type ListProjectsFilter struct {
	OwnerID string
	Type    *string
}

var (
	ErrNotFound      = errors.New("project not found")
	ErrNotAuthorized = errors.New("not authorized for project")
)

type CreateProjectRequest struct {
	Title       string  `json:"title" binding:"required,notblank,max=120"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
	Icon        string  `json:"icon" binding:"required,max=16"`
	Type        string  `json:"type" binding:"required,max=32,alphanum,lowercase"`
}

func (p Project) OwnedBy(externalID string) bool {
	return externalID != "" && p.OwnerID == externalID
}

func (p Project) Matches(f ListProjectsFilter) bool {
	if p.Archived || p.OwnerID != f.OwnerID {
		return false
	}
	return f.Type == nil || p.Type == *f.Type
}
