package project

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

func NewFromCreateRequest(ownerID string, req CreateProjectRequest) Project {
	now := time.Now().UTC()

	var desc *string
	if req.Description != nil {
		d := strings.TrimSpace(*req.Description)
		if d != "" {
			desc = &d
		}
	}

	return Project{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(req.Title),
		Description: desc,
		Icon:        req.Icon,
		Type:        req.Type,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
