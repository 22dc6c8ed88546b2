package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/geocoder89/visionhub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

type UserLookup interface {
	GetByExternalID(ctx context.Context, externalID string) (user.User, error)
}

type AdminUsersHandler struct {
	users UserLookup
}

func NewAdminUsersHandler(users UserLookup) *AdminUsersHandler {
	return &AdminUsersHandler{users: users}
}

func (h *AdminUsersHandler) GetUser(ctx *gin.Context) {
	c, cancel := storeCtx(ctx)
	defer cancel()

	u, err := h.users.GetByExternalID(c, ctx.Param("externalId"))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondInternal(ctx, "Could not fetch user")
		return
	}

	ctx.JSON(http.StatusOK, u)
}
