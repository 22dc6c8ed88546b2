package handlers

import (
	"net/http"

	"github.com/geocoder89/visionhub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type SessionHandler struct{}

func NewSessionHandler() *SessionHandler {
	return &SessionHandler{}
}

// Session reports who the caller is, or {"user": null} when anonymous.
func (h *SessionHandler) Session(ctx *gin.Context) {
	u, ok := middlewares.CurrentUser(ctx)
	if !ok {
		ctx.JSON(http.StatusOK, gin.H{"user": nil})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": u})
}

func (h *SessionHandler) Me(ctx *gin.Context) {
	u, ok := middlewares.CurrentUser(ctx)
	if !ok {
		RespondUnauthorized(ctx, "Authentication required")
		return
	}

	ctx.JSON(http.StatusOK, u)
}
