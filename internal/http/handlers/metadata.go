package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/geocoder89/visionhub/internal/metadata"
	"github.com/gin-gonic/gin"
)

type MetadataFetcher interface {
	Fetch(ctx context.Context, rawURL string) (metadata.Page, error)
}

type MetadataHandler struct {
	fetcher MetadataFetcher
}

func NewMetadataHandler(fetcher MetadataFetcher) *MetadataHandler {
	return &MetadataHandler{fetcher: fetcher}
}

func (h *MetadataHandler) GetMetadata(ctx *gin.Context) {
	raw := ctx.Query("url")
	if raw == "" {
		RespondBadRequest(ctx, "Invalid query parameters", gin.H{"fields": []FieldError{{
			Field:   "url",
			Rule:    "required",
			Message: validationMessage("required", ""),
		}}})
		return
	}

	page, err := h.fetcher.Fetch(ctx.Request.Context(), raw)
	if err != nil {
		switch {
		case errors.Is(err, metadata.ErrInvalidURL):
			RespondBadRequest(ctx, "Invalid query parameters", gin.H{"fields": []FieldError{{
				Field:   "url",
				Rule:    "url",
				Message: "must be an absolute http or https url",
			}}})
		case errors.Is(err, metadata.ErrUpstream):
			RespondBadGateway(ctx, "Could not fetch link metadata")
		default:
			RespondInternal(ctx, "Could not fetch link metadata")
		}
		return
	}

	ctx.JSON(http.StatusOK, page)
}
