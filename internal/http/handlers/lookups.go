package handlers

import (
	"errors"
	"net/http"

	"github.com/geocoder89/visionhub/internal/lookup"
	"github.com/gin-gonic/gin"
)

type LookupSource interface {
	Load(name string) (lookup.Table, error)
}

type LookupsHandler struct {
	source LookupSource
}

func NewLookupsHandler(source LookupSource) *LookupsHandler {
	return &LookupsHandler{source: source}
}

func (h *LookupsHandler) GetTable(ctx *gin.Context) {
	t, err := h.source.Load(ctx.Param("table"))
	if err != nil {
		if errors.Is(err, lookup.ErrUnknownTable) {
			RespondNotFound(ctx, "Lookup table not found")
			return
		}
		RespondInternal(ctx, "Could not load lookup table")
		return
	}

	t = t.Filter(ctx.Query("q"))

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"table":   t.Name,
		"columns": t.Columns,
		"items":   t.Rows,
		"count":   len(t.Rows),
	})
}
