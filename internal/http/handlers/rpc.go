package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/geocoder89/visionhub/internal/rpc"
	"github.com/gin-gonic/gin"
)

type RPCGateway interface {
	Call(ctx context.Context, name string, params map[string]json.RawMessage) (json.RawMessage, error)
	Procedures() []rpc.Procedure
}

type RPCHandler struct {
	gateway RPCGateway
}

func NewRPCHandler(gateway RPCGateway) *RPCHandler {
	return &RPCHandler{gateway: gateway}
}

func (h *RPCHandler) ListProcedures(ctx *gin.Context) {
	procs := h.gateway.Procedures()

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"items": procs,
		"count": len(procs),
	})
}

// Call runs a registered procedure. The body is an optional JSON object of
// named params.
func (h *RPCHandler) Call(ctx *gin.Context) {
	name := ctx.Param("procedure")

	body, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		RespondBadRequest(ctx, "Invalid request body", gin.H{"reason": "unreadable body"})
		return
	}

	var params map[string]json.RawMessage
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &params); err != nil {
			RespondBadRequest(ctx, "Invalid request body", gin.H{"json": "params must be a JSON object"})
			return
		}
	}

	data, err := h.gateway.Call(ctx.Request.Context(), name, params)
	if err != nil {
		var ve *rpc.ValidationError
		switch {
		case errors.Is(err, rpc.ErrUnknownProcedure):
			RespondNotFound(ctx, "Unknown procedure")
		case errors.As(err, &ve):
			RespondBadRequest(ctx, "Invalid procedure parameters", gin.H{"fields": ve.Fields})
		case errors.Is(err, rpc.ErrNoCaller):
			RespondUnauthorized(ctx, "Authentication required")
		case errors.Is(err, rpc.ErrUpstream), errors.Is(err, rpc.ErrUnexpectedShape):
			RespondBadGateway(ctx, "Procedure backend failed")
		default:
			RespondInternal(ctx, "Could not run procedure")
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"procedure": name,
		"data":      data,
	})
}
