package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/geocoder89/visionhub/internal/http/handlers"
	"github.com/geocoder89/visionhub/internal/rpc"
	"github.com/gin-gonic/gin"
)

type fakeGateway struct {
	callFn func(ctx context.Context, name string, params map[string]json.RawMessage) (json.RawMessage, error)
	procs  []rpc.Procedure
}

func (f *fakeGateway) Call(ctx context.Context, name string, params map[string]json.RawMessage) (json.RawMessage, error) {
	return f.callFn(ctx, name, params)
}

func (f *fakeGateway) Procedures() []rpc.Procedure {
	return f.procs
}

func newRPCRouter(gw handlers.RPCGateway) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := handlers.NewRPCHandler(gw)
	r.GET("/rpc", h.ListProcedures)
	r.POST("/rpc/:procedure", h.Call)
	return r
}

func TestRPCCall_PassesParams(t *testing.T) {
	var gotName string
	var gotParams map[string]json.RawMessage
	gw := &fakeGateway{
		callFn: func(_ context.Context, name string, params map[string]json.RawMessage) (json.RawMessage, error) {
			gotName, gotParams = name, params
			return json.RawMessage(`{"ok":true}`), nil
		},
	}

	w := serve(newRPCRouter(gw), http.MethodPost, "/rpc/get_project", `{"p_project_id":"abc"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d body=%s", w.Code, w.Body.String())
	}
	if gotName != "get_project" || string(gotParams["p_project_id"]) != `"abc"` {
		t.Fatalf("unexpected call: %s %v", gotName, gotParams)
	}
	if w.Body.String() != `{"data":{"ok":true},"procedure":"get_project"}` {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestRPCCall_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"unknown", rpc.ErrUnknownProcedure, http.StatusNotFound, "not_found"},
		{"validation", &rpc.ValidationError{Procedure: "x", Fields: []rpc.FieldError{{Field: "p", Rule: "required"}}}, http.StatusBadRequest, "invalid_request"},
		{"no caller", rpc.ErrNoCaller, http.StatusUnauthorized, "unauthorized"},
		{"upstream", fmt.Errorf("%w: boom", rpc.ErrUpstream), http.StatusBadGateway, "upstream_error"},
		{"shape", rpc.ErrUnexpectedShape, http.StatusBadGateway, "upstream_error"},
		{"other", fmt.Errorf("surprise"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{
				callFn: func(context.Context, string, map[string]json.RawMessage) (json.RawMessage, error) {
					return nil, tt.err
				},
			}

			w := serve(newRPCRouter(gw), http.MethodPost, "/rpc/x", "")
			if w.Code != tt.wantCode {
				t.Fatalf("got status %d, want %d", w.Code, tt.wantCode)
			}
			if code := errorCode(t, w); code != tt.wantErr {
				t.Fatalf("got code %q, want %q", code, tt.wantErr)
			}
		})
	}
}

func TestRPCCall_RejectsNonObjectBody(t *testing.T) {
	gw := &fakeGateway{
		callFn: func(context.Context, string, map[string]json.RawMessage) (json.RawMessage, error) {
			t.Fatal("gateway should not be called")
			return nil, nil
		},
	}

	w := serve(newRPCRouter(gw), http.MethodPost, "/rpc/x", `"just a string"`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", w.Code)
	}
}

func TestRPCListProcedures(t *testing.T) {
	gw := &fakeGateway{procs: rpc.DefaultProcedures()}

	w := serve(newRPCRouter(gw), http.MethodGet, "/rpc", "")
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d", w.Code)
	}
	if w.Header().Get("ETag") == "" {
		t.Fatalf("expected ETag")
	}
}
