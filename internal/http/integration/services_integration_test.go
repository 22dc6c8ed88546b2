package integration_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/geocoder89/visionhub/internal/metadata"
	"github.com/geocoder89/visionhub/internal/rpc"
)

func TestRPCIntegration_CallerScopedProcedure(t *testing.T) {
	app := setupTestApp(t)
	tok := app.token(t, "frank", "frank@example.com")

	w := doRequest(app.router, http.MethodGet, "/me", "", tok)
	expectStatus(t, w, http.StatusOK)
	var me struct {
		ID string `json:"id"`
	}
	mustReadJSON(t, w, &me)

	// a client supplied profile id is replaced by the caller's own
	w = doRequest(app.router, http.MethodPost, "/rpc/list_user_workspaces",
		`{"p_profile_id":"00000000-0000-0000-0000-000000000001"}`, tok)
	expectStatus(t, w, http.StatusOK)

	var resp struct {
		Procedure string          `json:"procedure"`
		Data      json.RawMessage `json:"data"`
	}
	mustReadJSON(t, w, &resp)
	if resp.Procedure != "list_user_workspaces" || string(resp.Data) != `[{"id":"w1","name":"Studio"}]` {
		t.Fatalf("unexpected rpc response: %s", w.Body.String())
	}

	args := app.caller.args()
	if len(args) != 1 || args[0].Name != "p_profile_id" || args[0].Value != me.ID {
		t.Fatalf("expected caller id %s bound, got %+v", me.ID, args)
	}
}

func TestRPCIntegration_Errors(t *testing.T) {
	app := setupTestApp(t)
	tok := app.token(t, "gina", "gina@example.com")

	w := doRequest(app.router, http.MethodPost, "/rpc/drop_everything", "", tok)
	expectStatus(t, w, http.StatusNotFound)

	w = doRequest(app.router, http.MethodPost, "/rpc/list_websites", `{"p_workspace_id":"nope"}`, tok)
	expectStatus(t, w, http.StatusBadRequest)

	w = doRequest(app.router, http.MethodPost, "/rpc/list_websites", `[1,2]`, tok)
	expectStatus(t, w, http.StatusBadRequest)

	w = doRequest(app.router, http.MethodPost, "/rpc/list_websites", "", "")
	expectStatus(t, w, http.StatusUnauthorized)

	app.caller.err = rpc.ErrUpstream
	w = doRequest(app.router, http.MethodPost, "/rpc/list_user_workspaces", "", tok)
	expectStatus(t, w, http.StatusBadGateway)
}

func TestRPCIntegration_ListProcedures(t *testing.T) {
	app := setupTestApp(t)
	tok := app.token(t, "hank", "hank@example.com")

	w := doRequest(app.router, http.MethodGet, "/rpc", "", tok)
	expectStatus(t, w, http.StatusOK)

	var resp struct {
		Count int `json:"count"`
	}
	mustReadJSON(t, w, &resp)
	if resp.Count != len(rpc.DefaultProcedures()) {
		t.Fatalf("expected %d procedures, got %d", len(rpc.DefaultProcedures()), resp.Count)
	}
}

func TestMetadataIntegration_FetchAndRateLimit(t *testing.T) {
	app := setupTestApp(t)
	tok := app.token(t, "ivy", "ivy@example.com")

	w := doRequest(app.router, http.MethodGet, "/metadata?url=https://example.com/post%23intro", "", tok)
	expectStatus(t, w, http.StatusOK)

	var page metadata.Page
	mustReadJSON(t, w, &page)
	if page.Title != "Example" || page.Image != "https://example.com/a.png" || page.Favicon != "https://example.com/favicon.ico" {
		t.Fatalf("unexpected page: %+v", page)
	}

	w = doRequest(app.router, http.MethodGet, "/metadata?url=ftp://example.com", "", tok)
	expectStatus(t, w, http.StatusBadRequest)

	// limit is 2 per minute per caller
	w = doRequest(app.router, http.MethodGet, "/metadata?url=https://example.com", "", tok)
	expectStatus(t, w, http.StatusTooManyRequests)

	// a different caller has their own budget
	w = doRequest(app.router, http.MethodGet, "/metadata", "", app.token(t, "jack", "jack@example.com"))
	expectStatus(t, w, http.StatusBadRequest)
}

func TestLookupsIntegration(t *testing.T) {
	app := setupTestApp(t)

	w := doRequest(app.router, http.MethodGet, "/lookups/skills?q=go", "", "")
	expectStatus(t, w, http.StatusOK)

	var resp struct {
		Table   string              `json:"table"`
		Columns []string            `json:"columns"`
		Items   []map[string]string `json:"items"`
		Count   int                 `json:"count"`
	}
	mustReadJSON(t, w, &resp)
	if resp.Table != "skills" || resp.Count != 2 || resp.Items[0]["name"] != "Go" {
		t.Fatalf("unexpected lookup: %s", w.Body.String())
	}

	w = doRequest(app.router, http.MethodGet, "/lookups/programs", "", "")
	expectStatus(t, w, http.StatusOK)
	mustReadJSON(t, w, &resp)
	if resp.Count != 1 || resp.Items[0]["school"] != "Campus" {
		t.Fatalf("unexpected programs: %s", w.Body.String())
	}

	w = doRequest(app.router, http.MethodGet, "/lookups/secrets", "", "")
	expectStatus(t, w, http.StatusNotFound)
}

func TestHealthIntegration(t *testing.T) {
	app := setupTestApp(t)

	expectStatus(t, doRequest(app.router, http.MethodGet, "/healthz", "", ""), http.StatusOK)
	expectStatus(t, doRequest(app.router, http.MethodGet, "/readyz", "", ""), http.StatusOK)

	w := doRequest(app.router, http.MethodGet, "/docs/openapi.yaml", "", "")
	expectStatus(t, w, http.StatusOK)
}
