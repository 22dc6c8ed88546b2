package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/visionhub/internal/auth"
	"github.com/geocoder89/visionhub/internal/config"
	"github.com/geocoder89/visionhub/internal/http/handlers"
	apphttp "github.com/geocoder89/visionhub/internal/http"
	"github.com/geocoder89/visionhub/internal/identity"
	"github.com/geocoder89/visionhub/internal/lookup"
	"github.com/geocoder89/visionhub/internal/metadata"
	"github.com/geocoder89/visionhub/internal/repo/memory"
	"github.com/geocoder89/visionhub/internal/rpc"
	"github.com/gin-gonic/gin"
)

const testIssuer = "https://issuer.test/vision-hub"

type apiErrorResponse struct {
	Error struct {
		Code      string          `json:"code"`
		Message   string          `json:"message"`
		RequestID string          `json:"requestId"`
		Details   json.RawMessage `json:"details"`
	} `json:"error"`
}

// recordingCaller stands in for the reporting backend.
type recordingCaller struct {
	mu    sync.Mutex
	calls []rpc.Arg
	reply json.RawMessage
	err   error
}

func (c *recordingCaller) Call(_ context.Context, _ rpc.Procedure, args []rpc.Arg) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, args...)
	if c.err != nil {
		return nil, c.err
	}
	return c.reply, nil
}

func (c *recordingCaller) args() []rpc.Arg {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]rpc.Arg(nil), c.calls...)
}

type testApp struct {
	router   http.Handler
	tokens   *auth.HMACVerifier
	users    *memory.UsersRepo
	projects *memory.ProjectsRepo
	caller   *recordingCaller
}

func testConfig() config.Config {
	return config.Config{
		Env:                "test",
		ServiceName:        "visionhub-test",
		StoreBackend:       config.StoreBackendMemory,
		AuthMode:           config.AuthModeHMAC,
		AuthIssuer:         testIssuer,
		AuthHMACSecret:     "integration-test-secret",
		AdminExternalID:    "admin-ext",
		AdminEmail:         "admin@example.com",
		AdminName:          "Test Admin",
		MetadataRateLimit:  2,
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		MaxBodyBytes:       1 << 20,
	}
}

func setupTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tokens, err := auth.NewHMACVerifier(cfg.AuthHMACSecret, cfg.AuthIssuer, time.Hour)
	if err != nil {
		t.Fatalf("failed to create verifier: %v", err)
	}

	users := memory.NewUsersRepo()
	projects := memory.NewProjectsRepo()

	if err := identity.EnsureAdminUser(context.Background(), users, cfg); err != nil {
		t.Fatalf("failed to seed admin: %v", err)
	}

	caller := &recordingCaller{reply: json.RawMessage(`[{"id":"w1","name":"Studio"}]`)}
	gateway := rpc.NewGateway(rpc.MustRegistry(rpc.DefaultProcedures()...), caller, logger)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/extract" {
			_, _ = w.Write([]byte(`{"title":"Example","description":"An example page","images":["https://example.com/a.png"]}`))
			return
		}
		_, _ = w.Write([]byte(`{"icons":[{"src":"https://example.com/favicon.ico"}]}`))
	}))
	t.Cleanup(upstream.Close)

	fetcher := metadata.NewFetcher(metadata.Config{
		ServiceURL: upstream.URL + "/extract",
		FaviconURL: upstream.URL + "/grab",
		Timeout:    2 * time.Second,
	}, upstream.Client(), nil, logger, nil)

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "skills.csv"), "name,category\nGo,backend\nFigma,design\nGolang tooling,backend\n")
	writeFile(t, filepath.Join(dir, "education_programs.csv"), "program;school\nDesign;Campus\n")

	router := apphttp.NewRouter(logger, cfg, apphttp.Dependencies{
		Projects: projects,
		Users:    users,
		Resolver: identity.NewResolver(tokens, users, logger),
		Gateway:  gateway,
		Metadata: fetcher,
		Lookups:  lookup.NewStore(dir, time.Minute),
		Checks: map[string]handlers.PingFunc{
			"memory": func(context.Context) error { return nil },
		},
	})

	return &testApp{
		router:   router,
		tokens:   tokens,
		users:    users,
		projects: projects,
		caller:   caller,
	}
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func (a *testApp) token(t *testing.T, externalID, email string) string {
	t.Helper()
	tok, err := a.tokens.Issue(externalID, email, "Test "+externalID, "")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return tok
}

func doRequest(router http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))

	if method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func mustReadJSON[T any](t *testing.T, w *httptest.ResponseRecorder, out *T) {
	t.Helper()
	err := json.Unmarshal(w.Body.Bytes(), out)
	if err != nil {
		t.Fatalf("failed to unmarshal json: %v, body=%s", err, w.Body.String())
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, want, w.Body.String())
	}
}
