package integration_test

import (
	"net/http"
	"sync"
	"testing"

	"github.com/geocoder89/visionhub/internal/domain/project"
)

type listResponse struct {
	Items []project.Project `json:"items"`
	Count int               `json:"count"`
}

func createProject(t *testing.T, app *testApp, token, body string) project.Project {
	t.Helper()
	w := doRequest(app.router, http.MethodPost, "/projects", body, token)
	expectStatus(t, w, http.StatusCreated)

	var p project.Project
	mustReadJSON(t, w, &p)
	return p
}

func TestProjectsIntegration_Lifecycle(t *testing.T) {
	app := setupTestApp(t)
	alice := app.token(t, "alice", "alice@example.com")
	bob := app.token(t, "bob", "bob@example.com")

	first := createProject(t, app, alice, `{"title":"Portfolio","icon":"🎨","type":"personal"}`)
	second := createProject(t, app, alice, `{"title":"Hub site","description":"Team page","icon":"🏠","type":"hub"}`)
	createProject(t, app, bob, `{"title":"Bob's","icon":"🛠","type":"personal"}`)

	if first.OwnerID != "alice" || first.ViewCount != 0 || first.Archived {
		t.Fatalf("unexpected new project: %+v", first)
	}

	// newest first, only the caller's
	w := doRequest(app.router, http.MethodGet, "/projects", "", alice)
	expectStatus(t, w, http.StatusOK)
	var list listResponse
	mustReadJSON(t, w, &list)
	if list.Count != 2 || list.Items[0].ID != second.ID || list.Items[1].ID != first.ID {
		t.Fatalf("unexpected list: %+v", list)
	}

	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("expected an ETag on list")
	}

	// type filter
	w = doRequest(app.router, http.MethodGet, "/projects?type=hub", "", alice)
	expectStatus(t, w, http.StatusOK)
	mustReadJSON(t, w, &list)
	if list.Count != 1 || list.Items[0].ID != second.ID {
		t.Fatalf("unexpected filtered list: %+v", list)
	}

	// views are open to any authenticated caller
	w = doRequest(app.router, http.MethodPost, "/projects/"+first.ID+"/views", "", bob)
	expectStatus(t, w, http.StatusOK)
	var viewed project.Project
	mustReadJSON(t, w, &viewed)
	if viewed.ViewCount != 1 {
		t.Fatalf("expected viewCount 1, got %d", viewed.ViewCount)
	}

	// reading and archiving are owner only
	w = doRequest(app.router, http.MethodGet, "/projects/"+first.ID, "", bob)
	expectStatus(t, w, http.StatusForbidden)

	w = doRequest(app.router, http.MethodPost, "/projects/"+first.ID+"/archive", "", bob)
	expectStatus(t, w, http.StatusForbidden)
	var e apiErrorResponse
	mustReadJSON(t, w, &e)
	if e.Error.Code != "not_authorized" {
		t.Fatalf("expected not_authorized, got %s", e.Error.Code)
	}

	w = doRequest(app.router, http.MethodPost, "/projects/"+first.ID+"/archive", "", alice)
	expectStatus(t, w, http.StatusOK)
	var archived project.Project
	mustReadJSON(t, w, &archived)
	if !archived.Archived {
		t.Fatalf("expected project to be archived")
	}

	// archiving again is a no-op
	w = doRequest(app.router, http.MethodPost, "/projects/"+first.ID+"/archive", "", alice)
	expectStatus(t, w, http.StatusOK)

	w = doRequest(app.router, http.MethodGet, "/projects", "", alice)
	expectStatus(t, w, http.StatusOK)
	mustReadJSON(t, w, &list)
	if list.Count != 1 || list.Items[0].ID != second.ID {
		t.Fatalf("archived project should be hidden: %+v", list)
	}
}

func TestProjectsIntegration_NotFoundAndValidation(t *testing.T) {
	app := setupTestApp(t)
	alice := app.token(t, "alice", "alice@example.com")

	for _, path := range []string{
		"/projects/00000000-0000-0000-0000-000000000000",
		"/projects/not-a-uuid",
	} {
		w := doRequest(app.router, http.MethodGet, path, "", alice)
		expectStatus(t, w, http.StatusNotFound)
	}

	w := doRequest(app.router, http.MethodPost, "/projects/not-a-uuid/views", "", alice)
	expectStatus(t, w, http.StatusNotFound)

	w = doRequest(app.router, http.MethodPost, "/projects", `{"title":"","icon":"x","type":"Hub Page"}`, alice)
	expectStatus(t, w, http.StatusBadRequest)

	w = doRequest(app.router, http.MethodGet, "/projects?type=NOT%20OK", "", alice)
	expectStatus(t, w, http.StatusBadRequest)
}

func TestProjectsIntegration_RequiresIdentity(t *testing.T) {
	app := setupTestApp(t)

	w := doRequest(app.router, http.MethodGet, "/projects", "", "")
	expectStatus(t, w, http.StatusUnauthorized)

	w = doRequest(app.router, http.MethodGet, "/projects", "", "garbage.token.value")
	expectStatus(t, w, http.StatusUnauthorized)
}

func TestProjectsIntegration_ConcurrentViews(t *testing.T) {
	app := setupTestApp(t)
	alice := app.token(t, "alice", "alice@example.com")
	p := createProject(t, app, alice, `{"title":"Busy","icon":"🔥","type":"hub"}`)

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doRequest(app.router, http.MethodPost, "/projects/"+p.ID+"/views", "", alice)
		}()
	}
	wg.Wait()

	w := doRequest(app.router, http.MethodGet, "/projects/"+p.ID, "", alice)
	expectStatus(t, w, http.StatusOK)
	var got project.Project
	mustReadJSON(t, w, &got)
	if got.ViewCount != n {
		t.Fatalf("expected %d views, got %d", n, got.ViewCount)
	}
}
