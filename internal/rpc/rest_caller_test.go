package rpc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRESTCaller_Call(t *testing.T) {
	var gotPath, gotKey, gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("apikey")
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"t1"}]`))
	}))
	defer srv.Close()

	c := NewRESTCaller(srv.URL, "anon-key", srv.Client(), nil)
	out, err := c.Call(context.Background(), Procedure{Name: "list_tasks", Shape: ShapeRows}, []Arg{
		{Name: "p_profile_id", Kind: KindUUID, Value: "id-1"},
		{Name: "p_open_only", Kind: KindBool, Value: true},
	})
	require.NoError(t, err)

	assert.JSONEq(t, `[{"id":"t1"}]`, string(out))
	assert.Equal(t, "/rest/v1/rpc/list_tasks", gotPath)
	assert.Equal(t, "anon-key", gotKey)
	assert.Equal(t, "Bearer anon-key", gotAuth)
	assert.Equal(t, map[string]any{"p_profile_id": "id-1", "p_open_only": true}, gotBody)
}

func TestRESTCaller_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"function not found"}`))
	}))
	defer srv.Close()

	c := NewRESTCaller(srv.URL, "", srv.Client(), nil)
	_, err := c.Call(context.Background(), Procedure{Name: "list_tasks", Shape: ShapeRows}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}
