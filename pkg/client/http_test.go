package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestPostSendsJSON verifies the body and content type reach the server.
func TestPostSendsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["q"]})
	}))
	defer srv.Close()

	var out map[string]string
	err := NewHTTPClient().Post(context.Background(), srv.URL, map[string]string{"q": "hello"}, &out)
	require.NoError(t, err)
	require.Equal(t, "hello", out["echo"])
}

// TestNonOKStatus verifies error bodies are surfaced.
func TestNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	var out map[string]string
	err := NewHTTPClient().Get(context.Background(), srv.URL, &out)
	require.ErrorContains(t, err, "502")
	require.ErrorContains(t, err, "bad gateway")
}
