package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seen struct {
	method string
	path   string
	auth   string
	body   string
}

func fakeServer(t *testing.T, status int, reply string) (*httptest.Server, *seen) {
	t.Helper()
	s := &seen{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		*s = seen{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization"), body: string(b)}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, s
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(bytes.NewBufferString(stdin))
	rootCmd.SetArgs(args)
	token = ""
	err := rootCmd.Execute()
	return out.String(), err
}

func TestLeadGet(t *testing.T) {
	srv, s := fakeServer(t, http.StatusOK, `{"lead_id":"L1","status":"PHASE_1_COMPLETE"}`)

	out, err := execute(t, "", "lead", "get", "L1", "--server", srv.URL, "--token", "tok")
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, s.method)
	assert.Equal(t, "/api/v1/leads/L1", s.path)
	assert.Equal(t, "Bearer tok", s.auth)

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "PHASE_1_COMPLETE", got["status"])
}

func TestLeadRetry_ReportsServerError(t *testing.T) {
	srv, s := fakeServer(t, http.StatusConflict, `{"error":"invalid status transition"}`)

	_, err := execute(t, "", "lead", "retry", "L1", "--server", srv.URL, "--token", "tok")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
	assert.Contains(t, err.Error(), "invalid status transition")
	assert.Equal(t, "/api/v1/leads/L1/retry", s.path)
}

func TestLeadGet_NeedsToken(t *testing.T) {
	srv, _ := fakeServer(t, http.StatusOK, `{}`)
	_, err := execute(t, "", "lead", "get", "L1", "--server", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no token")
}

func TestLogin_PrintsToken(t *testing.T) {
	srv, s := fakeServer(t, http.StatusOK, `{"token":"jwt-abc","email":"ops@example.com","role":"operator"}`)

	out, err := execute(t, "", "login", "--server", srv.URL, "--email", "ops@example.com", "--password", "pw")
	require.NoError(t, err)
	assert.Equal(t, "jwt-abc\n", out)
	assert.Equal(t, "/api/v1/auth/login", s.path)
	assert.JSONEq(t, `{"email":"ops@example.com","password":"pw"}`, s.body)
	assert.Empty(t, s.auth)
}

func TestPreview_FromFileAndStdin(t *testing.T) {
	srv, s := fakeServer(t, http.StatusOK, `{"phase":"phase-one"}`)
	path := filepath.Join(t.TempDir(), "sub.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"business_legal_name":"Acme"}`), 0o600))

	_, err := execute(t, "", "preview", "phase-one", path, "--server", srv.URL, "--token", "tok")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/preview/phase-one", s.path)
	assert.JSONEq(t, `{"business_legal_name":"Acme"}`, s.body)

	_, err = execute(t, `{"lead_id":"L1"}`, "preview", "2", "-", "--server", srv.URL, "--token", "tok")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/preview/2", s.path)
	assert.JSONEq(t, `{"lead_id":"L1"}`, s.body)

	_, err = execute(t, "  ", "preview", "1", "--server", srv.URL, "--token", "tok")
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	srv, s := fakeServer(t, http.StatusOK, `{"status":"ok","checks":{}}`)
	out, err := execute(t, "", "health", "--server", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "/healthz", s.path)
	assert.Contains(t, out, `"status": "ok"`)
}
