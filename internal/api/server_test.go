package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shohag/msgboard/internal/config"
	"github.com/shohag/msgboard/internal/edge"
	"github.com/shohag/msgboard/internal/storage"
)

type stubNodes struct {
	data json.RawMessage
	err  error
}

func (s stubNodes) ListNodes(ctx context.Context) (json.RawMessage, error) {
	return s.data, s.err
}

type testEnv struct {
	store   *storage.MemoryStorage
	handler http.Handler
}

func newTestEnv(t *testing.T, nodes NodeLister, devices config.DevicesConfig) *testEnv {
	t.Helper()

	store := storage.NewMemory()
	srv := NewServer(
		config.ServerConfig{MaxBodyBytes: 1024},
		devices,
		Deps{Store: store, Nodes: nodes, Decrypter: edge.NewDecrypter("")},
		zerolog.Nop(),
	)
	return &testEnv{store: store, handler: srv.Handler()}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()

	var apiErr APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &apiErr); err != nil {
		t.Fatalf("decode error envelope %q: %v", rec.Body.String(), err)
	}
	if apiErr.Code != rec.Code {
		t.Fatalf("envelope code %d does not match status %d", apiErr.Code, rec.Code)
	}
	return apiErr
}

func TestUnmatchedRoutesReturnNotFound(t *testing.T) {
	env := newTestEnv(t, stubNodes{}, config.DevicesConfig{})

	for _, tc := range []struct{ method, path string }{
		{http.MethodPut, "/messages"},
		{http.MethodPatch, "/messages/a"},
		{http.MethodGet, "/nothing"},
		{http.MethodPost, "/devices"},
	} {
		rec := env.do(t, tc.method, tc.path, "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s %s: expected 404, got %d", tc.method, tc.path, rec.Code)
		}
		if apiErr := decodeAPIError(t, rec); apiErr.Message != "not found" {
			t.Fatalf("%s %s: unexpected message %q", tc.method, tc.path, apiErr.Message)
		}
	}
}

func TestHealthReportsMessageCount(t *testing.T) {
	env := newTestEnv(t, stubNodes{}, config.DevicesConfig{})
	env.do(t, http.MethodPost, "/messages", `{"id":"a"}`)

	rec := env.do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Status   string `json:"status"`
		Service  string `json:"service"`
		Messages int64  `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if body.Status != "ok" || body.Service != "msgboard" || body.Messages != 1 {
		t.Fatalf("unexpected health body %s", rec.Body.String())
	}
}

func TestRecoverMiddlewareWritesEnvelope(t *testing.T) {
	h := RecoverMiddleware(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if apiErr := decodeAPIError(t, rec); apiErr.Message != "boom" {
		t.Fatalf("unexpected message %q", apiErr.Message)
	}
}

func TestExtractToken(t *testing.T) {
	cases := map[string]string{
		"":               "",
		"Bearer abc":     "abc",
		"bearer  abc ":   "abc",
		"abc":            "abc",
		"Basic dXNlcjpw": "",
	}
	for in, want := range cases {
		if got := ExtractToken(in); got != want {
			t.Fatalf("ExtractToken(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewAPIErrorDefaultsToBadRequest(t *testing.T) {
	if err := NewAPIError(0, "x"); err.Code != http.StatusBadRequest {
		t.Fatalf("expected default 400, got %d", err.Code)
	}
}
