package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Cobb-ukr/ai-test-agent/api/v1"
	"github.com/Cobb-ukr/ai-test-agent/database"
)

type pingStore struct {
	database.Datastore

	up bool
}

func (s *pingStore) Ping() bool { return s.up }

func TestRouterDispatchesKnownVersion(t *testing.T) {
	handler := newAPIHandler(&Config{}, &v1.Env{})

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from a v1 route, got %d", w.Code)
	}
}

func TestRouterUnknownVersion(t *testing.T) {
	handler := newAPIHandler(&Config{}, &v1.Env{})

	for _, path := range []string{"/v2/metrics", "/v9/submissions", "/metrics", "/"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404 for %q, got %d", path, w.Code)
		}
	}
}

func TestHealthHandler(t *testing.T) {
	handler := newHealthHandler(&pingStore{up: true})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 when the datastore pings, got %d", w.Code)
	}
	if w.Header().Get("Server") != "ai-test-agent" {
		t.Fatalf("missing Server header")
	}

	handler = newHealthHandler(&pingStore{up: false})
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 when the datastore is down, got %d", w.Code)
	}
}
