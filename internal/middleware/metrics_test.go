package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hellodevops/greeter/internal/metrics"
)

func TestMetrics_RecordsRoutePattern(t *testing.T) {
	t.Parallel()

	recorder := metrics.NewInMemory()

	r := chi.NewRouter()
	r.Use(Metrics(recorder))
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, path := range []string{"/", "/", "/items/1", "/items/2", "/missing"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	snap := recorder.Snapshot()

	want := map[string]struct {
		status int
		count  uint64
	}{
		"/":            {http.StatusOK, 2},
		"/items/{id}":  {http.StatusOK, 2},
		UnmatchedRoute: {http.StatusNotFound, 1},
	}

	if len(snap.Requests) != len(want) {
		t.Fatalf("expected %d series, got %d: %+v", len(want), len(snap.Requests), snap.Requests)
	}

	for _, got := range snap.Requests {
		w, ok := want[got.Route]
		if !ok {
			t.Errorf("unexpected route %q", got.Route)
			continue
		}
		if got.Status != w.status || got.Count != w.count {
			t.Errorf("route %q: status=%d count=%d, want status=%d count=%d",
				got.Route, got.Status, got.Count, w.status, w.count)
		}
	}
}
