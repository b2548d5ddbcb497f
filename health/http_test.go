package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
)

func newRouter(checkers ...Checker) http.Handler {
	agg := NewAggregator()
	for _, c := range checkers {
		agg.Register(c)
	}
	r := chi.NewRouter()
	Mount(r, agg)
	return r
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestLiveness(t *testing.T) {
	rec := get(t, newRouter(fixed("index", StatusUnhealthy)), "/healthz")
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("GET /healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name     string
		status   Status
		wantCode int
		wantBody string
	}{
		{"healthy", StatusHealthy, http.StatusOK, "OK"},
		{"degraded", StatusDegraded, http.StatusOK, "DEGRADED"},
		{"unhealthy", StatusUnhealthy, http.StatusServiceUnavailable, "UNHEALTHY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, newRouter(fixed("cache", StatusHealthy), fixed("index", tt.status)), "/readyz")
			if rec.Code != tt.wantCode || rec.Body.String() != tt.wantBody {
				t.Errorf("GET /readyz = %d %q, want %d %q", rec.Code, rec.Body.String(), tt.wantCode, tt.wantBody)
			}
		})
	}
}

func TestDetailed(t *testing.T) {
	failing := NewCheckerFunc("index", func(context.Context) Result {
		return Unhealthy("matrix index unavailable", ErrCheckFailed).WithDetails(map[string]any{"entries": 0})
	})
	rec := get(t, newRouter(fixed("cache", StatusHealthy), failing), "/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("GET /health = %d, want 503", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "unhealthy" || len(resp.Checks) != 2 {
		t.Fatalf("response = %+v", resp)
	}
	idx := resp.Checks["index"]
	if idx.Error != ErrCheckFailed.Error() || idx.Message != "matrix index unavailable" {
		t.Errorf("index check = %+v", idx)
	}
	if resp.Checks["cache"].Status != "healthy" {
		t.Errorf("cache check = %+v", resp.Checks["cache"])
	}
}

func TestSingleCheck(t *testing.T) {
	h := newRouter(fixed("cache", StatusDegraded))

	rec := get(t, h, "/health/cache")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health/cache = %d", rec.Code)
	}
	var resp CheckResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "degraded" {
		t.Errorf("status = %q, want degraded", resp.Status)
	}

	if rec := get(t, h, "/health/missing"); rec.Code != http.StatusNotFound {
		t.Errorf("GET /health/missing = %d, want 404", rec.Code)
	}
}
