package httpx_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/k1networth/stepflow/internal/shared/httpx"
	"github.com/k1networth/stepflow/internal/shared/logger"
)

type pingRoutes struct{}

func (pingRoutes) Register(mux *http.ServeMux) {
	mux.Handle("GET /v1/ping/{id}", httpx.WithRoute("/v1/ping/{id}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "boom" {
			httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"id": r.PathValue("id")})
	})))
}

func newRouterForTest() http.Handler {
	return httpx.NewRouter(logger.Discard(), prometheus.NewRegistry(), pingRoutes{})
}

func TestHealthzReturns200AndBodyOK(t *testing.T) {
	srv := httptest.NewServer(newRouterForTest())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, resp.StatusCode)
	}
}

func TestRequestIDGeneratedIfMissing(t *testing.T) {
	srv := httptest.NewServer(newRouterForTest())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	got := resp.Header.Get("X-Request-Id")
	re := regexp.MustCompile(`^[0-9a-f]{32}$`)
	if !re.MatchString(got) {
		t.Fatalf("expected 32-char hex request id, got %q", got)
	}
}

func TestRequestIDEchoedInErrorBody(t *testing.T) {
	srv := httptest.NewServer(newRouterForTest())
	t.Cleanup(srv.Close)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/ping/boom", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("X-Request-Id", "test123")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if got := resp.Header.Get("X-Request-Id"); got != "test123" {
		t.Fatalf("expected X-Request-Id %q, got %q", "test123", got)
	}
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), `"request_id":"test123"`) {
		t.Fatalf("expected request id in error body, got %s", b)
	}
}

func TestMetricsUseRouteTemplate(t *testing.T) {
	srv := httptest.NewServer(newRouterForTest())
	t.Cleanup(srv.Close)

	for _, id := range []string{"a", "b"} {
		resp, err := http.Get(srv.URL + "/v1/ping/" + id)
		if err != nil {
			t.Fatalf("do request: %v", err)
		}
		_ = resp.Body.Close()
	}

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	b, _ := io.ReadAll(resp.Body)

	want := `stepflow_http_requests_total{method="GET",route="/v1/ping/{id}",status="200"} 2`
	if !strings.Contains(string(b), want) {
		t.Fatalf("expected %q in metrics output:\n%s", want, b)
	}
}
