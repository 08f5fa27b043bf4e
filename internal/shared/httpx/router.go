package httpx

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes is implemented by the service-specific API handlers.
type Routes interface {
	Register(mux *http.ServeMux)
}

// NewRouter builds the shared mux: health checks, /metrics (when reg is non-nil) and the given routes,
// wrapped in request-id, access-log and metrics middleware.
func NewRouter(log *slog.Logger, reg *prometheus.Registry, routes ...Routes) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if reg != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	for _, rt := range routes {
		rt.Register(mux)
	}

	var h http.Handler = mux
	if reg != nil {
		h = NewMetrics(reg).Middleware(h)
	}
	h = AccessLog(log)(h)
	h = RequestID(h)

	return h
}
