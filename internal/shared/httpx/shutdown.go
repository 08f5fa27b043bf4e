package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Shutdown drains srv once ctx is cancelled.
func Shutdown(ctx context.Context, log *slog.Logger, srv *http.Server, timeout time.Duration) {
	<-ctx.Done()

	log.Info("shutdown_start", slog.String("addr", srv.Addr))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown_failed", slog.String("err", err.Error()))
	}

	log.Info("shutdown_done", slog.String("addr", srv.Addr))
}

// Serve runs srv until ctx is cancelled.
func Serve(ctx context.Context, log *slog.Logger, srv *http.Server) {
	go func() {
		log.Info("http_listen", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http_server_error", slog.String("err", err.Error()))
		}
	}()
	Shutdown(ctx, log, srv, 10*time.Second)
}
