package worker

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/k1networth/stepflow/internal/shared/events"
	"github.com/k1networth/stepflow/internal/shared/httpx"
)

// API accepts StepScheduled envelopes over HTTP.
type API struct {
	Log      *slog.Logger
	Consumer *Consumer
}

func (a *API) Register(mux *http.ServeMux) {
	mux.Handle("POST /v1/step/schedule", httpx.WithRoute("/v1/step/schedule", http.HandlerFunc(a.ScheduleStep)))
}

func (a *API) ScheduleStep(w http.ResponseWriter, r *http.Request) {
	raw, err := httpx.ReadBody(w, r)
	if err != nil {
		msg := "invalid body"
		if errors.Is(err, httpx.ErrEmptyBody) {
			msg = "empty body"
		}
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", msg)
		return
	}

	if err := a.Consumer.HandleStepScheduled(r.Context(), raw); err != nil {
		var verr *events.ValidationError
		if errors.As(err, &verr) {
			httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", verr.Error())
			return
		}
		a.Log.Error("step_schedule_failed", slog.String("err", err.Error()))
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	httpx.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
