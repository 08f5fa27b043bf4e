package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/k1networth/stepflow/internal/dedup"
	"github.com/k1networth/stepflow/internal/shared/events"
	"github.com/k1networth/stepflow/internal/shared/httpx"
)

// Handler exposes the Gate over HTTP for producers that do not publish to Kafka.
type Handler struct {
	Log  *slog.Logger
	Gate *Gate
	Repo Repository
}

type acceptedResponse struct {
	Status        string `json:"status"`
	CorrelationID string `json:"correlation_id"`
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("POST /v1/workflow/start", httpx.WithRoute("/v1/workflow/start", http.HandlerFunc(h.StartWorkflow)))
	mux.Handle("POST /v1/step/completed", httpx.WithRoute("/v1/step/completed", http.HandlerFunc(h.StepCompleted)))
	mux.Handle("GET /v1/workflows/{id}", httpx.WithRoute("/v1/workflows/{id}", http.HandlerFunc(h.GetWorkflow)))
}

func (h *Handler) StartWorkflow(w http.ResponseWriter, r *http.Request) {
	h.accept(w, r, h.Gate.HandleWorkflowStarted)
}

func (h *Handler) StepCompleted(w http.ResponseWriter, r *http.Request) {
	h.accept(w, r, h.Gate.HandleStepCompleted)
}

func (h *Handler) accept(w http.ResponseWriter, r *http.Request, handle func(context.Context, []byte) error) {
	raw, err := httpx.ReadBody(w, r)
	if err != nil {
		msg := "invalid body"
		if errors.Is(err, httpx.ErrEmptyBody) {
			msg = "empty body"
		}
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", msg)
		return
	}

	if err := handle(r.Context(), raw); err != nil {
		var verr *events.ValidationError
		if errors.As(err, &verr) {
			httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", verr.Error())
			return
		}
		if errors.Is(err, dedup.ErrInProgress) {
			httpx.WriteError(w, r, http.StatusConflict, "in_progress", "event is being processed, retry later")
			return
		}
		h.Log.Error("event_handle_failed", slog.String("path", r.URL.Path), slog.String("err", err.Error()))
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	var env struct {
		Meta events.Meta `json:"meta"`
	}
	_ = json.Unmarshal(raw, &env)
	httpx.WriteJSON(w, http.StatusAccepted, acceptedResponse{Status: "accepted", CorrelationID: env.Meta.CorrelationID})
}

func (h *Handler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		httpx.WriteError(w, r, http.StatusNotFound, "not_found", "not found")
		return
	}

	st, err := h.Repo.Load(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.WriteError(w, r, http.StatusNotFound, "not_found", "not found")
			return
		}
		h.Log.Error("workflow_get_failed", slog.String("workflow_id", id), slog.String("err", err.Error()))
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, st)
}
