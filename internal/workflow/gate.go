package workflow

import (
	"context"
	"errors"
	"log/slog"

	"github.com/k1networth/stepflow/internal/dedup"
	"github.com/k1networth/stepflow/internal/shared/events"
)

// Gate is the orchestrator's inbound side: raw envelopes are validated, optionally
// deduplicated by event id, and handed to the Engine. Validation failures are returned as
// *events.ValidationError and never reach the Engine.
type Gate struct {
	Engine  *Engine
	Dedup   dedup.Store // nil disables deduplication
	Log     *slog.Logger
	Metrics *Metrics
}

func (g *Gate) HandleWorkflowStarted(ctx context.Context, raw []byte) error {
	ev, err := events.DecodeWorkflowStarted(raw)
	if err != nil {
		g.rejected(events.KindWorkflowStarted, err)
		return err
	}
	return g.process(ctx, events.KindWorkflowStarted, ev.Meta, ev.Data.WorkflowID, func(ctx context.Context) error {
		return g.Engine.OnWorkflowStarted(ctx, ev)
	})
}

func (g *Gate) HandleStepCompleted(ctx context.Context, raw []byte) error {
	ev, err := events.DecodeStepCompleted(raw)
	if err != nil {
		g.rejected(events.KindStepCompleted, err)
		return err
	}
	return g.process(ctx, events.KindStepCompleted, ev.Meta, ev.Data.WorkflowID, func(ctx context.Context) error {
		return g.Engine.OnStepCompleted(ctx, ev)
	})
}

func (g *Gate) process(ctx context.Context, kind events.Kind, meta events.Meta, workflowID string, fn func(context.Context) error) error {
	if g.Dedup != nil {
		ok, err := g.Dedup.Begin(ctx, dedup.Event{EventID: meta.EventID, Kind: kind.String(), WorkflowID: workflowID})
		if errors.Is(err, dedup.ErrInProgress) {
			g.Log.Info("event_in_progress",
				slog.String("kind", kind.String()),
				slog.String("event_id", meta.EventID),
				slog.String("workflow_id", workflowID),
			)
			g.Metrics.processed(kind.String(), "in_progress")
			return err
		}
		if err != nil {
			g.Metrics.processed(kind.String(), "error")
			return err
		}
		if !ok {
			g.Log.Info("event_duplicate_skipped",
				slog.String("kind", kind.String()),
				slog.String("event_id", meta.EventID),
				slog.String("workflow_id", workflowID),
			)
			g.Metrics.processed(kind.String(), "duplicate")
			return nil
		}
	}

	if err := fn(ctx); err != nil {
		g.Metrics.processed(kind.String(), "error")
		if g.Dedup != nil {
			if ferr := g.Dedup.Failed(ctx, meta.EventID, err.Error()); ferr != nil {
				g.Log.Error("dedup_mark_failed_error", slog.String("event_id", meta.EventID), slog.String("err", ferr.Error()))
			}
		}
		return err
	}

	g.Metrics.processed(kind.String(), "ok")
	if g.Dedup != nil {
		if err := g.Dedup.Done(ctx, meta.EventID); err != nil {
			g.Log.Error("dedup_mark_done_error", slog.String("event_id", meta.EventID), slog.String("err", err.Error()))
		}
	}
	return nil
}

func (g *Gate) rejected(kind events.Kind, err error) {
	g.Metrics.processed(kind.String(), "invalid")
	g.Log.Warn("event_rejected", slog.String("kind", kind.String()), slog.String("err", err.Error()))
}
