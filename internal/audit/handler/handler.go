package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"custodian/internal/audit"
	"custodian/internal/platform/middleware"
	respond "custodian/internal/transport/http/json"
	"custodian/internal/transport/http/shared"
	id "custodian/pkg/domain"
	dErrors "custodian/pkg/domain-errors"
)

// Service defines the audit trail read surface.
type Service interface {
	List(ctx context.Context, workspaceID string) ([]audit.Event, error)
}

// Handler exposes the compliance audit trail.
type Handler struct {
	logger *slog.Logger
	trail  Service
}

// New creates an audit Handler.
func New(trail Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger,
		trail:  trail,
	}
}

// Register registers the audit routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/workspaces/{workspaceID}/audit-log", h.handleListEvents)
}

type eventResponse struct {
	Timestamp time.Time `json:"timestamp"`
	SubjectID string    `json:"subjectId,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Action    string    `json:"action"`
	Category  string    `json:"category,omitempty"`
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workspaceID, err := id.ParseWorkspaceID(chi.URLParam(r, "workspaceID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	events, err := h.trail.List(ctx, workspaceID.String())
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list audit events",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit events"))
		return
	}

	response := make([]eventResponse, 0, len(events))
	for _, event := range events {
		response = append(response, eventResponse{
			Timestamp: event.Timestamp,
			SubjectID: event.SubjectID,
			Actor:     event.Actor,
			Action:    event.Action,
			Category:  event.Category,
			Outcome:   event.Outcome,
			Reason:    event.Reason,
		})
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"events": response})
}
