package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"custodian/internal/category"
	"custodian/internal/platform/middleware"
	respond "custodian/internal/transport/http/json"
	"custodian/internal/transport/http/shared"
	id "custodian/pkg/domain"
	dErrors "custodian/pkg/domain-errors"
)

// Store is the slice of the record store the handler needs.
type Store interface {
	CountGroupedBy(ctx context.Context, workspace id.WorkspaceID) (map[category.Category]int, error)
}

// Handler exposes a per-workspace summary of stored records, giving
// operators a quick view of what retention and deletion act on.
type Handler struct {
	logger *slog.Logger
	store  Store
}

// New creates a records Handler.
func New(store Store, logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger,
		store:  store,
	}
}

// Register registers the record summary route with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/workspaces/{workspaceID}/data-summary", h.handleDataSummary)
}

func (h *Handler) handleDataSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workspaceID, err := id.ParseWorkspaceID(chi.URLParam(r, "workspaceID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	counts, err := h.store.CountGroupedBy(ctx, workspaceID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to count records",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to summarize records"))
		return
	}

	summary := make(map[string]int, len(counts))
	total := 0
	for cat, count := range counts {
		summary[string(cat)] = count
		total += count
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{
		"categories": summary,
		"total":      total,
	})
}
