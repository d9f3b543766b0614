package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"custodian/internal/category"
	"custodian/internal/platform/middleware"
	"custodian/internal/retention/models"
	"custodian/internal/retention/service"
	respond "custodian/internal/transport/http/json"
	"custodian/internal/transport/http/shared"
	id "custodian/pkg/domain"
	dErrors "custodian/pkg/domain-errors"
)

// Service defines the retention operations the handler delegates to.
type Service interface {
	CreatePolicy(ctx context.Context, workspaceID id.WorkspaceID, cat category.Category, retentionDays int, action models.Action, conditions map[string]string) (*models.Policy, error)
	GetPolicy(ctx context.Context, workspaceID id.WorkspaceID, policyID id.PolicyID) (*models.Policy, error)
	ListPolicies(ctx context.Context, workspaceID id.WorkspaceID) ([]*models.Policy, error)
	UpdatePolicy(ctx context.Context, workspaceID id.WorkspaceID, policyID id.PolicyID, retentionDays int, action models.Action, isActive bool) (*models.Policy, error)
	ExecuteDuePolicies(ctx context.Context, now time.Time) (service.Summary, error)
}

// Handler handles retention policy endpoints.
type Handler struct {
	logger    *slog.Logger
	retention Service
}

// New creates a retention Handler.
func New(retention Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:    logger,
		retention: retention,
	}
}

// Register registers the retention routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/workspaces/{workspaceID}/retention-policies", func(r chi.Router) {
		r.Post("/", h.handleCreatePolicy)
		r.Get("/", h.handleListPolicies)
		r.Get("/{policyID}", h.handleGetPolicy)
		r.Put("/{policyID}", h.handleUpdatePolicy)
	})
	r.Post("/admin/retention/run", h.handleRunNow)
}

type createPolicyRequest struct {
	DataCategory  string            `json:"dataCategory"`
	RetentionDays int               `json:"retentionDays"`
	Action        string            `json:"action"`
	Conditions    map[string]string `json:"conditions,omitempty"`
}

type updatePolicyRequest struct {
	RetentionDays int    `json:"retentionDays"`
	Action        string `json:"action"`
	IsActive      bool   `json:"isActive"`
}

type policyResponse struct {
	ID              string            `json:"id"`
	WorkspaceID     string            `json:"workspaceId"`
	DataCategory    string            `json:"dataCategory"`
	RetentionDays   int               `json:"retentionDays"`
	Action          string            `json:"action"`
	IsActive        bool              `json:"isActive"`
	Conditions      map[string]string `json:"conditions,omitempty"`
	NextExecutionAt time.Time         `json:"nextExecutionAt"`
	LastExecutedAt  *time.Time        `json:"lastExecutedAt,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
}

func (h *Handler) handleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	workspaceID, err := id.ParseWorkspaceID(chi.URLParam(r, "workspaceID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req createPolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode create policy request",
			"request_id", requestID,
			"error", err,
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	policy, err := h.retention.CreatePolicy(ctx, workspaceID, category.Category(req.DataCategory), req.RetentionDays, models.Action(req.Action), req.Conditions)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to create retention policy",
			"request_id", requestID,
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	respond.WriteJSON(w, http.StatusCreated, formatPolicy(policy))
}

func (h *Handler) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workspaceID, err := id.ParseWorkspaceID(chi.URLParam(r, "workspaceID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	policies, err := h.retention.ListPolicies(ctx, workspaceID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list retention policies",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	response := make([]policyResponse, 0, len(policies))
	for _, policy := range policies {
		response = append(response, formatPolicy(policy))
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"policies": response})
}

func (h *Handler) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workspaceID, err := id.ParseWorkspaceID(chi.URLParam(r, "workspaceID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	policyID, err := id.ParsePolicyID(chi.URLParam(r, "policyID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	policy, err := h.retention.GetPolicy(ctx, workspaceID, policyID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, formatPolicy(policy))
}

func (h *Handler) handleUpdatePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	workspaceID, err := id.ParseWorkspaceID(chi.URLParam(r, "workspaceID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	policyID, err := id.ParsePolicyID(chi.URLParam(r, "policyID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req updatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode update policy request",
			"request_id", requestID,
			"error", err,
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	policy, err := h.retention.UpdatePolicy(ctx, workspaceID, policyID, req.RetentionDays, models.Action(req.Action), req.IsActive)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to update retention policy",
			"request_id", requestID,
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, formatPolicy(policy))
}

// handleRunNow triggers an immediate execution sweep, for operators who
// cannot wait for the next scheduled run.
func (h *Handler) handleRunNow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	summary, err := h.retention.ExecuteDuePolicies(ctx, time.Now().UTC())
	if err != nil {
		h.logger.ErrorContext(ctx, "manual retention run failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	respond.WriteJSON(w, http.StatusOK, map[string]any{
		"executed":        summary.Executed,
		"failed":          summary.Failed,
		"skipped":         summary.Skipped,
		"recordsDeleted":  summary.RecordsDeleted,
		"recordsArchived": summary.RecordsArchived,
	})
}

func formatPolicy(policy *models.Policy) policyResponse {
	return policyResponse{
		ID:              policy.ID.String(),
		WorkspaceID:     policy.WorkspaceID.String(),
		DataCategory:    string(policy.DataCategory),
		RetentionDays:   policy.RetentionDays,
		Action:          string(policy.Action),
		IsActive:        policy.IsActive,
		Conditions:      policy.Conditions,
		NextExecutionAt: policy.NextExecutionAt,
		LastExecutedAt:  policy.LastExecutedAt,
		CreatedAt:       policy.CreatedAt,
	}
}
