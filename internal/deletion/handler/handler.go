package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"custodian/internal/category"
	"custodian/internal/deletion/models"
	"custodian/internal/deletion/service"
	"custodian/internal/platform/middleware"
	respond "custodian/internal/transport/http/json"
	"custodian/internal/transport/http/shared"
	id "custodian/pkg/domain"
	dErrors "custodian/pkg/domain-errors"
)

// Service defines the deletion workflow operations the handler delegates to.
type Service interface {
	Create(ctx context.Context, scope service.Scope, requiresApproval bool, scheduledFor *time.Time) (*models.Request, error)
	GetRequest(ctx context.Context, workspaceID id.WorkspaceID, requestID id.DeletionRequestID) (*models.Request, error)
	ListRequests(ctx context.Context, workspaceID id.WorkspaceID) ([]*models.Request, error)
	Approve(ctx context.Context, workspaceID id.WorkspaceID, requestID id.DeletionRequestID, approverID string) (*models.Request, error)
	Reject(ctx context.Context, workspaceID id.WorkspaceID, requestID id.DeletionRequestID, rejecterID, reason string) (*models.Request, error)
}

// Handler handles deletion workflow endpoints.
type Handler struct {
	logger    *slog.Logger
	deletions Service
}

// New creates a deletion Handler.
func New(deletions Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:    logger,
		deletions: deletions,
	}
}

// Register registers the deletion routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/workspaces/{workspaceID}/deletion-requests", func(r chi.Router) {
		r.Post("/", h.handleCreateRequest)
		r.Get("/", h.handleListRequests)
		r.Get("/{requestID}", h.handleGetRequest)
		r.Post("/{requestID}/approve", h.handleApprove)
		r.Post("/{requestID}/reject", h.handleReject)
	})
}

type createDeletionRequest struct {
	RequestType      string            `json:"requestType"`
	DataCategories   []string          `json:"dataCategories"`
	SubjectID        string            `json:"subjectId,omitempty"`
	DateFrom         *time.Time        `json:"dateFrom,omitempty"`
	DateTo           *time.Time        `json:"dateTo,omitempty"`
	Conditions       map[string]string `json:"conditions,omitempty"`
	RequiresApproval bool              `json:"requiresApproval"`
	ScheduledFor     *time.Time        `json:"scheduledFor,omitempty"`
}

type approveRequest struct {
	ApproverID string `json:"approverId"`
}

type rejectRequest struct {
	RejecterID string `json:"rejecterId"`
	Reason     string `json:"reason"`
}

type auditEntryResponse struct {
	Category     string    `json:"category"`
	DeletedCount int       `json:"deletedCount"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

type deletionResponse struct {
	ID               string               `json:"id"`
	WorkspaceID      string               `json:"workspaceId"`
	RequestType      string               `json:"requestType"`
	DataCategories   []string             `json:"dataCategories"`
	SubjectID        string               `json:"subjectId,omitempty"`
	DateFrom         *time.Time           `json:"dateFrom,omitempty"`
	DateTo           *time.Time           `json:"dateTo,omitempty"`
	Conditions       map[string]string    `json:"conditions,omitempty"`
	RequiresApproval bool                 `json:"requiresApproval"`
	Status           string               `json:"status"`
	ApproverID       *string              `json:"approverId,omitempty"`
	ApprovedAt       *time.Time           `json:"approvedAt,omitempty"`
	RejecterID       *string              `json:"rejecterId,omitempty"`
	RejectedAt       *time.Time           `json:"rejectedAt,omitempty"`
	RejectionReason  *string              `json:"rejectionReason,omitempty"`
	ScheduledFor     *time.Time           `json:"scheduledFor,omitempty"`
	ExecutedAt       *time.Time           `json:"executedAt,omitempty"`
	ItemsDeleted     int                  `json:"itemsDeleted"`
	ItemsFailed      int                  `json:"itemsFailed"`
	RecordsDeleted   int                  `json:"recordsDeleted"`
	AuditLog         []auditEntryResponse `json:"auditLog,omitempty"`
	CreatedAt        time.Time            `json:"createdAt"`
}

func (h *Handler) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	workspaceID, err := id.ParseWorkspaceID(chi.URLParam(r, "workspaceID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req createDeletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode create deletion request",
			"request_id", requestID,
			"error", err,
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	categories := make([]category.Category, 0, len(req.DataCategories))
	for _, c := range req.DataCategories {
		categories = append(categories, category.Category(c))
	}

	request, err := h.deletions.Create(ctx, service.Scope{
		WorkspaceID:    workspaceID,
		RequestType:    models.RequestType(req.RequestType),
		DataCategories: categories,
		SubjectID:      req.SubjectID,
		DateFrom:       req.DateFrom,
		DateTo:         req.DateTo,
		Conditions:     req.Conditions,
	}, req.RequiresApproval, req.ScheduledFor)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to create deletion request",
			"request_id", requestID,
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	respond.WriteJSON(w, http.StatusAccepted, formatDeletion(request))
}

func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workspaceID, err := id.ParseWorkspaceID(chi.URLParam(r, "workspaceID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	requests, err := h.deletions.ListRequests(ctx, workspaceID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list deletion requests",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	response := make([]deletionResponse, 0, len(requests))
	for _, request := range requests {
		response = append(response, formatDeletion(request))
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"deletionRequests": response})
}

func (h *Handler) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workspaceID, deletionID, err := pathIDs(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	request, err := h.deletions.GetRequest(ctx, workspaceID, deletionID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, formatDeletion(request))
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	workspaceID, deletionID, err := pathIDs(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode approve request",
			"request_id", requestID,
			"error", err,
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	request, err := h.deletions.Approve(ctx, workspaceID, deletionID, req.ApproverID)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to approve deletion request",
			"request_id", requestID,
			"deletion_id", deletionID.String(),
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, formatDeletion(request))
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	workspaceID, deletionID, err := pathIDs(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode reject request",
			"request_id", requestID,
			"error", err,
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	request, err := h.deletions.Reject(ctx, workspaceID, deletionID, req.RejecterID, req.Reason)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to reject deletion request",
			"request_id", requestID,
			"deletion_id", deletionID.String(),
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, formatDeletion(request))
}

func pathIDs(r *http.Request) (id.WorkspaceID, id.DeletionRequestID, error) {
	workspaceID, err := id.ParseWorkspaceID(chi.URLParam(r, "workspaceID"))
	if err != nil {
		return id.WorkspaceID{}, id.DeletionRequestID{}, err
	}
	deletionID, err := id.ParseDeletionRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		return id.WorkspaceID{}, id.DeletionRequestID{}, err
	}
	return workspaceID, deletionID, nil
}

func formatDeletion(request *models.Request) deletionResponse {
	categories := make([]string, 0, len(request.DataCategories))
	for _, c := range request.DataCategories {
		categories = append(categories, string(c))
	}
	auditLog := make([]auditEntryResponse, 0, len(request.AuditLog))
	for _, entry := range request.AuditLog {
		auditLog = append(auditLog, auditEntryResponse{
			Category:     string(entry.Category),
			DeletedCount: entry.DeletedCount,
			Error:        entry.Error,
			Timestamp:    entry.Timestamp,
		})
	}
	return deletionResponse{
		ID:               request.ID.String(),
		WorkspaceID:      request.WorkspaceID.String(),
		RequestType:      string(request.RequestType),
		DataCategories:   categories,
		SubjectID:        request.SubjectID,
		DateFrom:         request.DateFrom,
		DateTo:           request.DateTo,
		Conditions:       request.Conditions,
		RequiresApproval: request.RequiresApproval,
		Status:           string(request.Status),
		ApproverID:       request.ApproverID,
		ApprovedAt:       request.ApprovedAt,
		RejecterID:       request.RejecterID,
		RejectedAt:       request.RejectedAt,
		RejectionReason:  request.RejectionReason,
		ScheduledFor:     request.ScheduledFor,
		ExecutedAt:       request.ExecutedAt,
		ItemsDeleted:     request.ItemsDeleted,
		ItemsFailed:      request.ItemsFailed,
		RecordsDeleted:   request.RecordsDeleted(),
		AuditLog:         auditLog,
		CreatedAt:        request.CreatedAt,
	}
}
