package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"custodian/internal/category"
	"custodian/internal/export/models"
	"custodian/internal/export/service"
	"custodian/internal/platform/middleware"
	respond "custodian/internal/transport/http/json"
	"custodian/internal/transport/http/shared"
	id "custodian/pkg/domain"
	dErrors "custodian/pkg/domain-errors"
)

// Service defines the export operations the handler delegates to.
type Service interface {
	Create(ctx context.Context, scope service.Scope) (*models.Request, error)
	GetRequest(ctx context.Context, workspaceID id.WorkspaceID, requestID id.ExportRequestID) (*models.Request, error)
	ListRequests(ctx context.Context, workspaceID id.WorkspaceID) ([]*models.Request, error)
	ReadArtifact(ctx context.Context, workspaceID id.WorkspaceID, requestID id.ExportRequestID) ([]byte, models.Format, error)
	ListStuck(ctx context.Context, now time.Time) ([]*models.Request, error)
	Redrive(ctx context.Context, workspaceID id.WorkspaceID, requestID id.ExportRequestID) (*models.Request, error)
}

// Handler handles data export endpoints.
type Handler struct {
	logger  *slog.Logger
	exports Service
}

// New creates an export Handler.
func New(exports Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		exports: exports,
	}
}

// Register registers the export routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/workspaces/{workspaceID}/exports", func(r chi.Router) {
		r.Post("/", h.handleCreateExport)
		r.Get("/", h.handleListExports)
		r.Get("/{exportID}", h.handleGetExport)
		r.Get("/{exportID}/download", h.handleDownload)
		r.Post("/{exportID}/redrive", h.handleRedrive)
	})
	r.Get("/admin/exports/stuck", h.handleListStuck)
}

type createExportRequest struct {
	RequestType    string     `json:"requestType"`
	Format         string     `json:"format"`
	DataCategories []string   `json:"dataCategories"`
	SubjectID      string     `json:"subjectId,omitempty"`
	DateFrom       *time.Time `json:"dateFrom,omitempty"`
	DateTo         *time.Time `json:"dateTo,omitempty"`
}

type exportResponse struct {
	ID             string     `json:"id"`
	WorkspaceID    string     `json:"workspaceId"`
	RequestType    string     `json:"requestType"`
	Format         string     `json:"format"`
	DataCategories []string   `json:"dataCategories"`
	SubjectID      string     `json:"subjectId,omitempty"`
	DateFrom       *time.Time `json:"dateFrom,omitempty"`
	DateTo         *time.Time `json:"dateTo,omitempty"`
	Status         string     `json:"status"`
	FileSizeBytes  *int64     `json:"fileSizeBytes,omitempty"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
	Error          *string    `json:"error,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

func (h *Handler) handleCreateExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	workspaceID, err := id.ParseWorkspaceID(chi.URLParam(r, "workspaceID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req createExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode create export request",
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

	request, err := h.exports.Create(ctx, service.Scope{
		WorkspaceID:    workspaceID,
		RequestType:    models.RequestType(req.RequestType),
		Format:         models.Format(req.Format),
		DataCategories: categories,
		SubjectID:      req.SubjectID,
		DateFrom:       req.DateFrom,
		DateTo:         req.DateTo,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "failed to create export request",
			"request_id", requestID,
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	respond.WriteJSON(w, http.StatusAccepted, formatExport(request))
}

func (h *Handler) handleListExports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workspaceID, err := id.ParseWorkspaceID(chi.URLParam(r, "workspaceID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	requests, err := h.exports.ListRequests(ctx, workspaceID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list export requests",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	response := make([]exportResponse, 0, len(requests))
	for _, request := range requests {
		response = append(response, formatExport(request))
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"exports": response})
}

func (h *Handler) handleGetExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workspaceID, exportID, err := pathIDs(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	request, err := h.exports.GetRequest(ctx, workspaceID, exportID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, formatExport(request))
}

// handleDownload streams the artifact body. Expired or unfinished exports
// surface domain errors rather than partial content.
func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workspaceID, exportID, err := pathIDs(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	payload, format, err := h.exports.ReadArtifact(ctx, workspaceID, exportID)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to read export artifact",
			"request_id", middleware.GetRequestID(ctx),
			"export_id", exportID.String(),
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	contentType := "application/json"
	if format == models.FormatCSV {
		contentType = "text/csv"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "export-"+exportID.String()+"."+string(format)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (h *Handler) handleRedrive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workspaceID, exportID, err := pathIDs(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	request, err := h.exports.Redrive(ctx, workspaceID, exportID)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to redrive export request",
			"request_id", middleware.GetRequestID(ctx),
			"export_id", exportID.String(),
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, formatExport(request))
}

func (h *Handler) handleListStuck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requests, err := h.exports.ListStuck(ctx, time.Now().UTC())
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list stuck exports",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	response := make([]exportResponse, 0, len(requests))
	for _, request := range requests {
		response = append(response, formatExport(request))
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"stuck": response})
}

func pathIDs(r *http.Request) (id.WorkspaceID, id.ExportRequestID, error) {
	workspaceID, err := id.ParseWorkspaceID(chi.URLParam(r, "workspaceID"))
	if err != nil {
		return id.WorkspaceID{}, id.ExportRequestID{}, err
	}
	exportID, err := id.ParseExportRequestID(chi.URLParam(r, "exportID"))
	if err != nil {
		return id.WorkspaceID{}, id.ExportRequestID{}, err
	}
	return workspaceID, exportID, nil
}

func formatExport(request *models.Request) exportResponse {
	categories := make([]string, 0, len(request.DataCategories))
	for _, c := range request.DataCategories {
		categories = append(categories, string(c))
	}
	return exportResponse{
		ID:             request.ID.String(),
		WorkspaceID:    request.WorkspaceID.String(),
		RequestType:    string(request.RequestType),
		Format:         string(request.Format),
		DataCategories: categories,
		SubjectID:      request.SubjectID,
		DateFrom:       request.DateFrom,
		DateTo:         request.DateTo,
		Status:         string(request.Status),
		FileSizeBytes:  request.FileSizeBytes,
		ExpiresAt:      request.ExpiresAt,
		Error:          request.Error,
		CreatedAt:      request.CreatedAt,
		StartedAt:      request.StartedAt,
		CompletedAt:    request.CompletedAt,
	}
}
