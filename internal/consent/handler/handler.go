package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"custodian/internal/consent/models"
	"custodian/internal/consent/service"
	"custodian/internal/platform/middleware"
	respond "custodian/internal/transport/http/json"
	"custodian/internal/transport/http/shared"
	id "custodian/pkg/domain"
	dErrors "custodian/pkg/domain-errors"
)

// Service defines the consent operations the handler delegates to.
type Service interface {
	Record(ctx context.Context, workspaceID id.WorkspaceID, params service.RecordParams) (*models.Record, error)
	Get(ctx context.Context, workspaceID id.WorkspaceID, consentID id.ConsentID) (*models.Record, error)
	List(ctx context.Context, workspaceID id.WorkspaceID) ([]*models.Record, error)
	Withdraw(ctx context.Context, workspaceID id.WorkspaceID, consentID id.ConsentID) (*models.Record, error)
	Check(ctx context.Context, workspaceID id.WorkspaceID, subject models.Subject, consentType string) (bool, error)
}

// Handler handles consent ledger endpoints.
type Handler struct {
	logger   *slog.Logger
	consents Service
}

// New creates a consent Handler.
func New(consents Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:   logger,
		consents: consents,
	}
}

// Register registers the consent routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/workspaces/{workspaceID}/consents", func(r chi.Router) {
		r.Post("/", h.handleRecordConsent)
		r.Get("/", h.handleListConsents)
		r.Get("/check", h.handleCheckConsent)
		r.Get("/{consentID}", h.handleGetConsent)
		r.Post("/{consentID}/withdraw", h.handleWithdrawConsent)
	})
}

type subjectPayload struct {
	UserID     string `json:"userId,omitempty"`
	ExternalID string `json:"externalId,omitempty"`
	Email      string `json:"email,omitempty"`
}

type recordConsentRequest struct {
	Subject     subjectPayload `json:"subject"`
	ConsentType string         `json:"consentType"`
	Purpose     string         `json:"purpose"`
	Granted     bool           `json:"granted"`
	LegalBasis  string         `json:"legalBasis"`
	ExpiresAt   *time.Time     `json:"expiresAt,omitempty"`
}

type consentResponse struct {
	ID          string         `json:"id"`
	WorkspaceID string         `json:"workspaceId"`
	Subject     subjectPayload `json:"subject"`
	ConsentType string         `json:"consentType"`
	Purpose     string         `json:"purpose"`
	Granted     bool           `json:"granted"`
	GrantedAt   *time.Time     `json:"grantedAt,omitempty"`
	Withdrawn   bool           `json:"withdrawn"`
	WithdrawnAt *time.Time     `json:"withdrawnAt,omitempty"`
	LegalBasis  string         `json:"legalBasis"`
	ExpiresAt   *time.Time     `json:"expiresAt,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

func (h *Handler) handleRecordConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	workspaceID, err := id.ParseWorkspaceID(chi.URLParam(r, "workspaceID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req recordConsentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode record consent request",
			"request_id", requestID,
			"error", err,
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	record, err := h.consents.Record(ctx, workspaceID, service.RecordParams{
		Subject: models.Subject{
			UserID:     req.Subject.UserID,
			ExternalID: req.Subject.ExternalID,
			Email:      req.Subject.Email,
		},
		ConsentType: req.ConsentType,
		Purpose:     req.Purpose,
		Granted:     req.Granted,
		LegalBasis:  models.LegalBasis(req.LegalBasis),
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "failed to record consent",
			"request_id", requestID,
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	respond.WriteJSON(w, http.StatusCreated, formatConsent(record))
}

func (h *Handler) handleListConsents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workspaceID, err := id.ParseWorkspaceID(chi.URLParam(r, "workspaceID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	records, err := h.consents.List(ctx, workspaceID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list consents",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	response := make([]consentResponse, 0, len(records))
	for _, record := range records {
		response = append(response, formatConsent(record))
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"consents": response})
}

func (h *Handler) handleGetConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workspaceID, consentID, err := pathIDs(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	record, err := h.consents.Get(ctx, workspaceID, consentID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, formatConsent(record))
}

func (h *Handler) handleWithdrawConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workspaceID, consentID, err := pathIDs(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	record, err := h.consents.Withdraw(ctx, workspaceID, consentID)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to withdraw consent",
			"request_id", middleware.GetRequestID(ctx),
			"consent_id", consentID.String(),
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, formatConsent(record))
}

// handleCheckConsent answers the processing gate: does this subject have an
// active consent of the given type right now.
func (h *Handler) handleCheckConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workspaceID, err := id.ParseWorkspaceID(chi.URLParam(r, "workspaceID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	query := r.URL.Query()
	subject := models.Subject{
		UserID:     query.Get("userId"),
		ExternalID: query.Get("externalId"),
		Email:      query.Get("email"),
	}

	allowed, err := h.consents.Check(ctx, workspaceID, subject, query.Get("type"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

func pathIDs(r *http.Request) (id.WorkspaceID, id.ConsentID, error) {
	workspaceID, err := id.ParseWorkspaceID(chi.URLParam(r, "workspaceID"))
	if err != nil {
		return id.WorkspaceID{}, id.ConsentID{}, err
	}
	consentID, err := id.ParseConsentID(chi.URLParam(r, "consentID"))
	if err != nil {
		return id.WorkspaceID{}, id.ConsentID{}, err
	}
	return workspaceID, consentID, nil
}

func formatConsent(record *models.Record) consentResponse {
	return consentResponse{
		ID:          record.ID.String(),
		WorkspaceID: record.WorkspaceID.String(),
		Subject: subjectPayload{
			UserID:     record.Subject.UserID,
			ExternalID: record.Subject.ExternalID,
			Email:      record.Subject.Email,
		},
		ConsentType: record.ConsentType,
		Purpose:     record.Purpose,
		Granted:     record.Granted,
		GrantedAt:   record.GrantedAt,
		Withdrawn:   record.Withdrawn,
		WithdrawnAt: record.WithdrawnAt,
		LegalBasis:  string(record.LegalBasis),
		ExpiresAt:   record.ExpiresAt,
		CreatedAt:   record.CreatedAt,
	}
}
