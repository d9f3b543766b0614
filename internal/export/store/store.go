package store

import (
	"context"
	"time"

	"custodian/internal/export/models"
	id "custodian/pkg/domain"
)

// Error Contract:
// - Get, GetByID and Update return sentinel.ErrNotFound when no request matches
// - List methods return empty slices, never an error, when nothing matches
type Store interface {
	Create(ctx context.Context, request *models.Request) error
	Get(ctx context.Context, workspaceID id.WorkspaceID, requestID id.ExportRequestID) (*models.Request, error)
	GetByID(ctx context.Context, requestID id.ExportRequestID) (*models.Request, error)
	ListByWorkspace(ctx context.Context, workspaceID id.WorkspaceID) ([]*models.Request, error)
	Update(ctx context.Context, request *models.Request) error

	// ListExpired selects Completed requests whose artifact TTL has lapsed.
	ListExpired(ctx context.Context, now time.Time) ([]*models.Request, error)

	// ListStatusOlderThan selects requests sitting in the given status since
	// before the cutoff. Used for the pending re-enqueue sweep and for
	// surfacing stuck Processing requests.
	ListStatusOlderThan(ctx context.Context, status models.Status, cutoff time.Time) ([]*models.Request, error)
}
