package store

import (
	"context"
	"time"

	"custodian/internal/deletion/models"
	id "custodian/pkg/domain"
)

// Error Contract:
// - Get, GetByID and Update return sentinel.ErrNotFound when no request matches
// - List methods return empty slices, never an error, when nothing matches
type Store interface {
	Create(ctx context.Context, request *models.Request) error
	Get(ctx context.Context, workspaceID id.WorkspaceID, requestID id.DeletionRequestID) (*models.Request, error)
	GetByID(ctx context.Context, requestID id.DeletionRequestID) (*models.Request, error)
	ListByWorkspace(ctx context.Context, workspaceID id.WorkspaceID) ([]*models.Request, error)
	Update(ctx context.Context, request *models.Request) error

	// ListDue selects Approved and Scheduled requests whose ScheduledFor has
	// passed, across workspaces, for the execution sweep.
	ListDue(ctx context.Context, now time.Time) ([]*models.Request, error)
}
