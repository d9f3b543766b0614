package store

import (
	"context"
	"time"

	"custodian/internal/consent/models"
	id "custodian/pkg/domain"
)

// Error Contract:
// - Get and Update return sentinel.ErrNotFound when no record matches
// - List methods return empty slices, never an error, when nothing matches
type Store interface {
	Create(ctx context.Context, record *models.Record) error
	Get(ctx context.Context, workspaceID id.WorkspaceID, consentID id.ConsentID) (*models.Record, error)
	ListBySubject(ctx context.Context, workspaceID id.WorkspaceID, subject models.Subject, consentType string) ([]*models.Record, error)
	ListByWorkspace(ctx context.Context, workspaceID id.WorkspaceID) ([]*models.Record, error)
	Update(ctx context.Context, record *models.Record) error

	// ListExpiredGranted selects granted, non-withdrawn records whose expiry
	// has passed, across workspaces, for the expiry sweep.
	ListExpiredGranted(ctx context.Context, now time.Time) ([]*models.Record, error)
}
