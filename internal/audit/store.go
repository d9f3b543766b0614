package audit

import "context"

// Store is the append-only persistence boundary for audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByWorkspace(ctx context.Context, workspaceID string) ([]Event, error)
}
