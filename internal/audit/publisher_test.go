package audit

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestPublisherSyncEmit(t *testing.T) {
	ctx := context.Background()
	workspaceID := uuid.NewString()
	publisher := NewPublisher(NewInMemoryStore())

	err := publisher.Emit(ctx, Event{
		WorkspaceID: workspaceID,
		Actor:       "admin-1",
		Action:      ActionDeletionApproved,
		Outcome:     OutcomeSucceeded,
	})
	require.NoError(t, err)

	events, err := publisher.List(ctx, workspaceID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, ActionDeletionApproved, events[0].Action)
	require.False(t, events[0].Timestamp.IsZero(), "a missing timestamp is stamped on emit")
}

func TestPublisherAsyncDrainsOnClose(t *testing.T) {
	ctx := context.Background()
	workspaceID := uuid.NewString()
	publisher := NewPublisher(NewInMemoryStore(), WithAsyncBuffer(16))

	for i := 0; i < 5; i++ {
		require.NoError(t, publisher.Emit(ctx, Event{
			WorkspaceID: workspaceID,
			Action:      ActionRetentionExecuted,
			Outcome:     OutcomeSucceeded,
		}))
	}
	publisher.Close()

	events, err := publisher.List(ctx, workspaceID)
	require.NoError(t, err)
	require.Len(t, events, 5)
}

func TestPublisherEmitAfterCloseDropsEvent(t *testing.T) {
	ctx := context.Background()
	workspaceID := uuid.NewString()
	publisher := NewPublisher(NewInMemoryStore(), WithAsyncBuffer(16))

	require.NoError(t, publisher.Emit(ctx, Event{
		WorkspaceID: workspaceID,
		Action:      ActionDeletionExecuted,
		Outcome:     OutcomeSucceeded,
	}))
	publisher.Close()

	// A straggler emit from a still-finishing worker must not panic.
	require.NotPanics(t, func() {
		require.NoError(t, publisher.Emit(ctx, Event{
			WorkspaceID: workspaceID,
			Action:      ActionDeletionExecuted,
			Outcome:     OutcomeSucceeded,
		}))
	})

	// Close is idempotent.
	require.NotPanics(t, publisher.Close)

	events, err := publisher.List(ctx, workspaceID)
	require.NoError(t, err)
	require.Len(t, events, 1, "events after close are dropped, not persisted")
}

func TestPublisherScopesByWorkspace(t *testing.T) {
	ctx := context.Background()
	publisher := NewPublisher(NewInMemoryStore())

	first := uuid.NewString()
	second := uuid.NewString()
	require.NoError(t, publisher.Emit(ctx, Event{WorkspaceID: first, Action: ActionExportCompleted, Outcome: OutcomeSucceeded}))
	require.NoError(t, publisher.Emit(ctx, Event{WorkspaceID: second, Action: ActionExportFailed, Outcome: OutcomeFailed}))

	events, err := publisher.List(ctx, first)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, ActionExportCompleted, events[0].Action)
}
