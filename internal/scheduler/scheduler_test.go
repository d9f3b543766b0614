package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"custodian/internal/platform/logger"
)

func TestRegisterValidatesSchedule(t *testing.T) {
	ctx := context.Background()
	sched := New(logger.New())

	err := sched.Register(ctx, Job{
		Name:     "retention-execution",
		Schedule: "not a cron expression",
		Run:      func(context.Context) error { return nil },
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "retention-execution")

	require.NoError(t, sched.Register(ctx, Job{
		Name:     "retention-execution",
		Schedule: "0 3 * * *",
		Run:      func(context.Context) error { return nil },
	}))
	require.Len(t, sched.NextRuns(), 1)
}

func TestRegisterSkipsDisabledJobs(t *testing.T) {
	ctx := context.Background()
	sched := New(logger.New())

	require.NoError(t, sched.Register(ctx, Job{
		Name: "export-cleanup",
		Run:  func(context.Context) error { return nil },
	}))
	require.Empty(t, sched.NextRuns(), "jobs without a schedule must not be registered")
}

func TestStartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched := New(logger.New())

	require.NoError(t, sched.Register(ctx, Job{
		Name:     "consent-expiry",
		Schedule: "@hourly",
		Run:      func(context.Context) error { return nil },
	}))

	require.False(t, sched.IsRunning())
	sched.Start(ctx)
	require.True(t, sched.IsRunning())

	// Start is idempotent.
	sched.Start(ctx)
	require.True(t, sched.IsRunning())

	sched.Stop()
	require.False(t, sched.IsRunning())

	// Stop is idempotent.
	sched.Stop()
	require.False(t, sched.IsRunning())
}

func TestRunJobIsolatesPanics(t *testing.T) {
	sched := New(logger.New())

	require.NotPanics(t, func() {
		sched.runJob(context.Background(), Job{
			Name: "export-requeue",
			Run:  func(context.Context) error { panic("boom") },
		})
	})
}
