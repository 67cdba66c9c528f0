package workflow

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/openfleet/maestro/internal/activity"
)

// TaskQueue is the queue all engine workflows and activities run on.
const TaskQueue = "maestro-tasks"

// dbActivityCtx configures options for database activities. These are plain
// row updates, safe to retry aggressively.
func dbActivityCtx(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:    5,
			InitialInterval:    1 * time.Second,
			MaximumInterval:    10 * time.Second,
			BackoffCoefficient: 2.0,
		},
	})
}

// bmcActivityCtx configures options for BMC activities. Retries are disabled
// here: the update workflow decides itself, from the error type, whether a
// submission is worth another attempt.
func bmcActivityCtx(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})
}

// vsphereActivityCtx configures options for vCenter activities. Entering
// maintenance mode waits for DRS to evacuate the host, which can take a
// long time on loaded clusters.
func vsphereActivityCtx(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 45 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:    2,
			InitialInterval:    10 * time.Second,
			MaximumInterval:    1 * time.Minute,
			BackoffCoefficient: 2.0,
		},
	})
}

// isTransient reports whether err carries the TRANSIENT type tag from a BMC
// activity.
func isTransient(err error) bool {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Type() == activity.ErrTypeTransient
	}
	return false
}
