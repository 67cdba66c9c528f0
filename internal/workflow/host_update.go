package workflow

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/openfleet/maestro/internal/activity"
	"github.com/openfleet/maestro/internal/model"
	"github.com/openfleet/maestro/internal/redfish"
)

const (
	submitAttempts     = 3
	submitBackoff      = 30 * time.Second
	pollInterval       = 30 * time.Second
	maxPolls           = 60
	leaseAttempts      = 40
	leaseRetryInterval = 15 * time.Second
)

// HostUpdateParams holds parameters for the HostUpdateWorkflow.
type HostUpdateParams struct {
	TaskID       string `json:"task_id"`
	HostID       string `json:"host_id"`
	Hostname     string `json:"hostname"`
	BMCAddr      string `json:"bmc_addr"`
	VCenter      string `json:"vcenter,omitempty"`
	HostPolicy   string `json:"host_policy,omitempty"`
	FirmwarePath string `json:"firmware_path"`
	DryRun       bool   `json:"dry_run"`
}

// HostUpdateWorkflow applies one firmware update to one host: claim the
// per-host lease, move the host into maintenance mode if it lives in a
// vCenter, submit the update to the BMC, poll until the BMC task settles,
// then restore the host and record the outcome.
//
// Submission is retried on transient BMC errors with a linear backoff.
// Transient exhaustion records ERROR (environment trouble); a rejected
// update or a failed BMC task records FAILED (the update itself is bad).
func HostUpdateWorkflow(ctx workflow.Context, params HostUpdateParams) error {
	logger := workflow.GetLogger(ctx)
	dbCtx := dbActivityCtx(ctx)

	// Dry runs record what would happen and touch nothing.
	if params.DryRun {
		if err := workflow.ExecuteActivity(dbCtx, "MarkTaskRunning", params.TaskID).Get(ctx, nil); err != nil {
			return err
		}
		return workflow.ExecuteActivity(dbCtx, "CompleteTask", activity.CompleteTaskParams{
			TaskID:  params.TaskID,
			Status:  model.TaskStatusDryRun,
			Message: fmt.Sprintf("dry run, would apply %s", params.FirmwarePath),
		}).Get(ctx, nil)
	}

	// Claim the host. Another task finishing releases the lease by writing
	// its result, so waiting here is bounded, not indefinite.
	acquired := false
	for i := 0; i < leaseAttempts && !acquired; i++ {
		if i > 0 {
			if err := workflow.Sleep(ctx, leaseRetryInterval); err != nil {
				return err
			}
		}
		if err := workflow.ExecuteActivity(dbCtx, "AcquireHostLease", activity.AcquireLeaseParams{
			HostID: params.HostID,
			TaskID: params.TaskID,
		}).Get(ctx, &acquired); err != nil {
			return err
		}
	}
	if !acquired {
		// The lease belongs to someone else, so only the task is settled.
		return workflow.ExecuteActivity(dbCtx, "CompleteTask", activity.CompleteTaskParams{
			TaskID:  params.TaskID,
			Status:  model.TaskStatusError,
			Message: "timed out waiting for the host update lease",
		}).Get(ctx, nil)
	}

	if err := workflow.ExecuteActivity(dbCtx, "MarkTaskRunning", params.TaskID).Get(ctx, nil); err != nil {
		finishTask(ctx, params, model.TaskStatusError, fmt.Sprintf("mark task running: %v", err))
		return err
	}

	// Standalone hosts skip maintenance mode entirely.
	entered := false
	if params.VCenter != "" {
		vsCtx := vsphereActivityCtx(ctx)
		err := workflow.ExecuteActivity(vsCtx, "EnterMaintenanceMode", activity.MaintenanceParams{
			Hostname: params.Hostname,
			VCenter:  params.VCenter,
		}).Get(ctx, nil)
		switch {
		case err == nil:
			entered = true
		case params.HostPolicy == model.HostPolicyStrict:
			finishTask(ctx, params, model.TaskStatusFailed,
				fmt.Sprintf("enter maintenance mode: %v", err))
			return err
		default:
			logger.Warn("maintenance mode entry failed, continuing with host in service",
				"host", params.Hostname, "error", err)
		}
	}

	status, message := applyFirmware(ctx, params)

	if entered {
		vsCtx := vsphereActivityCtx(ctx)
		err := workflow.ExecuteActivity(vsCtx, "ExitMaintenanceMode", activity.MaintenanceParams{
			Hostname: params.Hostname,
			VCenter:  params.VCenter,
		}).Get(ctx, nil)
		// A failed exit never changes the task outcome; the update already
		// settled. The host just needs an operator to bring it back.
		if err != nil {
			logger.Error("failed to exit maintenance mode, host needs manual attention",
				"host", params.Hostname, "error", err)
			message = message + "; host left in maintenance mode: " + err.Error()
		}
	}

	finishTask(ctx, params, status, message)
	if status != model.TaskStatusSuccess {
		return fmt.Errorf("update on %s finished %s: %s", params.Hostname, status, message)
	}
	return nil
}

// applyFirmware runs the submit-and-poll cycle against the BMC and returns
// the terminal task status with a message.
func applyFirmware(ctx workflow.Context, params HostUpdateParams) (string, string) {
	logger := workflow.GetLogger(ctx)
	bmcCtx := bmcActivityCtx(ctx)

	var lastErr error
	for attempt := 1; attempt <= submitAttempts; attempt++ {
		if attempt > 1 {
			if err := workflow.Sleep(ctx, time.Duration(attempt-1)*submitBackoff); err != nil {
				return model.TaskStatusError, fmt.Sprintf("interrupted: %v", err)
			}
		}

		var monitor string
		err := workflow.ExecuteActivity(bmcCtx, "SubmitFirmwareUpdate", activity.SubmitUpdateParams{
			BMCAddr:  params.BMCAddr,
			ImageURI: params.FirmwarePath,
		}).Get(ctx, &monitor)
		if err != nil {
			if !isTransient(err) {
				return model.TaskStatusFailed, fmt.Sprintf("BMC rejected update: %v", err)
			}
			logger.Warn("firmware submission failed, will retry",
				"host", params.Hostname, "attempt", attempt, "error", err)
			lastErr = err
			continue
		}

		return pollUpdateTask(ctx, params, monitor)
	}

	return model.TaskStatusError,
		fmt.Sprintf("BMC unreachable after %d attempts: %v", submitAttempts, lastErr)
}

func pollUpdateTask(ctx workflow.Context, params HostUpdateParams, monitor string) (string, string) {
	logger := workflow.GetLogger(ctx)
	bmcCtx := bmcActivityCtx(ctx)

	for i := 0; i < maxPolls; i++ {
		if err := workflow.Sleep(ctx, pollInterval); err != nil {
			return model.TaskStatusError, fmt.Sprintf("interrupted: %v", err)
		}

		var st redfish.TaskStatus
		err := workflow.ExecuteActivity(bmcCtx, "CheckUpdateTask", activity.CheckUpdateTaskParams{
			BMCAddr: params.BMCAddr,
			Monitor: monitor,
		}).Get(ctx, &st)
		if err != nil {
			if !isTransient(err) {
				return model.TaskStatusFailed, fmt.Sprintf("BMC task lookup failed: %v", err)
			}
			// BMCs go quiet while flashing; keep polling inside the budget.
			logger.Debug("poll failed, retrying", "host", params.Hostname, "error", err)
			continue
		}

		switch st.State {
		case redfish.TaskStateCompleted:
			msg := st.Message
			if msg == "" {
				msg = "firmware update completed"
			}
			return model.TaskStatusSuccess, msg
		case redfish.TaskStateException, redfish.TaskStateKilled:
			msg := st.Message
			if msg == "" {
				msg = "BMC task ended in state " + st.State
			}
			return model.TaskStatusFailed, msg
		}
	}

	return model.TaskStatusFailed,
		fmt.Sprintf("update did not finish within %s", time.Duration(maxPolls)*pollInterval)
}

// finishTask settles the task row and the host row. Errors here are logged
// only; the primary outcome is already decided.
func finishTask(ctx workflow.Context, params HostUpdateParams, status, message string) {
	logger := workflow.GetLogger(ctx)
	dbCtx := dbActivityCtx(ctx)

	if err := workflow.ExecuteActivity(dbCtx, "CompleteTask", activity.CompleteTaskParams{
		TaskID:  params.TaskID,
		Status:  status,
		Message: message,
	}).Get(ctx, nil); err != nil {
		logger.Error("failed to record task outcome", "task", params.TaskID, "error", err)
	}

	hostStatus := model.HostStatusOK
	if status != model.TaskStatusSuccess {
		hostStatus = model.HostStatusError
	}
	if err := workflow.ExecuteActivity(dbCtx, "UpdateHostResult", activity.UpdateHostResultParams{
		HostID:  params.HostID,
		Status:  hostStatus,
		Message: message,
	}).Get(ctx, nil); err != nil {
		logger.Error("failed to record host outcome", "host", params.HostID, "error", err)
	}
}
