package workflow

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/openfleet/maestro/internal/activity"
	"github.com/openfleet/maestro/internal/model"
)

// UpdateJobParams holds parameters for the UpdateJobWorkflow.
type UpdateJobParams struct {
	JobID                string `json:"job_id"`
	ScheduleID           string `json:"schedule_id"`
	DefaultMaxConcurrent int    `json:"default_max_concurrent"`
	WebhookURL           string `json:"webhook_url,omitempty"`
	WebhookTemplate      string `json:"webhook_template,omitempty"`
}

// UpdateJobWorkflow runs one firing of a schedule: resolve the target
// hosts, create a task per host, fan the updates out as child workflows
// capped by the schedule's concurrency limit, and fold the task outcomes
// into the job's terminal status.
//
// A schedule that resolves to zero hosts completes SUCCESS with nothing to
// do. Child failures never abort the job; every host gets its attempt and
// the aggregate tells the story.
func UpdateJobWorkflow(ctx workflow.Context, params UpdateJobParams) error {
	logger := workflow.GetLogger(ctx)
	dbCtx := dbActivityCtx(ctx)

	var sctx activity.ScheduleContext
	err := workflow.ExecuteActivity(dbCtx, "GetScheduleContext", params.ScheduleID).Get(ctx, &sctx)
	if err != nil {
		_ = workflow.ExecuteActivity(dbCtx, "FailJob", activity.FailJobParams{
			JobID:   params.JobID,
			Message: fmt.Sprintf("load schedule: %v", err),
		}).Get(ctx, nil)
		return fmt.Errorf("load schedule: %w", err)
	}

	if err := workflow.ExecuteActivity(dbCtx, "MarkJobRunning", params.JobID).Get(ctx, nil); err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}

	type taskRef struct {
		taskID string
		host   model.Host
	}
	var tasks []taskRef
	var createErr error
	for _, h := range sctx.Hosts {
		var taskID string
		err := workflow.ExecuteActivity(dbCtx, "CreateTask", activity.CreateTaskParams{
			HostID:       h.ID,
			JobID:        &params.JobID,
			FirmwarePath: sctx.Schedule.FirmwarePath,
			DryRun:       sctx.Schedule.DryRun,
			CreatedBy:    "schedule:" + sctx.Schedule.Name,
		}).Get(ctx, &taskID)
		if err != nil {
			// Hosts already given a task still get their update; the job
			// itself is settled FAILED below.
			createErr = fmt.Errorf("create task for %s: %w", h.Hostname, err)
			logger.Error("task creation failed", "host", h.Hostname, "error", err)
			break
		}
		tasks = append(tasks, taskRef{taskID: taskID, host: h})
	}

	maxConcurrent := sctx.MaxConcurrent(params.DefaultMaxConcurrent)
	wg := workflow.NewWaitGroup(ctx)
	sem := workflow.NewSemaphore(ctx, int64(maxConcurrent))

	for _, tr := range tasks {
		tr := tr // capture

		_ = sem.Acquire(ctx, 1)
		wg.Add(1)

		workflow.Go(ctx, func(gCtx workflow.Context) {
			defer wg.Done()
			defer sem.Release(1)

			childCtx := workflow.WithChildOptions(gCtx, workflow.ChildWorkflowOptions{
				WorkflowID: "task-" + tr.taskID,
				TaskQueue:  TaskQueue,
			})
			err := workflow.ExecuteChildWorkflow(childCtx, HostUpdateWorkflow, HostUpdateParams{
				TaskID:       tr.taskID,
				HostID:       tr.host.ID,
				Hostname:     tr.host.Hostname,
				BMCAddr:      tr.host.BMCAddr,
				VCenter:      strOrEmpty(tr.host.VCenter),
				HostPolicy:   strOrEmpty(tr.host.HostPolicy),
				FirmwarePath: sctx.Schedule.FirmwarePath,
				DryRun:       sctx.Schedule.DryRun,
			}).Get(gCtx, nil)
			if err != nil {
				workflow.GetLogger(gCtx).Error("host update failed",
					"host", tr.host.Hostname, "task", tr.taskID, "error", err)
			}
		})
	}

	wg.Wait(ctx)

	if createErr != nil {
		_ = workflow.ExecuteActivity(dbCtx, "FailJob", activity.FailJobParams{
			JobID:   params.JobID,
			Message: createErr.Error(),
		}).Get(ctx, nil)
	}

	var final string
	if err := workflow.ExecuteActivity(dbCtx, "FinalizeJob", params.JobID).Get(ctx, &final); err != nil {
		return fmt.Errorf("finalize job: %w", err)
	}
	logger.Info("job finished", "job", params.JobID, "status", final, "tasks", len(tasks))

	if params.WebhookURL != "" && final != model.JobStatusSuccess {
		notifyJobOutcome(ctx, params)
	}
	return nil
}

// notifyJobOutcome sends the completion webhook. Failures are logged only;
// notification problems never fail a finished job.
func notifyJobOutcome(ctx workflow.Context, params UpdateJobParams) {
	logger := workflow.GetLogger(ctx)
	dbCtx := dbActivityCtx(ctx)

	var sum activity.JobSummary
	if err := workflow.ExecuteActivity(dbCtx, "GetJobSummary", params.JobID).Get(ctx, &sum); err != nil {
		logger.Warn("could not load job summary for webhook", "job", params.JobID, "error", err)
		return
	}

	webhookCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 1 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:    3,
			InitialInterval:    5 * time.Second,
			MaximumInterval:    30 * time.Second,
			BackoffCoefficient: 2.0,
		},
	})
	if err := workflow.ExecuteActivity(webhookCtx, "SendJobWebhook", activity.SendJobWebhookParams{
		URL:      params.WebhookURL,
		Template: params.WebhookTemplate,
		Summary:  sum,
	}).Get(ctx, nil); err != nil {
		logger.Warn("job webhook delivery failed", "job", params.JobID, "error", err)
	}
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
