package model

// Host status values. UPDATING doubles as the per-host exclusive lease: a
// host update may only begin by atomically moving the host into UPDATING.
const (
	HostStatusUnknown  = "UNKNOWN"
	HostStatusOK       = "OK"
	HostStatusError    = "ERROR"
	HostStatusUpdating = "UPDATING"
)

// Job status values. RUNNING and QUEUED are transient; the rest are
// terminal and never revised once written.
const (
	JobStatusRunning = "RUNNING"
	JobStatusQueued  = "QUEUED"
	JobStatusSuccess = "SUCCESS"
	JobStatusFailed  = "FAILED"
	JobStatusPartial = "PARTIAL"
)

// Task status values. A task is immutable once it reaches a terminal
// status (SUCCESS, FAILED, ERROR, or DRYRUN).
const (
	TaskStatusQueued  = "QUEUED"
	TaskStatusRunning = "RUNNING"
	TaskStatusSuccess = "SUCCESS"
	TaskStatusFailed  = "FAILED"
	TaskStatusError   = "ERROR"
	TaskStatusDryRun  = "DRYRUN"
)

// TaskSucceeded reports whether a terminal task status counts as success
// for job aggregation. Dry runs count as success.
func TaskSucceeded(status string) bool {
	return status == TaskStatusSuccess || status == TaskStatusDryRun
}

// JobStatusForTasks computes a job's aggregate status from its tasks'
// terminal statuses: SUCCESS iff all succeeded, FAILED iff none did,
// PARTIAL otherwise. A job with no tasks is vacuously SUCCESS.
func JobStatusForTasks(statuses []string) string {
	succeeded := 0
	for _, s := range statuses {
		if TaskSucceeded(s) {
			succeeded++
		}
	}
	switch {
	case succeeded == len(statuses):
		return JobStatusSuccess
	case succeeded == 0:
		return JobStatusFailed
	default:
		return JobStatusPartial
	}
}

// JobTerminal reports whether a job status is terminal.
func JobTerminal(status string) bool {
	switch status {
	case JobStatusSuccess, JobStatusFailed, JobStatusPartial:
		return true
	}
	return false
}
