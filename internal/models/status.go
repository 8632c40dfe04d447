package models

import "strings"

// TaskStatus is the normalized lifecycle status of a generation task as
// reported by the external generation service.
type TaskStatus string

const (
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusSuccess    TaskStatus = "success"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
	TaskStatusTimeout    TaskStatus = "timeout"
)

// IsTerminal reports whether no further status transitions are possible.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusSuccess, TaskStatusFailed, TaskStatusCancelled, TaskStatusTimeout:
		return true
	default:
		return false
	}
}

// ParseTaskStatus maps a raw service status string onto the closed TaskStatus
// set. Unrecognized values normalize to processing so new service-side
// statuses are treated as "still working" rather than as failures; the raw
// string survives in the task's last_response.
func ParseTaskStatus(raw string) TaskStatus {
	switch TaskStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case TaskStatusQueued:
		return TaskStatusQueued
	case TaskStatusProcessing:
		return TaskStatusProcessing
	case TaskStatusSuccess:
		return TaskStatusSuccess
	case TaskStatusFailed:
		return TaskStatusFailed
	case TaskStatusCancelled:
		return TaskStatusCancelled
	case TaskStatusTimeout:
		return TaskStatusTimeout
	default:
		return TaskStatusProcessing
	}
}

// Product generation phase constants. The generation pipeline is the only
// writer of these values.
const (
	GenerationPhaseNone           = "none"
	GenerationPhaseSubmitting     = "submitting"
	GenerationPhaseDownloading    = "downloading"
	GenerationPhaseCompleted      = "completed"
	GenerationPhaseFailed         = "failed"
	GenerationPhaseTimeout        = "timeout"
	GenerationPhaseDownloadFailed = "download_failed"
)

// ClampProgress bounds a reported progress value to [0, 100]. The service
// occasionally reports approximate or out-of-range values.
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
