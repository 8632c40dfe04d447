package tasks

import "time"

// Task types used in Asynq.
const (
	// TypeGenerationSubmit starts a generation task for a product against
	// the external service.
	TypeGenerationSubmit = "generation:submit"
	// TypeGenerationPoll checks the status of an in-flight generation task.
	TypeGenerationPoll = "generation:poll"
	// TypeGenerationDownload fetches and persists the produced asset files.
	TypeGenerationDownload = "generation:download"
)

// Queue names per task type.
const (
	QueueGeneration = "generation"
	QueueDownloads  = "downloads"
)

// Retry and scheduling policy.
const (
	// MaxSubmitAttempts bounds submission retries (attempt-squared-minute
	// backoff between them).
	MaxSubmitAttempts = 3

	// MaxPollFailures is the failure-attempt ceiling for one poll task.
	// Only executions that themselves fail (network error, bad payload)
	// count against it; a poll that observes a non-terminal service status
	// reschedules itself without consuming an attempt.
	MaxPollFailures = 60

	// PollDeferDelay is the fixed delay before re-polling a task the
	// service reports as still queued or processing.
	PollDeferDelay = 10 * time.Second

	// PollRetryDelay is the delay between counted poll failures. Together
	// with MaxPollFailures it bounds wall-clock exposure to roughly ten
	// minutes when the service never answers.
	PollRetryDelay = 10 * time.Second

	// PollTimeout caps a single status query so one stuck call cannot
	// stall the poller.
	PollTimeout = 30 * time.Second

	// MaxDownloadAttempts bounds download retries. Downloads have no
	// deferred-retry path: every failed execution is counted.
	MaxDownloadAttempts = 3

	// DownloadTimeout is the default per-file download timeout.
	DownloadTimeout = 120 * time.Second
)

// SubmitPayload is the payload for TypeGenerationSubmit.
type SubmitPayload struct {
	ProductID int64 `json:"product_id"`
}

// PollPayload is the payload for TypeGenerationPoll.
type PollPayload struct {
	ProductID int64  `json:"product_id"`
	TaskID    string `json:"task_id"`
}

// DownloadPayload is the payload for TypeGenerationDownload. The URLs are
// extracted from the poll response that observed success.
type DownloadPayload struct {
	ProductID  int64  `json:"product_id"`
	TaskID     string `json:"task_id"`
	ModelURL   string `json:"model_url"`
	PreviewURL string `json:"preview_url"`
}
