// Package worker holds the asynq handlers that drive a generation task from
// submission to a downloaded asset: submit -> poll (repeated) -> download.
package worker

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"arforge/internal/gateway"
	"arforge/internal/notify"
	"arforge/internal/store"
	"arforge/internal/tasks"
)

// DownloadCommitter is the persistence surface the downloader needs: the
// transactional download commit plus the phase update on failure paths.
type DownloadCommitter interface {
	CommitDownload(ctx context.Context, taskID string, productID int64, localPath, assetURL string) error
	SetGenerationPhase(ctx context.Context, productID int64, phase string) error
}

// SubmitDeps are the collaborators of the submission handler.
type SubmitDeps struct {
	Gateway  gateway.Gateway
	Tasks    store.TaskStore
	Products store.ProductStore
	Jobs     store.JobClient
	Notify   notify.Notifier

	// retryCount reports how often the current execution has been retried
	// by the substrate. Defaults to asynq's counter; tests inject their own.
	retryCount func(ctx context.Context) (int, bool)
}

func (d SubmitDeps) retries(ctx context.Context) int {
	rc := d.retryCount
	if rc == nil {
		rc = asynq.GetRetryCount
	}
	n, _ := rc(ctx)
	return n
}

// PollDeps are the collaborators of the status poller.
type PollDeps struct {
	Gateway  gateway.Gateway
	Tasks    store.TaskStore
	Products store.ProductStore
	Jobs     store.JobClient
	Notify   notify.Notifier

	retryCount func(ctx context.Context) (int, bool)
}

func (d PollDeps) retries(ctx context.Context) int {
	rc := d.retryCount
	if rc == nil {
		rc = asynq.GetRetryCount
	}
	n, _ := rc(ctx)
	return n
}

// DownloadDeps are the collaborators of the asset downloader.
type DownloadDeps struct {
	Store      DownloadCommitter
	Notify     notify.Notifier
	StaticRoot string        // filesystem root the web server serves from
	Timeout    time.Duration // per-file download timeout
}

// Deps aggregates everything RegisterHandlers wires into the mux.
type Deps struct {
	Submit   SubmitDeps
	Poll     PollDeps
	Download DownloadDeps
}

// RegisterHandlers attaches the generation pipeline handlers to the mux.
func RegisterHandlers(mux *asynq.ServeMux, deps Deps) {
	mux.HandleFunc(tasks.TypeGenerationSubmit, HandleGenerationSubmit(deps.Submit))
	mux.HandleFunc(tasks.TypeGenerationPoll, HandleGenerationPoll(deps.Poll))
	mux.HandleFunc(tasks.TypeGenerationDownload, HandleGenerationDownload(deps.Download))
}

// RetryDelay is the per-task-type backoff applied between counted failure
// retries. Deferred poll reschedules do not pass through here; they are fresh
// tasks scheduled with ProcessIn.
func RetryDelay(n int, e error, t *asynq.Task) time.Duration {
	switch t.Type() {
	case tasks.TypeGenerationSubmit:
		// attempt-squared minutes: 1m, 4m
		return time.Duration(n*n) * time.Minute
	case tasks.TypeGenerationPoll:
		return tasks.PollRetryDelay
	case tasks.TypeGenerationDownload:
		// 2^attempt * 10s: 20s, 40s
		return time.Duration(1<<uint(n)) * 10 * time.Second
	default:
		return asynq.DefaultRetryDelayFunc(n, e, t)
	}
}
