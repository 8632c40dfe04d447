package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"arforge/internal/gateway"
	"arforge/internal/models"
	"arforge/internal/store"
	"arforge/internal/tasks"
)

// TimeoutErrorMessage is persisted and broadcast when the polling failure
// ceiling is exhausted without a terminal service status.
const TimeoutErrorMessage = "timeout"

// HandleGenerationPoll drives one generation task toward a terminal status.
//
// Two kinds of repetition are deliberately kept apart:
//
//   - the service reporting queued/processing leads to a deferred retry: a
//     fresh poll task scheduled after a fixed delay, invisible to the
//     failure-attempt counter;
//   - our own call to the service failing is a counted failure, retried by
//     the substrate until the ceiling, then escalated to a terminal timeout.
//
// A long legitimate generation therefore never exhausts the attempt budget,
// while connectivity problems are bounded to roughly ten minutes.
func HandleGenerationPoll(deps PollDeps) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p tasks.PollPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("unmarshal poll payload: %v: %w", err, asynq.SkipRetry)
		}

		logger := log.WithFields(log.Fields{"product_id": p.ProductID, "task_id": p.TaskID})

		res, err := deps.Gateway.GetStatus(ctx, p.TaskID)
		if err != nil {
			retried := deps.retries(ctx)
			if retried+1 >= tasks.MaxPollFailures {
				logger.WithError(err).Warn("poll failure ceiling reached, escalating to timeout")
				return escalateTimeout(ctx, deps, p)
			}
			logger.WithError(err).WithField("attempt", retried+1).Warn("status poll failed")
			return fmt.Errorf("poll task %s: %w", p.TaskID, err)
		}

		// Terminal failures settle through MarkTerminal directly: routing
		// them through RecordPoll first would trip the absorbing guard and
		// swallow the phase update and notification.
		if res.Status == models.TaskStatusFailed || res.Status == models.TaskStatusCancelled {
			// cancelled routes through the failed path; the task row keeps
			// the original status for the audit trail.
			errMsg := res.Error
			if errMsg == "" {
				errMsg = "generation failed"
			}
			return settleFailed(ctx, deps, p, res, errMsg)
		}

		// Persist the raw payload and current status on every other poll to
		// keep the audit trail current.
		if err := deps.Tasks.RecordPoll(ctx, p.TaskID, res.Status, res.Progress, res.Raw); err != nil {
			if errors.Is(err, store.ErrTerminal) {
				// The row settled earlier (e.g. a timeout escalation); the
				// status guard keeps it immutable, dispatch proceeds on what
				// the service just reported.
				logger.WithField("status", res.Status).Debug("poll recorded against terminal task")
			} else {
				return fmt.Errorf("record poll for task %s: %w", p.TaskID, err)
			}
		}

		switch res.Status {
		case models.TaskStatusSuccess:
			logger.Info("generation succeeded, handing off to downloader")
			if err := deps.Products.SetGenerationPhase(ctx, p.ProductID, models.GenerationPhaseDownloading); err != nil {
				return fmt.Errorf("set downloading phase for product %d: %w", p.ProductID, err)
			}
			if err := deps.Jobs.EnqueueDownload(ctx, p.ProductID, p.TaskID, res.ModelURL, res.PreviewURL); err != nil {
				return fmt.Errorf("enqueue download for task %s: %w", p.TaskID, err)
			}
			return nil

		case models.TaskStatusQueued, models.TaskStatusProcessing:
			logger.WithFields(log.Fields{"status": res.Status, "progress": res.Progress}).
				Debug("generation still in progress, deferring")
			if err := deps.Jobs.EnqueuePoll(ctx, p.ProductID, p.TaskID, tasks.PollDeferDelay); err != nil {
				return fmt.Errorf("defer poll for task %s: %w", p.TaskID, err)
			}
			return nil

		default:
			// ParseTaskStatus folds unknown statuses into processing, so
			// this arm is unreachable; keep the deferred retry anyway.
			if err := deps.Jobs.EnqueuePoll(ctx, p.ProductID, p.TaskID, tasks.PollDeferDelay); err != nil {
				return fmt.Errorf("defer poll for task %s: %w", p.TaskID, err)
			}
			return nil
		}
	}
}

// settleFailed applies the terminal failed outcome: task row (status, error
// message and the raw payload that reported the failure), product phase,
// failure notification. First writer wins on the task row; a repeat
// observation ends quietly.
func settleFailed(ctx context.Context, deps PollDeps, p tasks.PollPayload, res *gateway.StatusResult, errMsg string) error {
	if err := deps.Tasks.MarkTerminal(ctx, p.TaskID, res.Status, errMsg, res.Raw); err != nil {
		if errors.Is(err, store.ErrTerminal) {
			return nil
		}
		return fmt.Errorf("mark task %s failed: %w", p.TaskID, err)
	}
	if err := deps.Products.SetGenerationPhase(ctx, p.ProductID, models.GenerationPhaseFailed); err != nil {
		return fmt.Errorf("set failed phase for product %d: %w", p.ProductID, err)
	}
	if err := deps.Notify.PublishModelFailed(ctx, p.ProductID, errMsg); err != nil {
		log.WithError(err).WithField("product_id", p.ProductID).Warn("failed to publish model_failed event")
	}
	return fmt.Errorf("generation task %s failed: %s: %w", p.TaskID, errMsg, asynq.SkipRetry)
}

// escalateTimeout settles the task as timed out after the counted-failure
// ceiling. Timeout is a distinct terminal state so observers can tell
// "service never answered" from "service rejected the task".
func escalateTimeout(ctx context.Context, deps PollDeps, p tasks.PollPayload) error {
	if err := deps.Tasks.MarkTerminal(ctx, p.TaskID, models.TaskStatusTimeout, "generation polling timed out", nil); err != nil {
		if !errors.Is(err, store.ErrTerminal) {
			return fmt.Errorf("mark task %s timed out: %w", p.TaskID, err)
		}
	}
	if err := deps.Products.SetGenerationPhase(ctx, p.ProductID, models.GenerationPhaseTimeout); err != nil {
		return fmt.Errorf("set timeout phase for product %d: %w", p.ProductID, err)
	}
	if err := deps.Notify.PublishModelFailed(ctx, p.ProductID, TimeoutErrorMessage); err != nil {
		log.WithError(err).WithField("product_id", p.ProductID).Warn("failed to publish model_failed event")
	}
	return fmt.Errorf("generation task %s timed out after %d poll failures: %w",
		p.TaskID, tasks.MaxPollFailures, asynq.SkipRetry)
}
