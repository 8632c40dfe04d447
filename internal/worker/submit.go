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

// HandleGenerationSubmit starts a generation task for a product and hands off
// to the poller. A thin trigger with its own bounded retry policy; the state
// machine proper lives in the poll handler.
func HandleGenerationSubmit(deps SubmitDeps) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p tasks.SubmitPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("unmarshal submit payload: %v: %w", err, asynq.SkipRetry)
		}

		logger := log.WithField("product_id", p.ProductID)

		product, err := deps.Products.GetProduct(ctx, p.ProductID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("product %d not found: %w", p.ProductID, asynq.SkipRetry)
			}
			return submitFailure(ctx, deps, p.ProductID, fmt.Errorf("load product %d: %w", p.ProductID, err))
		}

		if err := deps.Products.SetGenerationPhase(ctx, p.ProductID, models.GenerationPhaseSubmitting); err != nil {
			return submitFailure(ctx, deps, p.ProductID, fmt.Errorf("set submitting phase: %w", err))
		}

		req := gateway.SubmitRequest{
			ProductID: product.ID,
			Name:      product.Name,
		}
		if product.Description != nil {
			req.Description = *product.Description
		}
		if product.ImageURL != nil {
			req.ImageURL = *product.ImageURL
		}

		taskID, err := deps.Gateway.Submit(ctx, req)
		if err != nil {
			return submitFailure(ctx, deps, p.ProductID, fmt.Errorf("submit generation: %w", err))
		}
		logger.WithField("task_id", taskID).Info("generation task submitted")

		task := &models.GenerationTask{
			TaskID:    taskID,
			ProductID: p.ProductID,
			Status:    models.TaskStatusQueued,
		}
		if err := deps.Tasks.CreateTask(ctx, task); err != nil {
			return submitFailure(ctx, deps, p.ProductID, fmt.Errorf("record task %s: %w", taskID, err))
		}

		if err := deps.Jobs.EnqueuePoll(ctx, p.ProductID, taskID, 0); err != nil {
			return submitFailure(ctx, deps, p.ProductID, fmt.Errorf("enqueue first poll for task %s: %w", taskID, err))
		}
		return nil
	}
}

// submitFailure returns err for the substrate to retry, except on the final
// attempt where it settles the product as failed and notifies observers.
func submitFailure(ctx context.Context, deps SubmitDeps, productID int64, err error) error {
	if deps.retries(ctx)+1 < tasks.MaxSubmitAttempts {
		return err
	}

	log.WithError(err).WithField("product_id", productID).
		Error("generation submission exhausted its attempts")
	if perr := deps.Products.SetGenerationPhase(ctx, productID, models.GenerationPhaseFailed); perr != nil {
		log.WithError(perr).WithField("product_id", productID).Error("failed to record failed phase")
	}
	if nerr := deps.Notify.PublishModelFailed(ctx, productID, err.Error()); nerr != nil {
		log.WithError(nerr).WithField("product_id", productID).Warn("failed to publish model_failed event")
	}
	return fmt.Errorf("submission for product %d failed: %v: %w", productID, err, asynq.SkipRetry)
}
