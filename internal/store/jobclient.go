package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"arforge/internal/tasks"
)

// AsynqJobClient is the concrete JobClient backed by an asynq.Client.
// Ensure it implements JobClient.
var _ JobClient = (*AsynqJobClient)(nil)

type AsynqJobClient struct {
	client *asynq.Client
}

func NewAsynqJobClient(redisOpt asynq.RedisClientOpt) *AsynqJobClient {
	return &AsynqJobClient{client: asynq.NewClient(redisOpt)}
}

func (jc *AsynqJobClient) Close() error {
	return jc.client.Close()
}

func (jc *AsynqJobClient) enqueue(ctx context.Context, taskType string, payload any, opts ...asynq.Option) error {
	if jc.client == nil {
		return fmt.Errorf("asynq client is not initialized")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", taskType, err)
	}
	info, err := jc.client.EnqueueContext(ctx, asynq.NewTask(taskType, body), opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	log.WithFields(log.Fields{"type": taskType, "id": info.ID, "queue": info.Queue}).
		Debug("enqueued task")
	return nil
}

// EnqueueSubmit schedules a generation submission for a product. The retry
// ceiling is the submit policy; the backoff between attempts comes from the
// worker's retry delay function.
func (jc *AsynqJobClient) EnqueueSubmit(ctx context.Context, productID int64) error {
	return jc.enqueue(ctx, tasks.TypeGenerationSubmit,
		tasks.SubmitPayload{ProductID: productID},
		asynq.Queue(tasks.QueueGeneration),
		asynq.MaxRetry(tasks.MaxSubmitAttempts-1),
	)
}

// EnqueuePoll schedules a status poll. A non-zero delay produces a deferred
// retry: a fresh task whose failure-attempt counter starts at zero, so
// "service still working" never consumes the bounded attempt budget.
func (jc *AsynqJobClient) EnqueuePoll(ctx context.Context, productID int64, taskID string, delay time.Duration) error {
	opts := []asynq.Option{
		asynq.Queue(tasks.QueueGeneration),
		asynq.MaxRetry(tasks.MaxPollFailures),
		asynq.Timeout(tasks.PollTimeout),
	}
	if delay > 0 {
		opts = append(opts, asynq.ProcessIn(delay))
	}
	return jc.enqueue(ctx, tasks.TypeGenerationPoll,
		tasks.PollPayload{ProductID: productID, TaskID: taskID}, opts...)
}

// EnqueueDownload schedules the one-shot asset download for a succeeded task.
func (jc *AsynqJobClient) EnqueueDownload(ctx context.Context, productID int64, taskID, modelURL, previewURL string) error {
	return jc.enqueue(ctx, tasks.TypeGenerationDownload,
		tasks.DownloadPayload{
			ProductID:  productID,
			TaskID:     taskID,
			ModelURL:   modelURL,
			PreviewURL: previewURL,
		},
		asynq.Queue(tasks.QueueDownloads),
		asynq.MaxRetry(tasks.MaxDownloadAttempts-1),
	)
}
