package store

import (
	"context"
	"encoding/json"
	"time"

	"arforge/internal/models"
)

// --- Job Client ---

// JobClient enqueues pipeline steps onto the scheduling substrate. Each
// method applies the queue, attempt ceiling and timeout policy for its task
// type; EnqueuePoll takes a delay so the poller can defer itself without the
// reschedule counting as a failure attempt.
type JobClient interface {
	EnqueueSubmit(ctx context.Context, productID int64) error
	EnqueuePoll(ctx context.Context, productID int64, taskID string, delay time.Duration) error
	EnqueueDownload(ctx context.Context, productID int64, taskID, modelURL, previewURL string) error
	Close() error
}

// --- Task Store ---

// TaskStore persists the generation audit trail. Rows are append-only per
// task_id; updates through RecordPoll and MarkTerminal never move a task out
// of a terminal status.
type TaskStore interface {
	CreateTask(ctx context.Context, task *models.GenerationTask) error
	GetTaskByTaskID(ctx context.Context, taskID string) (*models.GenerationTask, error)
	ListTasks(ctx context.Context, limit, offset int) ([]*models.GenerationTask, error)
	ListTasksByProduct(ctx context.Context, productID int64, limit, offset int) ([]*models.GenerationTask, error)

	// RecordPoll stores the latest raw payload, normalized status and
	// clamped progress for a task. It is a no-op (ErrTerminal) if the task
	// is already terminal.
	RecordPoll(ctx context.Context, taskID string, status models.TaskStatus, progress int, lastResponse json.RawMessage) error

	// MarkTerminal moves a task into a terminal status with an error
	// message, persisting the raw payload that carried the terminal
	// observation when one exists. First writer wins; a second call
	// returns ErrTerminal.
	MarkTerminal(ctx context.Context, taskID string, status models.TaskStatus, errMsg string, lastResponse json.RawMessage) error
}

// --- Product Store ---

type ProductStore interface {
	CreateProduct(ctx context.Context, product *models.Product) error
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, limit, offset int) ([]*models.Product, error)

	// SetGenerationPhase updates only the product's generation phase field.
	SetGenerationPhase(ctx context.Context, productID int64, phase string) error

	Ping(ctx context.Context) error
}

// --- Primary Store ---

// PrimaryStore is the full Postgres-backed store surface.
type PrimaryStore interface {
	TaskStore
	ProductStore

	// CommitDownload applies the download result as one transaction: the
	// task's local asset path plus the product's asset URL, completed
	// phase and generation timestamp. A failure partway must not leave the
	// product pointing at a half-written asset.
	CommitDownload(ctx context.Context, taskID string, productID int64, localPath, assetURL string) error

	Close()
}
