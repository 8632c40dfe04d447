package primary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"arforge/internal/models"
	"arforge/internal/store"
)

// terminalStatuses is the SQL guard keeping terminal tasks immutable.
const terminalStatuses = `('success', 'failed', 'cancelled', 'timeout')`

// CreateTask inserts the initial row for a generation attempt.
func (s *StoreImpl) CreateTask(ctx context.Context, task *models.GenerationTask) error {
	query := `
		INSERT INTO generation_tasks (task_id, product_id, status, progress, last_response, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id, created_at, updated_at`

	lastResponse := task.LastResponse
	if lastResponse == nil {
		lastResponse = json.RawMessage("{}")
	}

	now := time.Now()
	err := s.db.QueryRow(ctx, query,
		task.TaskID,
		task.ProductID,
		task.Status,
		models.ClampProgress(task.Progress),
		lastResponse,
		now,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("generation task %s already recorded: %w", task.TaskID, store.ErrDuplicate)
		}
		return fmt.Errorf("failed to create generation task %s: %w", task.TaskID, err)
	}
	return nil
}

// GetTaskByTaskID retrieves a task by the service-assigned identifier.
func (s *StoreImpl) GetTaskByTaskID(ctx context.Context, taskID string) (*models.GenerationTask, error) {
	query := `SELECT ` + taskColumns + ` FROM generation_tasks WHERE task_id = $1`
	task := &models.GenerationTask{}
	if err := scanTask(s.db.QueryRow(ctx, query, taskID), task); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get generation task %s: %w", taskID, err)
	}
	return task, nil
}

// RecordPoll persists the latest raw payload, status and progress for a task.
// Terminal rows are left untouched and reported via ErrTerminal so a late
// poll can never rewrite a settled outcome.
func (s *StoreImpl) RecordPoll(ctx context.Context, taskID string, status models.TaskStatus, progress int, lastResponse json.RawMessage) error {
	query := `
		UPDATE generation_tasks
		SET status = $1, progress = $2, last_response = $3, updated_at = $4
		WHERE task_id = $5 AND status NOT IN ` + terminalStatuses

	if lastResponse == nil {
		lastResponse = json.RawMessage("{}")
	}
	cmdTag, err := s.db.Exec(ctx, query, status, models.ClampProgress(progress), lastResponse, time.Now(), taskID)
	if err != nil {
		return fmt.Errorf("failed to record poll for task %s: %w", taskID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return s.classifyUnchanged(ctx, taskID)
	}
	return nil
}

// MarkTerminal moves a task into a terminal status with an error message.
// First writer wins. A nil lastResponse keeps whatever the last poll stored.
func (s *StoreImpl) MarkTerminal(ctx context.Context, taskID string, status models.TaskStatus, errMsg string, lastResponse json.RawMessage) error {
	if !status.IsTerminal() {
		return fmt.Errorf("status %q is not terminal", status)
	}
	query := `
		UPDATE generation_tasks
		SET status = $1, error_message = $2, last_response = COALESCE($3, last_response), updated_at = $4
		WHERE task_id = $5 AND status NOT IN ` + terminalStatuses

	cmdTag, err := s.db.Exec(ctx, query, status, errMsg, lastResponse, time.Now(), taskID)
	if err != nil {
		return fmt.Errorf("failed to mark task %s terminal: %w", taskID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return s.classifyUnchanged(ctx, taskID)
	}
	return nil
}

// classifyUnchanged distinguishes "no such task" from "task already terminal"
// after a guarded update touched zero rows.
func (s *StoreImpl) classifyUnchanged(ctx context.Context, taskID string) error {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM generation_tasks WHERE task_id = $1)`, taskID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check task %s: %w", taskID, err)
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrTerminal
}

// ListTasks retrieves generation tasks ordered newest first.
func (s *StoreImpl) ListTasks(ctx context.Context, limit, offset int) ([]*models.GenerationTask, error) {
	query := `SELECT ` + taskColumns + `
		FROM generation_tasks
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`
	return s.queryTasks(ctx, query, limit, offset)
}

// ListTasksByProduct retrieves the generation attempts for one product.
func (s *StoreImpl) ListTasksByProduct(ctx context.Context, productID int64, limit, offset int) ([]*models.GenerationTask, error) {
	query := `SELECT ` + taskColumns + `
		FROM generation_tasks
		WHERE product_id = $3
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`
	return s.queryTasks(ctx, query, limit, offset, productID)
}

func (s *StoreImpl) queryTasks(ctx context.Context, query string, args ...any) ([]*models.GenerationTask, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query generation tasks: %w", err)
	}
	defer rows.Close()

	var result []*models.GenerationTask
	for rows.Next() {
		task := &models.GenerationTask{}
		if err := scanTask(rows, task); err != nil {
			return result, fmt.Errorf("failed to scan generation task row: %w", err)
		}
		result = append(result, task)
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("error iterating generation task rows: %w", err)
	}
	return result, nil
}

// CommitDownload applies the download outcome atomically: the task gets its
// local asset path, the product gets the web-relative asset URL, the
// completed phase and a generation timestamp.
func (s *StoreImpl) CommitDownload(ctx context.Context, taskID string, productID int64, localPath, assetURL string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin download commit: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	cmdTag, err := tx.Exec(ctx, `
		UPDATE generation_tasks
		SET local_asset_path = $1, updated_at = $2
		WHERE task_id = $3`,
		localPath, now, taskID)
	if err != nil {
		return fmt.Errorf("failed to set asset path for task %s: %w", taskID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("task %s not found for download commit: %w", taskID, store.ErrNotFound)
	}

	cmdTag, err = tx.Exec(ctx, `
		UPDATE products
		SET ar_model_url = $1, model_generation_status = $2, model_generated_at = $3, updated_at = $3
		WHERE id = $4`,
		assetURL, models.GenerationPhaseCompleted, now, productID)
	if err != nil {
		return fmt.Errorf("failed to complete generation for product %d: %w", productID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("product %d not found for download commit: %w", productID, store.ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit download for task %s: %w", taskID, err)
	}
	return nil
}

// Ensure StoreImpl satisfies the TaskStore interface.
var _ store.TaskStore = (*StoreImpl)(nil)
