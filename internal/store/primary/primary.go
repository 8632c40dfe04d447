package primary

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"arforge/internal/models"
	"arforge/internal/store"
)

// StoreImpl implements store.PrimaryStore using PostgreSQL.
type StoreImpl struct {
	db *pgxpool.Pool
}

var _ store.PrimaryStore = (*StoreImpl)(nil)

// NewPrimaryStore creates a new PostgreSQL primary store implementation.
func NewPrimaryStore(ctx context.Context, dsn string) (*StoreImpl, error) {
	if dsn == "" {
		return nil, errors.New("database DSN cannot be empty")
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database DSN: %w", err)
	}

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := dbpool.Ping(ctx); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &StoreImpl{db: dbpool}, nil
}

// Ping checks the database connection.
func (s *StoreImpl) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection pool.
func (s *StoreImpl) Close() {
	s.db.Close()
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// --- Scan helpers ---

const taskColumns = `id, task_id, product_id, status, progress, last_response,
	local_asset_path, error_message, created_at, updated_at`

func scanTask(row pgx.Row, dest *models.GenerationTask) error {
	return row.Scan(
		&dest.ID,
		&dest.TaskID,
		&dest.ProductID,
		&dest.Status,
		&dest.Progress,
		&dest.LastResponse,
		&dest.LocalAssetPath,
		&dest.ErrorMessage,
		&dest.CreatedAt,
		&dest.UpdatedAt,
	)
}

const productColumns = `id, name, description, image_url,
	model_generation_status, ar_model_url, model_generated_at, created_at, updated_at`

func scanProduct(row pgx.Row, dest *models.Product) error {
	return row.Scan(
		&dest.ID,
		&dest.Name,
		&dest.Description,
		&dest.ImageURL,
		&dest.ModelGenerationStatus,
		&dest.ARModelURL,
		&dest.ModelGeneratedAt,
		&dest.CreatedAt,
		&dest.UpdatedAt,
	)
}
