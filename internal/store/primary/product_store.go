package primary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"arforge/internal/models"
	"arforge/internal/store"
)

// CreateProduct inserts a catalog product with the generation phase at its
// zero value.
func (s *StoreImpl) CreateProduct(ctx context.Context, product *models.Product) error {
	if product.ModelGenerationStatus == "" {
		product.ModelGenerationStatus = models.GenerationPhaseNone
	}
	query := `
		INSERT INTO products (name, description, image_url, model_generation_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id, created_at, updated_at`

	now := time.Now()
	err := s.db.QueryRow(ctx, query,
		product.Name,
		product.Description,
		product.ImageURL,
		product.ModelGenerationStatus,
		now,
	).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// GetProduct retrieves a product by id.
func (s *StoreImpl) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	product := &models.Product{}
	if err := scanProduct(s.db.QueryRow(ctx, query, id), product); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product %d: %w", id, err)
	}
	return product, nil
}

// ListProducts retrieves products ordered newest first.
func (s *StoreImpl) ListProducts(ctx context.Context, limit, offset int) ([]*models.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := s.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var result []*models.Product
	for rows.Next() {
		product := &models.Product{}
		if err := scanProduct(rows, product); err != nil {
			return result, fmt.Errorf("failed to scan product row: %w", err)
		}
		result = append(result, product)
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("error iterating product rows: %w", err)
	}
	return result, nil
}

// SetGenerationPhase updates only the product's generation phase field.
// Latest write wins; at most one task per product is expected in flight.
func (s *StoreImpl) SetGenerationPhase(ctx context.Context, productID int64, phase string) error {
	query := `UPDATE products SET model_generation_status = $1, updated_at = $2 WHERE id = $3`
	cmdTag, err := s.db.Exec(ctx, query, phase, time.Now(), productID)
	if err != nil {
		return fmt.Errorf("failed to set generation phase for product %d: %w", productID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("product %d not found to set generation phase: %w", productID, store.ErrNotFound)
	}
	return nil
}

// Ensure StoreImpl satisfies the ProductStore interface.
var _ store.ProductStore = (*StoreImpl)(nil)
