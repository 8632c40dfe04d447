package services

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"arforge/internal/models"
	"arforge/internal/store"
)

// GenerationService is the API/CLI-facing surface of the generation
// pipeline: it triggers submissions and reads the audit trail. The pipeline
// itself runs inside the worker handlers.
type GenerationService struct {
	tasks    store.TaskStore
	products store.ProductStore
	jobs     store.JobClient
}

func NewGenerationService(ts store.TaskStore, ps store.ProductStore, jc store.JobClient) *GenerationService {
	return &GenerationService{
		tasks:    ts,
		products: ps,
		jobs:     jc,
	}
}

// StartGeneration enqueues the submission step for a product. The product
// must exist; multiple generations per product over time are permitted.
func (s *GenerationService) StartGeneration(ctx context.Context, productID int64) error {
	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return fmt.Errorf("load product %d: %w", productID, err)
	}

	if err := s.jobs.EnqueueSubmit(ctx, product.ID); err != nil {
		return fmt.Errorf("enqueue generation for product %d: %w", productID, err)
	}
	log.WithField("product_id", productID).Info("generation enqueued")
	return nil
}

// GetTask retrieves one generation task by its service-assigned id.
func (s *GenerationService) GetTask(ctx context.Context, taskID string) (*models.GenerationTask, error) {
	task, err := s.tasks.GetTaskByTaskID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get generation task %s: %w", taskID, err)
	}
	return task, nil
}

// ListTasks retrieves generation tasks, optionally scoped to one product.
func (s *GenerationService) ListTasks(ctx context.Context, productID int64, limit, offset int) ([]*models.GenerationTask, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if productID > 0 {
		return s.tasks.ListTasksByProduct(ctx, productID, limit, offset)
	}
	return s.tasks.ListTasks(ctx, limit, offset)
}

// GetProduct exposes product reads (including the generation phase fields)
// to the API layer.
func (s *GenerationService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return s.products.GetProduct(ctx, id)
}

// ListProducts exposes product listing to the API layer.
func (s *GenerationService) ListProducts(ctx context.Context, limit, offset int) ([]*models.Product, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.products.ListProducts(ctx, limit, offset)
}

// CreateProduct creates a catalog product with generation phase "none".
func (s *GenerationService) CreateProduct(ctx context.Context, product *models.Product) error {
	if product.Name == "" {
		return fmt.Errorf("product name is required: %w", models.ErrValidation)
	}
	return s.products.CreateProduct(ctx, product)
}
