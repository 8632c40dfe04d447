package apihandlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"arforge/internal/app"
	"arforge/internal/models"
	"arforge/internal/notify"
	"arforge/internal/store"
)

// APIHandler bundles the HTTP handlers over the application services. The
// API layer is a thin boundary: request parsing and response rendering only.
type APIHandler struct {
	app *app.App
}

func NewAPIHandler(a *app.App) *APIHandler {
	return &APIHandler{app: a}
}

func parseID(ctx *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id <= 0 {
		BadRequest(ctx, "invalid "+name)
		return 0, false
	}
	return id, true
}

// CreateProductHandler handles POST /products.
func (h *APIHandler) CreateProductHandler(ctx *gin.Context) {
	var req struct {
		Name        string  `json:"name" binding:"required"`
		Description *string `json:"description"`
		ImageURL    *string `json:"image_url"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		BadRequest(ctx, err.Error())
		return
	}

	product := &models.Product{
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
	}
	if err := h.app.GenerationService.CreateProduct(ctx.Request.Context(), product); err != nil {
		if errors.Is(err, models.ErrValidation) {
			BadRequest(ctx, err.Error())
			return
		}
		Internal(ctx, "failed to create product")
		return
	}
	ctx.JSON(http.StatusCreated, product)
}

// GetProductHandler handles GET /products/:id.
func (h *APIHandler) GetProductHandler(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	product, err := h.app.GenerationService.GetProduct(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFound(ctx, "product not found")
			return
		}
		Internal(ctx, "failed to get product")
		return
	}
	ctx.JSON(http.StatusOK, product)
}

// ListProductsHandler handles GET /products.
func (h *APIHandler) ListProductsHandler(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(ctx.DefaultQuery("offset", "0"))

	products, err := h.app.GenerationService.ListProducts(ctx.Request.Context(), limit, offset)
	if err != nil {
		Internal(ctx, "failed to list products")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"products": products})
}

// GenerateHandler handles POST /products/:id/generate. Generation is
// asynchronous; the response only acknowledges the enqueue.
func (h *APIHandler) GenerateHandler(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	if err := h.app.GenerationService.StartGeneration(ctx.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFound(ctx, "product not found")
			return
		}
		Internal(ctx, "failed to start generation")
		return
	}
	ctx.JSON(http.StatusAccepted, gin.H{"status": "enqueued", "product_id": id})
}

// GetTaskHandler handles GET /tasks/:task_id.
func (h *APIHandler) GetTaskHandler(ctx *gin.Context) {
	taskID := ctx.Param("task_id")
	if taskID == "" {
		BadRequest(ctx, "missing task_id")
		return
	}
	task, err := h.app.GenerationService.GetTask(ctx.Request.Context(), taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFound(ctx, "generation task not found")
			return
		}
		Internal(ctx, "failed to get generation task")
		return
	}
	ctx.JSON(http.StatusOK, task)
}

// ListTasksHandler handles GET /tasks, optionally filtered by product_id.
func (h *APIHandler) ListTasksHandler(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(ctx.DefaultQuery("offset", "0"))
	productID, _ := strconv.ParseInt(ctx.DefaultQuery("product_id", "0"), 10, 64)

	tasks, err := h.app.GenerationService.ListTasks(ctx.Request.Context(), productID, limit, offset)
	if err != nil {
		Internal(ctx, "failed to list generation tasks")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

// ProductEventsHandler handles GET /products/:id/events: an SSE stream of
// the product's generation notifications.
func (h *APIHandler) ProductEventsHandler(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}

	events := make(chan notify.Event, 16)
	reqCtx := ctx.Request.Context()
	err := h.app.Notifier.Subscribe(reqCtx, notify.ProductTopic(id), func(ev notify.Event) {
		select {
		case events <- ev:
		default: // slow consumer, drop
		}
	})
	if err != nil {
		Internal(ctx, "failed to subscribe to product events")
		return
	}

	ctx.Stream(func(w io.Writer) bool {
		select {
		case <-reqCtx.Done():
			return false
		case ev := <-events:
			ctx.SSEvent(ev.Kind, ev)
			return true
		}
	})
}
