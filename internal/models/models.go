package models

import (
	"encoding/json"
	"time"
)

// Product is a catalog item. The generation pipeline owns writes to the
// ModelGenerationStatus, ARModelURL and ModelGeneratedAt fields only; the
// rest of the entity belongs to the catalog subsystem.
type Product struct {
	ID          int64   `db:"id"`
	Name        string  `db:"name"`
	Description *string `db:"description"`
	ImageURL    *string `db:"image_url"`

	ModelGenerationStatus string     `db:"model_generation_status"`
	ARModelURL            *string    `db:"ar_model_url"`
	ModelGeneratedAt      *time.Time `db:"model_generated_at"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// GenerationTask is the durable record of one external generation attempt.
// Rows are append-only per task_id and never deleted by the pipeline; a
// product accumulates one row per attempt over time.
type GenerationTask struct {
	ID        int64  `db:"id"`
	TaskID    string `db:"task_id"` // opaque id assigned by the generation service
	ProductID int64  `db:"product_id"`

	Status   TaskStatus `db:"status"`
	Progress int        `db:"progress"` // always within [0, 100]

	// LastResponse holds the most recent raw status payload verbatim, kept
	// current on every poll for audit and debugging.
	LastResponse json.RawMessage `db:"last_response"`

	LocalAssetPath *string `db:"local_asset_path"` // set once, by the downloader
	ErrorMessage   *string `db:"error_message"`    // set once, by whichever step fails

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
