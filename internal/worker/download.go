package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"arforge/internal/models"
	"arforge/internal/tasks"
)

// Fixed asset filenames inside the per-product directory. Retried downloads
// overwrite whatever a failed prior attempt left behind.
const (
	ModelFilename   = "model.glb"
	PreviewFilename = "preview.webp"
)

// assetDir is the on-disk directory for one product's assets:
// <static-root>/3d/products/<product_id>/.
func assetDir(staticRoot string, productID int64) string {
	return filepath.Join(staticRoot, "3d", "products", strconv.FormatInt(productID, 10))
}

// AssetURL is the web-relative path stored on the product.
func AssetURL(productID int64) string {
	return path.Join("/3d", "products", strconv.FormatInt(productID, 10), ModelFilename)
}

// HandleGenerationDownload retrieves the produced model and preview files for
// a succeeded task and makes them durable. Unlike the poller it has no
// deferred-retry path: every execution either fully succeeds or is a counted
// failure subject to the substrate's bounded backoff.
func HandleGenerationDownload(deps DownloadDeps) asynq.HandlerFunc {
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = tasks.DownloadTimeout
	}
	client := &http.Client{Timeout: timeout}

	return func(ctx context.Context, t *asynq.Task) error {
		var p tasks.DownloadPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("unmarshal download payload: %v: %w", err, asynq.SkipRetry)
		}

		logger := log.WithFields(log.Fields{"product_id": p.ProductID, "task_id": p.TaskID})

		if err := runDownload(ctx, deps, client, p); err != nil {
			logger.WithError(err).Warn("asset download failed")
			if perr := deps.Store.SetGenerationPhase(ctx, p.ProductID, models.GenerationPhaseDownloadFailed); perr != nil {
				log.WithError(perr).WithField("product_id", p.ProductID).
					Error("failed to record download_failed phase")
			}
			return fmt.Errorf("download assets for task %s: %w", p.TaskID, err)
		}

		assetURL := AssetURL(p.ProductID)
		if err := deps.Notify.PublishModelReady(ctx, p.ProductID, assetURL); err != nil {
			logger.WithError(err).Warn("failed to publish model_ready event")
		}
		logger.WithField("asset_url", assetURL).Info("generation assets downloaded")
		return nil
	}
}

// runDownload performs the fetch-and-persist step: directory, both files,
// then the single transactional commit of task path + product state.
func runDownload(ctx context.Context, deps DownloadDeps, client *http.Client, p tasks.DownloadPayload) error {
	dir := assetDir(deps.StaticRoot, p.ProductID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create asset directory %s: %w", dir, err)
	}

	modelPath := filepath.Join(dir, ModelFilename)
	if err := downloadFile(ctx, client, p.ModelURL, modelPath); err != nil {
		return fmt.Errorf("download model: %w", err)
	}
	if err := downloadFile(ctx, client, p.PreviewURL, filepath.Join(dir, PreviewFilename)); err != nil {
		return fmt.Errorf("download preview: %w", err)
	}

	if err := deps.Store.CommitDownload(ctx, p.TaskID, p.ProductID, modelPath, AssetURL(p.ProductID)); err != nil {
		return fmt.Errorf("commit download: %w", err)
	}
	return nil
}

// downloadFile fetches url into dest, truncating any prior partial write.
func downloadFile(ctx context.Context, client *http.Client, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", url, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dest, err)
	}
	return nil
}
