package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"arforge/internal/app"
	"arforge/internal/worker"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background job worker",
	Long:  `Starts the Asynq worker process that runs the generation pipeline: submission, status polling and asset downloads.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get application context: %w", err)
		}

		if err := runWorker(appInstance); err != nil {
			log.Printf("FATAL: Worker exited with error: %v", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

// runWorker initializes and runs the Asynq worker server.
func runWorker(appInstance *app.App) error {
	cfg := appInstance.Config
	if cfg.Generation.APIKey == "" {
		return fmt.Errorf("generation.api_key is required to run the worker (set GENERATION_API_KEY)")
	}

	srv := asynq.NewServer(
		appInstance.RedisOpt(),
		asynq.Config{
			Concurrency:    cfg.Worker.Concurrency,
			Queues:         cfg.Worker.Queues,
			RetryDelayFunc: worker.RetryDelay,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("ERROR: task failed: type=%s payload=%s err=%v",
					task.Type(), string(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	worker.RegisterHandlers(mux, worker.Deps{
		Submit: worker.SubmitDeps{
			Gateway:  appInstance.Gateway,
			Tasks:    appInstance.TaskStore,
			Products: appInstance.ProductStore,
			Jobs:     appInstance.JobClient,
			Notify:   appInstance.Notifier,
		},
		Poll: worker.PollDeps{
			Gateway:  appInstance.Gateway,
			Tasks:    appInstance.TaskStore,
			Products: appInstance.ProductStore,
			Jobs:     appInstance.JobClient,
			Notify:   appInstance.Notifier,
		},
		Download: worker.DownloadDeps{
			Store:      appInstance.PrimaryStore,
			Notify:     appInstance.Notifier,
			StaticRoot: cfg.Generation.StaticRoot,
			Timeout:    cfg.Generation.DownloadTimeout,
		},
	})

	log.Printf("Starting worker server (Concurrency: %d, Queues: %v)...", cfg.Worker.Concurrency, cfg.Worker.Queues)
	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("failed to start worker server: %w", err)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	log.Println("Shutdown signal received. Initiating graceful shutdown...")
	srv.Stop()
	srv.Shutdown()
	appInstance.Close()

	log.Println("Worker shutdown complete.")
	return nil
}
