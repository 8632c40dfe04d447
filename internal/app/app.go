package app

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"arforge/internal/config"
	"arforge/internal/gateway"
	"arforge/internal/notify"
	"arforge/internal/services"
	"arforge/internal/store"
	"arforge/internal/store/primary"
)

// App wires the shared dependencies every command runs on.
type App struct {
	Config *config.Config

	PrimaryStore *primary.StoreImpl
	TaskStore    store.TaskStore
	ProductStore store.ProductStore
	JobClient    store.JobClient
	Gateway      gateway.Gateway
	Notifier     *notify.RedisNotifier

	GenerationService *services.GenerationService
}

func NewApp(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &App{Config: cfg}

	ctx := context.Background()
	if err := app.initPrimaryStore(ctx); err != nil {
		return nil, err
	}
	if err := app.initJobClient(); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}
	if err := app.initNotifier(); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}
	app.initGateway()
	app.initServices()

	return app, nil
}

func (a *App) initPrimaryStore(ctx context.Context) error {
	ps, err := primary.NewPrimaryStore(ctx, a.Config.Database.Primary.DSN)
	if err != nil {
		return fmt.Errorf("failed to initialize primary store: %w", err)
	}
	a.PrimaryStore = ps
	a.TaskStore = ps
	a.ProductStore = ps
	return nil
}

func (a *App) initJobClient() error {
	a.JobClient = store.NewAsynqJobClient(a.RedisOpt())
	return nil
}

func (a *App) initNotifier() error {
	n, err := notify.NewRedisNotifier(a.Config.Redis.Address, a.Config.Redis.Password, a.Config.Redis.DB)
	if err != nil {
		return fmt.Errorf("failed to initialize notifier: %w", err)
	}
	a.Notifier = n
	return nil
}

func (a *App) initGateway() {
	a.Gateway = gateway.NewClient(
		a.Config.Generation.BaseURL,
		a.Config.Generation.APIKey,
		a.Config.Generation.StatusTimeout,
	)
}

func (a *App) initServices() {
	a.GenerationService = services.NewGenerationService(a.TaskStore, a.ProductStore, a.JobClient)
}

// RedisOpt is the asynq/redis connection shared by the job client and the
// worker server.
func (a *App) RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     a.Config.Redis.Address,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	}
}

func (a *App) cleanupPartialInit() {
	a.Close()
}

// Close releases held connections. Safe on a partially initialized App.
func (a *App) Close() {
	if a.JobClient != nil {
		if err := a.JobClient.Close(); err != nil {
			log.WithError(err).Warn("error closing job client")
		}
	}
	if a.Notifier != nil {
		if err := a.Notifier.Close(); err != nil {
			log.WithError(err).Warn("error closing notifier")
		}
	}
	if a.PrimaryStore != nil {
		a.PrimaryStore.Close()
	}
}
