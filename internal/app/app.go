package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"shipclass/internal/config"
	"shipclass/internal/costtracker"
	"shipclass/internal/inputprocessor"
	"shipclass/internal/services"
	"shipclass/internal/store"
	"shipclass/internal/store/primary"
	"shipclass/internal/store/sqlite"
	"shipclass/pkg/categorizer"
)

type App struct {
	Config *config.Config

	Store       store.Store
	JobClient   store.JobClient // nil until InitJobClient
	CostTracker costtracker.CostTracker

	CompletionService     services.CompletionService // nil until InitClassification(ctx, true)
	Categorizer           *categorizer.LLMCategorizer
	ClassificationService *services.ClassificationService

	RunService  *services.RunService
	CostService *services.CostService

	processor inputprocessor.Processor
}

// NewApp opens the run ledger and builds the services that need no
// external provider.
func NewApp(ctx context.Context, cfg *config.Config, inputProc inputprocessor.Processor) (*App, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if inputProc == nil {
		inputProc = inputprocessor.New(nil)
	}
	app := &App{Config: cfg, processor: inputProc}

	if err := app.initStore(ctx); err != nil {
		return nil, err
	}
	app.CostTracker = costtracker.NewStoreTracker(app.Store)
	app.RunService = services.NewRunService(app.Store, app.Store)
	app.CostService = services.NewCostService(app.Store)

	log.Debug("Application initialization complete.")
	return app, nil
}

func (a *App) initStore(ctx context.Context) error {
	cfg := a.Config
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		ps, err := primary.NewPrimaryStore(ctx, cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("init postgres store: %w", err)
		}
		a.Store = ps
	case config.DriverSQLite, "":
		ss, err := sqlite.New(ctx, cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("init sqlite store: %w", err)
		}
		a.Store = ss
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	return nil
}

// InitJobClient connects the asynq client used to enqueue classify tasks.
func (a *App) InitJobClient() error {
	if a.JobClient != nil {
		return nil
	}
	if err := a.Config.ValidateQueue(); err != nil {
		return err
	}
	jc, err := store.NewAsynqJobClient(a.RedisOpt(), a.Store)
	if err != nil {
		return fmt.Errorf("init job client: %w", err)
	}
	a.JobClient = jc
	if a.ClassificationService != nil {
		// Rebuild so EnqueueSource sees the client.
		return a.initClassificationService()
	}
	return nil
}

// RedisOpt returns the asynq connection options from the config.
func (a *App) RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     a.Config.Redis.Address,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	}
}

// InitClassification builds the classification service. With withProvider
// the completion provider is created too, which needs the API key; without
// it every classify call fails, which is enough for splitting and enqueueing.
func (a *App) InitClassification(ctx context.Context, withProvider bool) error {
	if withProvider && a.CompletionService == nil {
		if err := a.initCompletionService(ctx); err != nil {
			return err
		}
	}

	promptContent, err := config.LoadPromptContent(a.Config.Classifier.PromptTemplate)
	if err != nil {
		return fmt.Errorf("load classification prompt: %w", err)
	}
	var completer categorizer.Completer
	if a.CompletionService != nil {
		completer = a.CompletionService
	}
	a.Categorizer = categorizer.NewLLMCategorizer(completer, promptContent, a.Config.Classifier.Columns)
	return a.initClassificationService()
}

func (a *App) initCompletionService(ctx context.Context) error {
	cfg := a.Config
	if cfg.APIKey() == "" {
		return fmt.Errorf("%w for provider %s", config.ErrMissingAPIKey, cfg.Classifier.Provider)
	}

	var completer services.CompletionService
	var err error
	switch cfg.Classifier.Provider {
	case config.ProviderGemini:
		completer, err = services.NewGeminiProvider(ctx,
			cfg.Classifier.GeminiApiKey,
			cfg.Classifier.Model,
			a.CostTracker,
			cfg.Pricing[config.ProviderGemini],
		)
	case config.ProviderOpenAI:
		completer, err = services.NewOpenAIProvider(
			cfg.Classifier.OpenaiApiKey,
			cfg.Classifier.Model,
			cfg.Classifier.BaseURL,
			a.CostTracker,
			cfg.Pricing[config.ProviderOpenAI],
		)
	default:
		return fmt.Errorf("unknown or unsupported classifier provider configured: %s", cfg.Classifier.Provider)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize %s completion provider: %w", cfg.Classifier.Provider, err)
	}
	a.CompletionService = completer
	return nil
}

func (a *App) initClassificationService() error {
	cfg := a.Config
	svc, err := services.NewClassificationService(services.ClassificationServiceDeps{
		Classifier:      a.Categorizer,
		RequiredColumns: a.Categorizer.RequiredColumns(),
		RunStore:        a.Store,
		JobClient:       a.JobClient,
		Processor:       a.processor,
		Options: services.ClassificationOptions{
			Provider:  cfg.Classifier.Provider,
			Model:     cfg.Classifier.Model,
			BatchSize: cfg.Classifier.BatchSize,
			Workers:   cfg.Classifier.Workers,
			Throttle:  cfg.Classifier.Throttle,
			Timeout:   cfg.Classifier.Timeout,
			Retry: &services.SimpleRetryStrategy{
				MaxAttempts: cfg.Classifier.MaxAttempts,
				BaseDelayMs: int64(cfg.Classifier.BaseDelayMs),
			},
			Coding:       cfg.Coding,
			Sheet:        cfg.Input.Sheet,
			ChunkSize:    cfg.Input.ChunkSize,
			ChunkFolder:  cfg.Input.ChunkFolder,
			OutputFolder: cfg.Output.Folder,
		},
	})
	if err != nil {
		return fmt.Errorf("init classification service: %w", err)
	}
	a.ClassificationService = svc
	return nil
}

// Close releases every resource the app opened.
func (a *App) Close() error {
	var errs []error
	if a.JobClient != nil {
		if err := a.JobClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close job client: %w", err))
		}
	}
	if cs, ok := a.CompletionService.(interface{ Close() error }); ok && cs != nil {
		if err := cs.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close completion service: %w", err))
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}
