package app

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/fabula/internal/common"
	"github.com/ternarybob/fabula/internal/handlers"
	"github.com/ternarybob/fabula/internal/interfaces"
	"github.com/ternarybob/fabula/internal/models"
	"github.com/ternarybob/fabula/internal/queue"
	"github.com/ternarybob/fabula/internal/services/embedding"
	"github.com/ternarybob/fabula/internal/services/events"
	"github.com/ternarybob/fabula/internal/services/generation"
	"github.com/ternarybob/fabula/internal/services/graph"
	"github.com/ternarybob/fabula/internal/services/llm"
	"github.com/ternarybob/fabula/internal/services/pipeline"
	"github.com/ternarybob/fabula/internal/services/scheduler"
	"github.com/ternarybob/fabula/internal/services/search"
	badgerstorage "github.com/ternarybob/fabula/internal/storage/badger"
	"github.com/ternarybob/fabula/internal/worker"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager
	QueueManager   interfaces.QueueManager

	Providers         *llm.Providers
	EmbeddingService  interfaces.EmbeddingService
	SearchService     interfaces.SearchService
	GenerationService interfaces.GenerationService
	EventService      interfaces.EventService
	GraphService      *graph.Service
	Orchestrator      *pipeline.Orchestrator
	WorkerPool        *worker.Pool
	SweepService      *scheduler.Service

	// HTTP handlers
	APIHandler     *handlers.APIHandler
	StoryHandler   *handlers.StoryHandler
	SegmentHandler *handlers.SegmentHandler
	TaskHandler    *handlers.TaskHandler
	WSHandler      *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.StorageManager.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.initHandlers(); err != nil {
		app.StorageManager.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	return app, nil
}

func (a *App) initStorage() error {
	storageManager, err := badgerstorage.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return err
	}
	a.StorageManager = storageManager

	queueManager, err := queue.NewManager(
		storageManager.Badger(),
		a.Config.Queue.QueueName,
		a.Config.Queue.VisibilityTimeoutDuration(),
		a.Config.Queue.MaxReceive,
	)
	if err != nil {
		return err
	}
	a.QueueManager = queueManager

	return nil
}

func (a *App) initServices() error {
	providers, err := llm.NewProviders(a.Config, a.Logger)
	if err != nil {
		return err
	}
	a.Providers = providers

	// One limiter shared across embedding and generation so the combined
	// call rate against cloud backends stays bounded.
	var limiter *rate.Limiter
	if a.Config.LLM.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(a.Config.LLM.RateLimit), a.Config.LLM.RateBurst)
	}

	failSoft := a.Config.LLM.IsFailSoft()

	a.EmbeddingService = embedding.NewService(providers.Embed, a.Config.Embedding.Dimension, failSoft, limiter, a.Logger)
	a.SearchService = search.NewService(a.StorageManager.SegmentStorage(), a.Logger)
	a.GenerationService = generation.NewService(providers.Text, providers.Image, failSoft, limiter, a.Logger)
	a.EventService = events.NewService(a.Logger)

	a.GraphService = graph.NewService(
		a.StorageManager.StoryStorage(),
		a.StorageManager.SegmentStorage(),
		a.StorageManager.EdgeStorage(),
		a.Logger,
	)

	a.Orchestrator = pipeline.NewOrchestrator(a.StorageManager, a.QueueManager, a.GraphService, a.EventService, a.Logger)

	executors := pipeline.NewExecutors(
		a.StorageManager,
		a.GraphService,
		a.EmbeddingService,
		a.SearchService,
		a.GenerationService,
		a.EventService,
		a.Config.Search.TopK,
		a.Logger,
	)

	a.WorkerPool = worker.NewPool(
		a.QueueManager,
		a.StorageManager.TaskStorage(),
		a.Logger,
		a.Config.Queue.Concurrency,
		a.Config.Queue.PollIntervalDuration(),
	)
	a.WorkerPool.RegisterExecutor(string(models.TaskTypeInitialSegment), executors.InitialSegment)
	a.WorkerPool.RegisterExecutor(string(models.TaskTypeSegmentGeneration), executors.SegmentGeneration)
	a.WorkerPool.RegisterExecutor(string(models.TaskTypeRecomputeEmbedding), executors.RecomputeEmbedding)
	a.WorkerPool.RegisterExecutor(string(models.TaskTypeImageGeneration), executors.ImageGeneration)

	a.SweepService = scheduler.NewService(
		a.StorageManager.SegmentStorage(),
		a.Orchestrator,
		a.Config.Sweep,
		a.Logger,
	)

	return nil
}

func (a *App) initHandlers() error {
	a.APIHandler = handlers.NewAPIHandler(a.EmbeddingService, a.Logger)
	a.StoryHandler = handlers.NewStoryHandler(a.Orchestrator, a.StorageManager.StoryStorage(), a.GraphService, a.Logger)
	a.SegmentHandler = handlers.NewSegmentHandler(a.Orchestrator, a.Logger)
	a.TaskHandler = handlers.NewTaskHandler(a.StorageManager.TaskStorage(), a.Logger)

	wsHandler, err := handlers.NewWebSocketHandler(a.EventService, a.Logger)
	if err != nil {
		return err
	}
	a.WSHandler = wsHandler

	return nil
}

// Start launches the background components: the worker pool and, when
// enabled, the embedding sweep.
func (a *App) Start() error {
	a.WorkerPool.Start()

	if a.Config.Sweep.Enabled {
		if err := a.SweepService.Start(); err != nil {
			return err
		}
	}

	return nil
}

// Close shuts down components in reverse dependency order.
func (a *App) Close() error {
	if a.SweepService != nil {
		a.SweepService.Stop()
	}

	if a.WorkerPool != nil {
		a.WorkerPool.Stop()
	}

	if a.WSHandler != nil {
		a.WSHandler.Close()
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.Providers != nil {
		if err := a.Providers.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM providers")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
	}

	a.Logger.Info().Msg("Application closed")
	return nil
}
