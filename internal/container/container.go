package container

import (
	"context"
	"fmt"
	"path/filepath"

	"ortho-mapper/config"
	"ortho-mapper/internal/api/httpapi"
	"ortho-mapper/internal/api/telegram"
	app "ortho-mapper/internal/application"
	"ortho-mapper/internal/domain/port"
	"ortho-mapper/internal/infrastructure/archive"
	"ortho-mapper/internal/infrastructure/events"
	"ortho-mapper/internal/infrastructure/publish"
	"ortho-mapper/internal/infrastructure/queue"
	"ortho-mapper/internal/infrastructure/source"
	"ortho-mapper/internal/infrastructure/storage"
	"ortho-mapper/internal/infrastructure/vision"
	"ortho-mapper/internal/logging"
)

// Container wires the application from configuration. Optional
// collaborators stay nil when their settings are empty.
type Container struct {
	Pipeline    *app.Pipeline
	RunService  *app.RunService
	Subscribers *app.SubscriberService
	HTTP        *httpapi.Handler
	Bot         *telegram.Bot
	Consumer    *queue.RedisConsumer

	closers []func()
}

func New(ctx context.Context, cfg *config.Config, log *logging.Logger) (*Container, error) {
	c := &Container{}

	c.Pipeline = NewPipeline(cfg, log)

	runs, err := c.runRepository(ctx, cfg, log)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.RunService = app.NewRunService(app.RunServiceDeps{
		Source:   source.NewFSSource(log.With("source")),
		Pipeline: c.Pipeline,
		Store:    publish.NewFileStore(cfg.OutputDir, cfg.LatestFile),
		Archiver: archive.NewZipArchiver(filepath.Join(cfg.OutputDir, "zips")),
		Renderer: vision.NewRenderer(),
		Runs:     runs,
		Timeout:  cfg.RunTimeout,
		Logger:   log,
	})

	if cfg.KafkaBrokers != "" {
		notifier, err := events.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic, log.With("kafka"))
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("kafka: %w", err)
		}
		c.closers = append(c.closers, notifier.Close)
		c.RunService.AddNotifier(notifier)
	}

	c.Subscribers = app.NewSubscriberService(storage.NewMemorySubscriberRepository())
	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, c.Subscribers, c.RunService, log.With("telegram"))
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("telegram: %w", err)
		}
		c.Bot = bot
		c.RunService.AddNotifier(bot)
	}

	var enqueuer httpapi.Enqueuer
	if cfg.RedisURL != "" {
		client, err := queue.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		c.closers = append(c.closers, func() { client.Close() })
		enqueuer = queue.NewRedisQueue(client, cfg.RedisQueue)
		c.Consumer = queue.NewRedisConsumer(client, cfg.RedisQueue, c.RunService, 1, log.With("queue"))
	}

	c.HTTP = httpapi.NewHandler(c.RunService, enqueuer, log.With("http"))
	return c, nil
}

// NewPipeline builds the pipeline alone, for one-shot runs and tests.
func NewPipeline(cfg *config.Config, log *logging.Logger) *app.Pipeline {
	var cleaner *app.PathCleaner
	if cfg.CleanupEnabled {
		cleaner = app.NewPathCleaner(cfg.CleanupTolerance, cfg.CleanupMaxCells)
	}
	return app.NewPipeline(
		app.PipelineConfig{
			Workers:           cfg.Workers,
			ProximityDivisor:  cfg.ProximityDivisor,
			DefaultTileHeight: cfg.DefaultTileHeight,
		},
		app.NewTileAdapter(),
		app.NewGeometryExtractor(cfg.PixelScale, cfg.AreaScaleFromAffine,
			app.NewCenterlineExtractor(cfg.CenterlineSimplify, cfg.CenterlineMinBranch, cfg.CenterlineMaxCells)),
		app.NewPathStitcher(cfg.ZigZagTolerance, cfg.SmoothingDensity),
		app.NewAssembler(cfg.CollectionName, cfg.CRSName, cleaner, log.With("assembler")),
		log.With("pipeline"),
	)
}

func (c *Container) runRepository(ctx context.Context, cfg *config.Config, log *logging.Logger) (port.RunRepository, error) {
	if cfg.DatabaseURL == "" {
		log.Info("DATABASE_URL not set, keeping run history in memory")
		return storage.NewMemoryRunRepository(), nil
	}
	repo, err := storage.NewPostgresRunRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	c.closers = append(c.closers, func() { repo.Close() })
	return repo, nil
}

// Close releases external connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
