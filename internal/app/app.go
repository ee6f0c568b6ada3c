// Package app assembles the storage, cache and ingestion components shared
// by the server and the inboxctl command.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/welldanyogia/webrana-inbox-backend/internal/cache"
	"github.com/welldanyogia/webrana-inbox-backend/internal/config"
	"github.com/welldanyogia/webrana-inbox-backend/internal/database"
	"github.com/welldanyogia/webrana-inbox-backend/internal/ingest"
	"github.com/welldanyogia/webrana-inbox-backend/internal/logger"
	"github.com/welldanyogia/webrana-inbox-backend/internal/metrics"
	"github.com/welldanyogia/webrana-inbox-backend/internal/repository"
	"github.com/welldanyogia/webrana-inbox-backend/internal/storage"
)

// Components are the long-lived dependencies of the inbox
type Components struct {
	Config  *config.Config
	DB      *gorm.DB
	Logger  *slog.Logger
	Events  *logger.EventLogger
	Metrics *metrics.Metrics

	Teams       repository.TeamRepository
	Threads     repository.ThreadRepository
	Messages    repository.MessageRepository
	Attachments repository.AttachmentRepository
	Files       storage.FileStorage

	TeamCache *cache.TeamCache
	// Redis is set when REDIS_URL is configured
	Redis *cache.RedisStore
}

// Build connects to the database, runs migrations and wires repositories
// and the team cache.
func Build(ctx context.Context, cfg *config.Config, log *slog.Logger, m *metrics.Metrics) (*Components, error) {
	db, err := database.Connect(cfg.DatabaseURL, database.Options{
		Production: cfg.IsProduction(),
		LogLevel:   gormLogLevel(cfg.SlogLevel()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		database.Close(db)
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	files, err := storage.NewLocalStorage(cfg.AttachmentStoragePath)
	if err != nil {
		database.Close(db)
		return nil, fmt.Errorf("failed to initialize attachment storage: %w", err)
	}

	c := &Components{
		Config:      cfg,
		DB:          db,
		Logger:      log,
		Events:      logger.NewEventLogger(log),
		Metrics:     m,
		Teams:       repository.NewTeamRepository(db),
		Threads:     repository.NewThreadRepository(db),
		Messages:    repository.NewMessageRepository(db),
		Attachments: repository.NewAttachmentRepository(db, files),
		Files:       files,
	}

	var store cache.Store = cache.NewMemoryStore()
	if cfg.RedisURL != "" {
		redisStore, err := cache.NewRedisStore(ctx, cfg.RedisURL, "inbox:")
		if err != nil {
			database.Close(db)
			return nil, err
		}
		c.Redis = redisStore
		store = redisStore
	}
	c.TeamCache = cache.NewTeamCache(c.Teams, store, cfg.TeamCacheTTL, log, m)

	return c, nil
}

// IngestService builds the ingestion pipeline from the configuration.
// Extra options, such as a dispatcher or notifier, are applied last.
func (c *Components) IngestService(opts ...ingest.Option) (*ingest.Service, error) {
	policy, err := ingest.ParseDuplicatePolicy(c.Config.DuplicatePolicy)
	if err != nil {
		return nil, err
	}

	base := []ingest.Option{
		ingest.WithLogger(c.Logger),
		ingest.WithEventLogger(c.Events),
		ingest.WithMetrics(c.Metrics),
		ingest.WithFileStorage(c.Files),
		ingest.WithDuplicatePolicy(policy),
		ingest.WithBatchConfig(ingest.BatchConfig{
			MaxConcurrent: c.Config.BatchMaxConcurrent,
			Pause:         c.Config.BatchPause,
		}),
	}
	return ingest.NewService(c.TeamCache, c.Messages, append(base, opts...)...), nil
}

// Close releases the cache connection and the database pool
func (c *Components) Close() error {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil && c.Logger != nil {
			c.Logger.Warn("failed to close redis", slog.Any("error", err))
		}
	}
	return database.Close(c.DB)
}

// gormLogLevel logs SQL only when debugging
func gormLogLevel(level slog.Level) gormlogger.LogLevel {
	switch {
	case level <= slog.LevelDebug:
		return gormlogger.Info
	case level >= slog.LevelError:
		return gormlogger.Error
	default:
		return gormlogger.Warn
	}
}

// ShutdownTimeout bounds graceful shutdown of servers and workers
const ShutdownTimeout = 30 * time.Second
