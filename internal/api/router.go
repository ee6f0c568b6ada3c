package api

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/welldanyogia/webrana-inbox-backend/internal/api/handlers"
	"github.com/welldanyogia/webrana-inbox-backend/internal/api/middleware"
	"github.com/welldanyogia/webrana-inbox-backend/internal/logger"
	"github.com/welldanyogia/webrana-inbox-backend/internal/metrics"
	"github.com/welldanyogia/webrana-inbox-backend/internal/repository"
	"github.com/welldanyogia/webrana-inbox-backend/internal/storage"
	"github.com/welldanyogia/webrana-inbox-backend/internal/websocket"
	"gorm.io/gorm"
)

// DefaultBodyLimit caps inbound webhook bodies, attachments included
const DefaultBodyLimit = "25M"

// RouterConfig holds dependencies for the router
type RouterConfig struct {
	DB          *gorm.DB
	FileStorage storage.FileStorage
	Logger      *slog.Logger
	Events      *logger.EventLogger
	Metrics     *metrics.Metrics

	Ingester        handlers.Ingester
	Delivery        handlers.StatusUpdater
	TeamInvalidator handlers.TeamInvalidator
	Hub             *websocket.Hub
	HealthChecks    map[string]handlers.Pinger
	DNSVerifier     handlers.DNSVerifier

	// Security configuration
	APIKey         string   // empty disables authentication
	AllowedOrigins []string // CORS and WebSocket origins
	Production     bool
	RateLimit      float64 // requests per second per IP, 0 disables
	RateBurst      int
	// RateLimiter overrides RateLimit/RateBurst, e.g. to share its cleanup loop
	RateLimiter *middleware.IPRateLimiter
	BodyLimit   string
}

// NewRouter creates and configures the Echo router with all routes
func NewRouter(cfg *RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	events := cfg.Events
	if events == nil {
		events = logger.NewEventLogger(cfg.Logger)
	}
	bodyLimit := cfg.BodyLimit
	if bodyLimit == "" {
		bodyLimit = DefaultBodyLimit
	}

	e.Use(middleware.Recover(cfg.Logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.SecureHeaders())
	e.Use(middleware.SecureCORS(cfg.AllowedOrigins, cfg.Production))
	e.Use(middleware.BodyLimit(bodyLimit))
	switch {
	case cfg.RateLimiter != nil:
		e.Use(middleware.RateLimiter(cfg.RateLimiter, events))
	case cfg.RateLimit > 0:
		e.Use(middleware.RateLimiter(middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst), events))
	}
	if cfg.Logger != nil {
		e.Use(middleware.RequestLogger(cfg.Logger))
	}

	teamRepo := repository.NewTeamRepository(cfg.DB)
	threadRepo := repository.NewThreadRepository(cfg.DB)
	messageRepo := repository.NewMessageRepository(cfg.DB)
	attachmentRepo := repository.NewAttachmentRepository(cfg.DB, cfg.FileStorage)

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.HealthChecks)
	inboundHandler := handlers.NewInboundHandler(cfg.Ingester, cfg.Logger)
	deliveryHandler := handlers.NewDeliveryHandler(cfg.Delivery)
	teamHandler := handlers.NewTeamHandler(teamRepo, cfg.TeamInvalidator, cfg.Logger).
		WithDNSVerifier(cfg.DNSVerifier).
		WithFileCleanup(attachmentRepo)
	threadHandler := handlers.NewThreadHandler(threadRepo, teamRepo)
	messageHandler := handlers.NewMessageHandler(messageRepo)
	attachmentHandler := handlers.NewAttachmentHandler(attachmentRepo, messageRepo, cfg.FileStorage).WithThreads(threadRepo)

	// Unauthenticated routes
	e.GET("/health", healthHandler.Health)
	e.GET("/ready", healthHandler.Ready)
	if cfg.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(cfg.Metrics.Handler()))
	}
	if cfg.Hub != nil {
		upgrader := websocket.NewSecureUpgrader(cfg.AllowedOrigins, cfg.Logger, func(origin, remoteAddr string) {
			events.InvalidOrigin(remoteAddr, origin)
		})
		e.GET("/ws", handlers.NewWebSocketHandler(cfg.Hub, upgrader, cfg.Logger).Serve)
	}

	api := e.Group("/api")
	api.Use(middleware.APIKeyAuth(cfg.APIKey, events))

	// Ingestion
	api.POST("/inbound", inboundHandler.Receive)
	api.POST("/inbound/batch", inboundHandler.ReceiveBatch)
	api.POST("/webhooks/delivery", deliveryHandler.Webhook)

	// Teams
	teams := api.Group("/teams")
	teams.POST("", teamHandler.Create)
	teams.GET("", teamHandler.List)
	teams.GET("/:id", teamHandler.Get)
	teams.PUT("/:id", teamHandler.Update)
	teams.DELETE("/:id", teamHandler.Delete)
	teams.GET("/:id/dns", teamHandler.VerifyDNS)
	teams.GET("/:team_id/threads", threadHandler.List)

	// Threads
	threads := api.Group("/threads")
	threads.GET("/:id", threadHandler.Get)
	threads.PATCH("/:id/status", threadHandler.UpdateStatus)
	threads.GET("/:id/attachments", attachmentHandler.ListByThread)

	// Messages and attachments
	messages := api.Group("/messages")
	messages.GET("/:id", messageHandler.Get)
	messages.GET("/:message_id/attachments", attachmentHandler.List)
	api.GET("/attachments/:id/download", attachmentHandler.Download)

	return e
}
