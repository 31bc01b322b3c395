package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/queue-engine/internal/api/http/handlers"
	"github.com/spec-kit/queue-engine/internal/observability"
	"github.com/spec-kit/queue-engine/internal/service"
)

// AppConfig configures NewApp.
type AppConfig struct {
	Name           string
	Version        string
	RequestTimeout time.Duration
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	// Dependencies are pinged by the readiness probe.
	Dependencies map[string]handlers.Pinger
}

// NewApp builds the fiber application serving the queue engine.
func NewApp(engine *service.QueueEngine, cfg AppConfig) *fiber.App {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	app := fiber.New(fiber.Config{
		AppName:               cfg.Name,
		DisableStartupMessage: true,
	})
	RegisterMiddlewares(app, cfg.Logger, cfg.Metrics, cfg.RequestTimeout)
	RegisterRoutes(app, RouteConfig{
		Health:      handlers.NewHealthHandler(cfg.Name, cfg.Version, cfg.Dependencies),
		Departments: handlers.NewDepartmentsHandler(engine),
		Tickets:     handlers.NewTicketsHandler(engine),
		Admin:       handlers.NewAdminHandler(engine, cfg.Metrics),
	})
	return app
}
