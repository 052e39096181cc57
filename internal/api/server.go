package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/amaumene/traktsync/internal/api/handlers"
	"github.com/amaumene/traktsync/internal/api/middleware"
	"github.com/amaumene/traktsync/internal/config"
	"github.com/amaumene/traktsync/internal/controllers"
	"github.com/amaumene/traktsync/internal/models"
	"github.com/amaumene/traktsync/internal/scheduler"
)

// Server represents the HTTP server
type Server struct {
	app    *fiber.App
	addr   string
	logger *logrus.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, db *models.Database, dispatcher *controllers.Dispatcher, batcher *controllers.Batcher, sched *scheduler.Scheduler, logger *logrus.Logger) *Server {
	s := &Server{
		addr:   ":" + cfg.ServerPort,
		logger: logger,
	}

	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
		IdleTimeout:           60 * time.Second,
		ErrorHandler:          errorHandler,
	})
	s.app.Use(middleware.Logging(logger))

	s.setupRoutes(routes{
		health:  handlers.NewHealthHandler(logger),
		status:  handlers.NewStatusHandler(db, batcher, sched, cfg.Accounts, logger),
		events:  handlers.NewEventsHandler(dispatcher, logger),
		library: handlers.NewLibraryHandler(db, dispatcher, logger),
		imports: handlers.NewImportHandler(sched, logger),
	})

	return s
}

type routes struct {
	health  *handlers.HealthHandler
	status  *handlers.StatusHandler
	events  *handlers.EventsHandler
	library *handlers.LibraryHandler
	imports *handlers.ImportHandler
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(r routes) {
	s.app.Get("/health", r.health.Get)
	s.app.Get("/status", r.status.Get)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := s.app.Group("/api")
	api.Post("/events", r.events.Post)
	api.Put("/library/items", r.library.PutItems)
	api.Put("/library/userdata", r.library.PutUserData)
	api.Post("/import", r.imports.Post)
}

// errorHandler renders errors as JSON
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		message = fiberErr.Message
	}

	return c.Status(code).JSON(fiber.Map{"error": message})
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("port", s.addr).Info("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.app.Listen(s.addr); err != nil {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(shutdownCtx)
}

// App exposes the fiber application
func (s *Server) App() *fiber.App {
	return s.app
}
