// Package server assembles the catalog HTTP application and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"catalog/internal/config"
	"catalog/internal/database"
	"catalog/internal/handlers"
	"catalog/internal/middleware"
	"catalog/internal/repositories"
	"catalog/internal/services"
	"catalog/internal/views"
	"catalog/pkg/rabbitmq"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Deps are the collaborators of the HTTP application.
type Deps struct {
	Config  config.Config
	Logger  *zap.Logger
	Service *services.ProductService
	// Metrics enables /metrics when set.
	Metrics *middleware.Metrics
	// Views and Assets default to the embedded templates and static files.
	Views  fiber.Views
	Assets handlers.AssetLoader
}

// New builds the fiber app: middleware, static assets, pages, the API router
// and the HTML 404 fallback, in that order.
func New(d Deps) *fiber.App {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	engine := d.Views
	if engine == nil {
		engine = views.NewEngine()
	}
	assets := d.Assets
	if assets == nil {
		assets = views.Asset
	}

	app := fiber.New(fiber.Config{
		AppName:               "catalog",
		Views:                 engine,
		StreamRequestBody:     true,
		BodyLimit:             d.Config.BodyLimit,
		// bounds the headers and the body prefix read before any handler runs
		ReadTimeout:           d.Config.BodyTimeout,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
	})

	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(middleware.AccessLog(logger))
	app.Use(recover.New(recover.Config{EnableStackTrace: d.Config.Development()}))
	app.Use(middleware.CORS())
	if d.Metrics != nil {
		app.Use(d.Metrics.Middleware())
		app.Get("/metrics", d.Metrics.Handler())
	}

	handlers.NewStaticHandler(assets).RegisterRoutes(app)

	pages := handlers.NewPageHandler(d.Service, logger)
	pages.RegisterRoutes(app)

	router := handlers.NewRouter(d.Config.BodyTimeout, logger)
	handlers.NewProductHandler(d.Service).RegisterRoutes(router)
	router.Mount(app, "/produtos")

	app.Use(pages.HandleNotFound)
	return app
}

// errorHandler answers anything that escaped the handlers with plain text,
// except read timeouts which get the API envelope.
func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		msg := services.MsgInternal
		var fe *fiber.Error
		if errors.As(err, &fe) && fe.Code == fiber.StatusRequestTimeout {
			logger.Warn("request read timeout", zap.String("path", c.Path()))
			c.Context().SetConnectionClose()
			return c.Status(fiber.StatusRequestTimeout).JSON(fiber.Map{
				"success": false,
				"error":   services.MsgTimeout,
			})
		}
		if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
			code, msg = fe.Code, fe.Message
		} else {
			logger.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.Status(code).SendString(msg)
	}
}

// OpenRepository returns the product store selected by cfg and its closer.
func OpenRepository(cfg config.Config, logger *zap.Logger) (repositories.ProductRepository, func() error, error) {
	if cfg.DBDriver == database.DriverMemory {
		logger.Warn("using in-memory product store; data is lost on exit")
		return repositories.NewMemoryProductRepository(), func() error { return nil }, nil
	}

	db, err := database.Open(database.Options{
		Driver:          cfg.DBDriver,
		DSN:             cfg.DBDSN,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		LogSQL:          cfg.Development(),
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Info("database ready", zap.String("driver", cfg.DBDriver))
	return repositories.NewGORMProductRepository(db, cfg.DBQueryTimeout), func() error { return database.Close(db) }, nil
}

// Run opens the store and the optional event publisher, serves on cfg.Addr()
// and shuts everything down once ctx is cancelled. A store that cannot be
// opened aborts the start; a broker that cannot be reached only disables events.
func Run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	repo, closeStore, err := OpenRepository(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("failed to close database", zap.Error(err))
		}
	}()

	opts := []services.Option{services.WithLogger(logger)}
	if cfg.RabbitMQURL != "" {
		mq, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Queue: cfg.RabbitMQQueue}, logger)
		if err != nil {
			logger.Warn("product events disabled", zap.Error(err))
		} else {
			defer mq.Close()
			opts = append(opts, services.WithPublisher(mq))
		}
	}

	deps := Deps{
		Config:  cfg,
		Logger:  logger,
		Service: services.NewProductService(repo, opts...),
	}
	if cfg.MetricsEnabled {
		deps.Metrics = middleware.NewMetrics()
	}
	app := New(deps)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(cfg.Addr())
	}()
	logger.Info("server listening", zap.String("addr", cfg.Addr()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return <-errCh
}
