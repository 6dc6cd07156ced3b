package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"captionapi/internal/config"
	"captionapi/internal/database"
	"captionapi/internal/database/migration"
	"captionapi/internal/events"
	handlers "captionapi/internal/http/handler"
	"captionapi/internal/http/middleware"
	"captionapi/internal/inference"
	"captionapi/internal/logging"
	"captionapi/internal/otel"
	"captionapi/internal/repository/postgres"
	"captionapi/internal/service"
	"captionapi/internal/storage"
)

const shutdownTimeout = 30 * time.Second

// @title Caption API
// @version 1.0
// @description Captions images in English, translates the caption into an Indic language and speaks both.
// @BasePath /
func main() {
	if err := run(); err != nil {
		slog.Error("server_exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	loc := cfg.Location()

	log := logging.New(logging.Options{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		File:     cfg.Log.File,
		Location: loc,
	})
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, log)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Error("tracing_shutdown_failed", "error", err)
		}
	}()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, log); err != nil {
		return err
	}

	objStore, err := storage.New(cfg.Storage, cfg.MinIO)
	if err != nil {
		return err
	}
	log.Info("storage_configured", "driver", cfg.Storage.Driver)

	// Model clients are built once and shared by all requests.
	captioner, err := inference.NewCaptioner(cfg.Caption, cfg.OpenAI)
	if err != nil {
		return err
	}
	translator, err := inference.NewTranslator(ctx, cfg.Translate)
	if err != nil {
		return err
	}
	if c, ok := translator.(interface{ Close() error }); ok {
		defer c.Close()
	}
	synthesizer := inference.NewSynthesizer(cfg.Speech)
	log.Info("models_configured",
		"caption_provider", cfg.Caption.Provider,
		"caption_model", cfg.Caption.Model,
		"translate_provider", cfg.Translate.Provider,
		"translate_model", cfg.Translate.Model,
	)

	var publisher events.Publisher = events.Nop{}
	if cfg.Events.NATSURL != "" {
		p, err := events.ConnectNATS(cfg.Events.NATSURL, cfg.Events.Subject)
		if err != nil {
			return err
		}
		publisher = p
		log.Info("events_configured", "subject", cfg.Events.Subject)
	}
	defer publisher.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return err
	}

	captionRepo := postgres.NewCaptionPostgres(db)
	captionSvc := service.NewCaptionService(service.Deps{
		Store:         objStore,
		Repo:          captionRepo,
		Captioner:     captioner,
		Translator:    translator,
		Synthesizer:   synthesizer,
		Events:        publisher,
		Metrics:       service.NewMetrics(reg),
		Logger:        log,
		MaxImageBytes: int64(cfg.MaxUploadBytes),
	})

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		// Multipart framing on top of the image itself.
		BodyLimit:             cfg.MaxUploadBytes + 64*1024,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(otelfiber.Middleware(otelfiber.WithNext(func(c *fiber.Ctx) bool {
		return c.Path() == "/metrics"
	})))
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(log))
	app.Use(promMiddleware.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	handlers.RegisterRoutes(app, db, captionSvc, cfg.AppHost)

	errCh := make(chan error, 1)
	go func() {
		log.Info("server_started", "addr", ":"+cfg.Port)
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("server_shutting_down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
