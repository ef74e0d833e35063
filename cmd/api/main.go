package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"publishing-api/config"
	"publishing-api/controllers"
	"publishing-api/middleware"
	"publishing-api/models"
	"publishing-api/routes"
	"publishing-api/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	settings, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger, err := config.NewLogger(settings)
	if err != nil {
		log.Fatalf("failed to initialise logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if settings.JWTSecret == "" {
		logger.Fatal("JWT_SECRET must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := config.SetupTracing(ctx, settings)
	if err != nil {
		logger.Fatal("failed to set up tracing", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	// Initialize database
	db, err := config.OpenDB(settings, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	if migrated, err := models.MigrateEmbedded(db); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	} else if migrated {
		logger.Info("embedded database schema migrated")
	}

	// Set Gin mode
	if settings.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	store := services.NewGormPublishingStore(db)
	publishing := services.NewPublishingService(store,
		services.WithLogger(logger.Named("publishing")),
		services.WithNotifier(services.NewMailApprovalNotifier(config.NewMailer(settings), settings.AdminBaseURL)),
	)

	// Create Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Tracing(settings.ServiceName))
	router.Use(middleware.RequestLogger(logger.Named("http")))

	routes.SetupRoutes(router, controllers.NewPublishingController(publishing, logger.Named("http")), settings.JWTSecret)

	if settings.ScheduledPublishInterval > 0 {
		job := services.NewScheduledPublishingJob(db, settings.ScheduledPublishLock, logger.Named("scheduler"))
		go job.Start(ctx, settings.ScheduledPublishInterval)
		logger.Info("scheduled publishing enabled", zap.Duration("interval", settings.ScheduledPublishInterval))
	}

	srv := &http.Server{
		Addr:              ":" + settings.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("server starting",
		zap.String("port", settings.ServerPort),
		zap.String("environment", settings.Environment),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("failed to start server", zap.Error(err))
	}
	logger.Info("server stopped")
}
