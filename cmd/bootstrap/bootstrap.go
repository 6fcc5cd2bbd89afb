package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"portfolio-booking/config"
	deliveryHttp "portfolio-booking/internal/delivery/http"
	"portfolio-booking/internal/delivery/http/handler"
	"portfolio-booking/internal/delivery/http/middleware"
	"portfolio-booking/internal/infrastructure/cache"
	"portfolio-booking/internal/infrastructure/database"
	"portfolio-booking/internal/repository"
	"portfolio-booking/internal/service"
	"portfolio-booking/internal/usecase"
	"portfolio-booking/pkg/validator"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// App holds all dependencies for the application
type App struct {
	Config      *config.Config
	DB          *gorm.DB
	RedisClient *redis.Client
	Server      *http.Server
	Locks       *service.SessionLockService
	Resets      *service.ResetScheduler
	RateLimit   *middleware.RateLimitMiddleware
}

// New creates a new App instance with all dependencies initialized
func New() (*App, error) {
	app := &App{}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	app.Config = cfg

	// Setup logger
	log := setupLogger(cfg.App)
	log.Info("Configuration loaded successfully")

	// Initialize database; the submission ledger is optional
	if cfg.DB.Enabled() {
		gormLevel := logger.Warn
		if cfg.App.Env == "development" {
			gormLevel = logger.Info
		}
		db, err := database.NewPostgresConnection(cfg.DB, gormLevel)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		app.DB = db
		log.Info("Database connected successfully")
	} else {
		log.Warn("DB_HOST not set, submission ledger disabled")
	}

	// Initialize Redis
	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	app.RedisClient = redisClient
	log.Info("Redis connected successfully")

	// Initialize all layers
	app.initializeServer(cfg, log)

	return app, nil
}

// setupLogger configures the logrus logger
func setupLogger(cfg config.AppConfig) *logrus.Logger {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	return logrus.StandardLogger()
}

// initializeServer creates and configures the HTTP server
func (app *App) initializeServer(cfg *config.Config, log *logrus.Logger) {
	// Initialize metrics registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := service.NewBookingMetrics(registry)

	// Initialize validator
	customValidator := validator.NewValidator()

	// Initialize repositories
	sessionRepo := repository.NewSessionRepository(app.RedisClient, cfg.Booking.SessionTTL)
	submissionRepo := repository.NewSubmissionRepository()

	// Initialize services
	ledger := service.NewNoopLedger()
	if app.DB != nil {
		ledger = service.NewLedgerService(app.DB, log, submissionRepo)
	}
	app.Locks = service.NewSessionLockService(log)
	app.Resets = service.NewResetScheduler(cfg.Booking.ResetDelay)
	calendar := service.NewCalendarService(cfg.Booking.WindowDays)
	relay := service.NewRelayClient(cfg.Relay, log)
	invites := service.NewInviteService(cfg.Calendar)

	// Initialize usecases
	bookingUsecase := usecase.NewBookingFlowUsecase(
		log, sessionRepo, calendar, customValidator, relay, invites,
		ledger, app.Locks, app.Resets, metrics, cfg.Booking.Timezone,
	)
	topics, fallback := usecase.DefaultAssistantTopics(cfg.Booking.OwnerName, cfg.Booking.OwnerEmail)
	assistantUsecase := usecase.NewAssistantUsecase(log, topics, fallback)

	// Initialize handlers
	bookingHandler := handler.NewBookingHandler(bookingUsecase, customValidator)
	assistantHandler := handler.NewAssistantHandler(assistantUsecase, customValidator)

	// Initialize middleware
	corsMiddleware := middleware.NewCORSMiddleware(cfg.Booking.AllowOrigin)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(log, cfg.RateLimit.ConfirmPerMinute, cfg.RateLimit.ConfirmBurst, cfg.RateLimit.TrustedProxies)
	app.RateLimit = rateLimitMiddleware

	// Initialize router
	router := deliveryHttp.NewRouter(log, bookingHandler, assistantHandler, corsMiddleware, rateLimitMiddleware, registry)
	httpRouter := router.Setup()

	// Create server
	serverAddr := fmt.Sprintf(":%s", cfg.App.Port)
	app.Server = &http.Server{
		Addr:              serverAddr,
		Handler:           httpRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Run starts the HTTP server and handles graceful shutdown
func (app *App) Run() {
	// Start server in goroutine
	go func() {
		logrus.Infof("Server starting on port %s", app.Config.App.Port)
		logrus.Infof("Environment: %s", app.Config.App.Env)
		if err := app.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	app.waitForShutdown()
}

// waitForShutdown blocks until an interrupt signal is received
func (app *App) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server gracefully
	if err := app.Server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	// Close connections
	app.Close()

	logrus.Info("Server shutdown complete")
}

// Close stops background workers and closes all connections
func (app *App) Close() {
	// Pending resets would touch Redis, so they go first
	if app.Resets != nil {
		app.Resets.Stop()
	}
	if app.Locks != nil {
		app.Locks.Stop()
	}
	if app.RateLimit != nil {
		app.RateLimit.Stop()
	}

	// Close database connection
	if app.DB != nil {
		sqlDB, err := app.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}

	// Close Redis connection
	if app.RedisClient != nil {
		app.RedisClient.Close()
	}
}
