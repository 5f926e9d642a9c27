package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/SscSPs/exchange_rate_api/internal/adapters/database/memory"
	"github.com/SscSPs/exchange_rate_api/internal/adapters/database/pgsql"
	"github.com/SscSPs/exchange_rate_api/internal/adapters/messaging/kafka"
	"github.com/SscSPs/exchange_rate_api/internal/adapters/messaging/logpublisher"
	"github.com/SscSPs/exchange_rate_api/internal/adapters/messaging/redisstream"
	"github.com/SscSPs/exchange_rate_api/internal/adapters/providers/alphavantage"
	portsmsg "github.com/SscSPs/exchange_rate_api/internal/core/ports/messaging"
	portsrepo "github.com/SscSPs/exchange_rate_api/internal/core/ports/repositories"
	"github.com/SscSPs/exchange_rate_api/internal/core/services"
	"github.com/SscSPs/exchange_rate_api/internal/dto"
	"github.com/SscSPs/exchange_rate_api/internal/handlers"
	"github.com/SscSPs/exchange_rate_api/internal/middleware"
	"github.com/SscSPs/exchange_rate_api/internal/platform/config"
	"github.com/SscSPs/exchange_rate_api/internal/platform/metrics"
	"github.com/SscSPs/exchange_rate_api/pkg/database"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const shutdownTimeout = 15 * time.Second

// @title Exchange Rate API
// @version 1.0
// @description Stores currency exchange rates and fills gaps from AlphaVantage.

// @host localhost:8080
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	if err := dto.RegisterValidators(); err != nil {
		logger.Error("Failed to register request validators", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, dbPool, err := newRepositories(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize rate store", slog.String("driver", cfg.StoreDriver), slog.String("error", err.Error()))
		os.Exit(1)
	}
	if dbPool != nil {
		defer database.ClosePgxPool(dbPool)
	}

	provider := alphavantage.NewClient(
		config.AlphaVantageAPIKey,
		alphavantage.WithBaseURL(cfg.AlphaVantageBaseURL),
		alphavantage.WithTimeout(cfg.ProviderTimeout),
	)

	publisher := newPublisher(cfg)
	logger.Info("Change publisher configured",
		slog.String("driver", cfg.PublisherDriver),
		slog.String("queue", cfg.QueueName),
		slog.Any("publish_on", cfg.PublishKinds()))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(registry)

	serviceContainer, exchangeRates := services.NewServiceContainer(repos, provider,
		services.WithChangePublisher(publisher, cfg.PublishKinds()...),
		services.WithPublishTimeout(cfg.PublishTimeout),
		services.WithMaxUpdateRetries(cfg.UpdateMaxRetries),
		services.WithMetrics(appMetrics),
	)

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware (logging, recovery)
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery())

	if err := r.SetTrustedProxies(nil); err != nil {
		logger.Error("Failed to set trusted proxies", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if len(cfg.CORSAllowedOrigins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
		corsConfig.AddAllowHeaders("Authorization", middleware.RequestIDHeader)
		corsConfig.AddExposeHeaders(middleware.RequestIDHeader)
		r.Use(cors.New(corsConfig))
	}

	rateLimiter, err := middleware.NewRateLimiter(cfg.RateLimit)
	if err != nil {
		logger.Error("Invalid RATE_LIMIT", slog.String("value", cfg.RateLimit), slog.String("error", err.Error()))
		os.Exit(1)
	}
	r.Use(middleware.RateLimit(rateLimiter), middleware.HTTPMetrics(appMetrics))

	handlers.RegisterRoutes(r, cfg, serviceContainer, registry)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting", slog.String("port", cfg.Port), slog.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server failed to run", slog.String("error", err.Error()))
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", slog.String("error", err.Error()))
	}

	exchangeRates.WaitForPendingPublishes()
	if closer, ok := publisher.(portsmsg.Closer); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close change publisher", slog.String("error", err.Error()))
		}
	}
	logger.Info("Server stopped")
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return slog.LevelInfo
	}
	return l
}

// newRepositories builds the rate store selected by STORE_DRIVER. The pool is
// nil for the memory driver.
func newRepositories(ctx context.Context, cfg *config.Config, logger *slog.Logger) (portsrepo.RepositoryProvider, *pgxpool.Pool, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("Using in-memory rate store, data is lost on restart")
		return memory.NewRepositoryProvider(), nil, nil
	}

	// Initialize database connection pool (for application use)
	dbPool, err := database.NewPgxPool(ctx, cfg.DatabaseURL, cfg.EnableDBCheck)
	if err != nil {
		return portsrepo.RepositoryProvider{}, nil, err
	}
	logger.Info("Database connection pool established.")

	if err := runMigrations(cfg, logger); err != nil {
		database.ClosePgxPool(dbPool)
		return portsrepo.RepositoryProvider{}, nil, err
	}
	return pgsql.NewRepositoryProvider(dbPool), dbPool, nil
}

func runMigrations(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("Running database migrations...", slog.String("path", cfg.MigrationsPath))
	// Open a temporary standard sql.DB connection for migrations
	// Using pgx/v5/stdlib driver to be compatible with the main pool
	migrationDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer func() {
		if cerr := migrationDB.Close(); cerr != nil {
			logger.Error("Error closing migration DB connection", slog.String("error", cerr.Error()))
		}
	}()
	if err := migrationDB.Ping(); err != nil {
		return fmt.Errorf("ping database for migrations: %w", err)
	}

	driver, err := postgres.WithInstance(migrationDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migrate driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(cfg.MigrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	upErr := m.Up()
	sourceErr, dbErr := m.Close()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	if sourceErr != nil {
		return fmt.Errorf("migration source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("migration database: %w", dbErr)
	}

	if errors.Is(upErr, migrate.ErrNoChange) {
		logger.Info("No new migrations to apply.")
	} else {
		logger.Info("Database migrations applied successfully.")
	}
	return nil
}

func newPublisher(cfg *config.Config) portsmsg.ChangePublisher {
	switch cfg.PublisherDriver {
	case config.PublisherDriverKafka:
		return kafka.NewPublisher(cfg.KafkaBrokers, cfg.QueueName)
	case config.PublisherDriverRedis:
		return redisstream.NewPublisher(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.QueueName)
	default:
		return logpublisher.NewPublisher()
	}
}
