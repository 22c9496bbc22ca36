package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/spotsng/discovery-be/internal/cache"
	"github.com/spotsng/discovery-be/internal/catalog"
	"github.com/spotsng/discovery-be/internal/config"
	"github.com/spotsng/discovery-be/internal/directory"
	"github.com/spotsng/discovery-be/internal/discovery"
	"github.com/spotsng/discovery-be/internal/enrichment"
	"github.com/spotsng/discovery-be/internal/metrics"
	"github.com/spotsng/discovery-be/shared/clock"
	"github.com/spotsng/discovery-be/shared/logger"
	"github.com/spotsng/discovery-be/shared/postgresql"
	"github.com/spotsng/discovery-be/shared/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("DISCOVERY_WORKER_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/discovery-worker/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting discovery worker",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Initialize PostgreSQL client
	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Info("Database connection established")

	// Initialize RabbitMQ client
	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	appLogger.Info("RabbitMQ connection established")

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	storage := catalog.NewStorage(dbClient.GetDB(), appLogger.Logger)

	locationCache := cache.New[*catalog.Location](cache.Config{
		DefaultTTL:      cfg.Cache.DefaultTTL,
		CleanupInterval: cfg.Cache.CleanupInterval,
		Clock:           clock.Real{},
		Logger:          appLogger.Logger,
		Metrics:         collector,
	})

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	locationCache.Start(ctx)

	directoryClient := directory.NewHTTPClient(&directory.Config{
		BaseURL:        cfg.Directory.BaseURL,
		APIKey:         cfg.Directory.APIKey,
		RequestTimeout: cfg.Directory.RequestTimeout,
		RatePerSecond:  cfg.Directory.RatePerSecond,
		RateBurst:      cfg.Directory.RateBurst,
	}, appLogger.Logger)

	queue := enrichment.NewQueue(storage, directoryClient, locationCache, clock.Real{}, appLogger.Logger, collector, enrichment.Config{
		BatchSize:       cfg.Enrichment.BatchSize,
		MaxAttempts:     cfg.Enrichment.MaxAttempts,
		RetryDelay:      cfg.Enrichment.RetryDelay,
		BatchDelay:      cfg.Enrichment.BatchDelay,
		FreshnessWindow: cfg.Enrichment.FreshnessWindow,
	})

	orchestrator := discovery.NewOrchestrator(storage, queue, clock.Real{}, appLogger.Logger, collector)

	consumerTag := fmt.Sprintf("discovery-worker-%s", uuid.New().String()[:8])
	consumer := discovery.NewConsumer(rabbitClient, orchestrator, appLogger.Logger, consumerTag, cfg.RabbitMQ.Consumer.PrefetchCount)

	// Start consumer in a goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := consumer.Run(ctx); err != nil {
			errChan <- err
		}
	}()

	appLogger.Info("Discovery worker started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Consumer error",
			slog.Any("error", err),
		)
		cancel()
		queue.Stop()
		locationCache.Stop()
		dbClient.Close()
		rabbitClient.Close()
		return err
	}

	// Cancel context to stop the consumer and drain in-flight work
	cancel()
	queue.Stop()
	locationCache.Stop()

	if err := dbClient.Close(); err != nil {
		appLogger.Error("Failed to close database connection",
			slog.Any("error", err),
		)
	}

	if err := rabbitClient.Close(); err != nil {
		appLogger.Error("Failed to close RabbitMQ connection",
			slog.Any("error", err),
		)
	}

	appLogger.Info("Discovery worker shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}
