package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/fabseal/fabseal/internal/config"
	"github.com/fabseal/fabseal/internal/keyspace"
	"github.com/fabseal/fabseal/internal/notify"
	"github.com/fabseal/fabseal/internal/queue"
	"github.com/fabseal/fabseal/internal/store"
	"github.com/fabseal/fabseal/internal/worker"
	"github.com/fabseal/fabseal/internal/worker/storage"
	"github.com/fabseal/fabseal/shared/logger"
	"github.com/fabseal/fabseal/shared/objectstore"
	"github.com/fabseal/fabseal/shared/postgresql"
	"github.com/fabseal/fabseal/shared/rabbitmq"
	"github.com/fabseal/fabseal/shared/redisclient"
	"github.com/joho/godotenv"
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
	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
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
	appLogger, err := initLogger(&cfg.Logging, "fabseal-worker")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	ctx := context.Background()

	// Initialize Redis client
	redisClient, err := initRedis(&cfg.Redis, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	defer redisClient.Close()

	appLogger.Info("Redis connection established", slog.String("addr", cfg.Redis.Addr))

	rdb := redisClient.Redis()
	submissions := queue.New(rdb, queue.Config{
		Stream:       cfg.Queue.Stream,
		Group:        cfg.Queue.Group,
		BlockTimeout: cfg.Queue.BlockTimeout,
		MaxLen:       cfg.Queue.MaxLen,
	}, appLogger.Logger)

	if err := submissions.EnsureGroup(ctx); err != nil {
		return fmt.Errorf("failed to set up consumer group: %w", err)
	}

	artifacts := store.New(rdb, keyspace.New(cfg.Limits.Namespace), cfg.Limits.Expirations(), appLogger.Logger)

	// Initialize conversion engine
	engine, err := worker.NewBlenderEngine(worker.EngineConfig{
		Tool:        cfg.Engine.Tool,
		ResourceDir: cfg.Engine.ResourceDir,
	}, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize conversion engine: %w", err)
	}

	var reporters []worker.Reporter

	// Initialize PostgreSQL job ledger
	if cfg.Database.Enabled {
		dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer dbClient.Close()

		ledger := storage.NewStorage(dbClient.GetDB(), appLogger.Logger)
		if err := ledger.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("failed to prepare job ledger: %w", err)
		}
		reporters = append(reporters, ledger)

		appLogger.Info("Database connection established")
	}

	// Initialize RabbitMQ notifications
	if cfg.RabbitMQ.Enabled {
		rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		defer rabbitClient.Close()

		reporters = append(reporters, notify.New(rabbitClient, appLogger.Logger))

		appLogger.Info("RabbitMQ connection established")
	}

	// Initialize result archive
	var archiver worker.Archiver
	if cfg.ObjectStore.Enabled {
		objects, err := initObjectStore(ctx, &cfg.ObjectStore, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize object store: %w", err)
		}
		archiver = worker.NewObjectArchive(objects)

		appLogger.Info("Object store ready", slog.String("bucket", objects.Bucket()))
	}

	// Raise the shutdown flag on SIGINT/SIGTERM; the in-flight job always finishes
	shutdown := &worker.ShutdownFlag{}
	stopSignals := worker.NotifyShutdown(shutdown, appLogger.Logger)
	defer stopSignals()

	// Create worker instance
	workerInstance := worker.NewWorker(&worker.Config{
		Logger:     appLogger.Logger,
		Queue:      submissions,
		Store:      artifacts,
		Engine:     engine,
		Reporters:  reporters,
		Archiver:   archiver,
		Shutdown:   shutdown,
		RetryDelay: cfg.Queue.BlockTimeout,
		TempDir:    cfg.Engine.TempDir,
	})

	appLogger.Info("Worker service started successfully",
		slog.String("consumer", workerInstance.Consumer()),
	)

	if err := workerInstance.Start(ctx); err != nil {
		appLogger.Error("Worker error",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig, service string) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableSource,
		TimeFormat:   cfg.TimeFormat,
		NoColor:      cfg.NoColor,
		Service:      service,
	}

	return logger.New(loggerCfg)
}

// initRedis initializes the Redis client
func initRedis(cfg *config.RedisConfig, logger *slog.Logger) (*redisclient.Client, error) {
	return redisclient.NewClient(&redisclient.Config{
		Addr:          cfg.Addr,
		Password:      cfg.Password,
		DB:            cfg.DB,
		DialTimeout:   cfg.DialTimeout,
		ReadTimeout:   cfg.ReadTimeout,
		WriteTimeout:  cfg.WriteTimeout,
		PoolSize:      cfg.PoolSize,
		RetryAttempts: cfg.RetryAttempts,
		RetryInterval: cfg.RetryInterval,
	}, logger)
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
		ConnectTimeout:  cfg.ConnectTimeout,
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
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// initObjectStore initializes the result archive bucket
func initObjectStore(ctx context.Context, cfg *config.ObjectStoreConfig, logger *slog.Logger) (*objectstore.Client, error) {
	client, err := objectstore.NewClient(&objectstore.Config{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
		UseSSL:    cfg.UseSSL,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := client.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return client, nil
}
