package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/kaimentalityy/InnoPaymentService/internal/app/payments"
	"github.com/kaimentalityy/InnoPaymentService/internal/app/reporting"
	"github.com/kaimentalityy/InnoPaymentService/internal/config"
	payments_http "github.com/kaimentalityy/InnoPaymentService/internal/handler/http/payments"
	kafka_handler "github.com/kaimentalityy/InnoPaymentService/internal/handler/kafka"
	"github.com/kaimentalityy/InnoPaymentService/internal/idempotency"
	"github.com/kaimentalityy/InnoPaymentService/internal/infrastructure/database"
	kafka_infra "github.com/kaimentalityy/InnoPaymentService/internal/infrastructure/kafka"
	"github.com/kaimentalityy/InnoPaymentService/internal/infrastructure/random"
	"github.com/kaimentalityy/InnoPaymentService/internal/repository/payments_repo"
	"github.com/kaimentalityy/InnoPaymentService/internal/repository/payments_repo/memory"
	"github.com/kaimentalityy/InnoPaymentService/internal/repository/payments_repo/postgres"
)

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}
	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(lvl)
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"
	return zapConfig.Build()
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (payments_repo.Store, *sql.DB, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("Using in-memory payment store, data is lost on restart")
		return memory.NewPaymentRepository(), nil, nil
	}

	dbConfig := database.DBConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.Name,
		SSLMode:  cfg.DBConfig.SSLMode,
	}

	logger.Info("Waiting for database to be available...")
	db, err := database.ConnectWithRetry(ctx, dbConfig, 10, 5*time.Second, logger)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("Running database migrations...")
	if err := database.Migrate(dbConfig, logger); err != nil {
		db.Close()
		return nil, nil, err
	}
	return postgres.NewPaymentRepository(db), db, nil
}

func openIdempotency(ctx context.Context, cfg *config.Config, logger *zap.Logger) (idempotency.Store, *redis.Client) {
	if !cfg.IdempotencyEnabled() {
		logger.Info("REDIS_ADDR is empty, inbound idempotency disabled")
		return idempotency.Noop{}, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis is not reachable yet, idempotency checks will fail open", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	} else {
		logger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}
	return idempotency.NewRedisStore(rdb, cfg.Redis.IdempotencyTTL), rdb
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	appLogger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()
	appLogger.Info("Payment Service starting...")

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, db, err := openStore(ctx, cfg, appLogger.With(zap.String("component", "Database")))
	if err != nil {
		appLogger.Fatal("Failed to initialize payment store", zap.Error(err))
	}
	if db != nil {
		defer func() {
			if err := db.Close(); err != nil {
				appLogger.Error("Error closing database connection", zap.Error(err))
			} else {
				appLogger.Info("Database connection closed.")
			}
		}()
	}

	kafkaBrokers := cfg.GetKafkaBrokers()
	topicsCtx, cancelTopics := context.WithTimeout(ctx, cfg.KafkaEnsureTopicsTimeout)
	err = kafka_infra.EnsureTopics(topicsCtx, kafkaBrokers, []kafka_infra.TopicSpec{
		{Name: cfg.KafkaOrderEventsTopic, Partitions: cfg.KafkaTopicPartitions, ReplicationFactor: cfg.KafkaReplicationFactor},
		{Name: cfg.KafkaPaymentEventsTopic, Partitions: cfg.KafkaTopicPartitions, ReplicationFactor: cfg.KafkaReplicationFactor},
	}, appLogger)
	cancelTopics()
	if err != nil {
		appLogger.Fatal("Failed to ensure Kafka topics", zap.Error(err))
	}

	kafkaProducer := kafka_infra.NewPaymentEventProducer(kafka_infra.ProducerConfig{
		Brokers:      kafkaBrokers,
		Topic:        cfg.KafkaPaymentEventsTopic,
		WriteTimeout: cfg.KafkaWriteTimeout,
		MaxAttempts:  cfg.KafkaWriteMaxAttempts,
	}, appLogger.With(zap.String("component", "KafkaProducer")))
	defer func() {
		if err := kafkaProducer.Close(); err != nil {
			appLogger.Error("Error closing Kafka producer", zap.Error(err))
		} else {
			appLogger.Info("Kafka producer closed.")
		}
	}()

	randomClient, err := random.NewClient(random.Config{
		BaseURL:        cfg.RandomAPI.BaseURL,
		Path:           cfg.RandomAPI.Path,
		Min:            cfg.RandomAPI.Min,
		Max:            cfg.RandomAPI.Max,
		Count:          cfg.RandomAPI.Count,
		Timeout:        cfg.RandomAPI.Timeout,
		MaxRetries:     cfg.RandomAPI.MaxRetries,
		InitialBackoff: cfg.RandomAPI.InitialBackoff,
	}, nil, appLogger.With(zap.String("component", "RandomClient")))
	if err != nil {
		appLogger.Fatal("Failed to create random API client", zap.Error(err))
	}

	seenEvents, rdb := openIdempotency(ctx, cfg, appLogger.With(zap.String("component", "Idempotency")))
	if rdb != nil {
		defer func() {
			if err := rdb.Close(); err != nil {
				appLogger.Error("Error closing Redis client", zap.Error(err))
			}
		}()
	}

	paymentService := payments.NewPaymentService(
		store,
		randomClient,
		kafkaProducer,
		payments.Options{CompensationTimeout: cfg.CompensationTimeout},
		appLogger.With(zap.String("component", "PaymentService")),
	)
	reportingEngine := reporting.NewEngine(store, appLogger.With(zap.String("component", "ReportingEngine")))
	appLogger.Info("Payment Service initialized.")

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	payments_http.RegisterRoutes(router, paymentService, reportingEngine, appLogger.With(zap.String("component", "HTTPHandler")))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	orderCreatedHandler := kafka_handler.OrderCreatedMessageHandler(
		paymentService,
		seenEvents,
		appLogger.With(zap.String("component", "OrderCreatedHandler")),
	)
	orderEventsConsumer := kafka_infra.NewConsumer(kafka_infra.ConsumerConfig{
		Brokers:         kafkaBrokers,
		Topic:           cfg.KafkaOrderEventsTopic,
		GroupID:         cfg.KafkaConsumerGroup,
		HandlerTimeout:  cfg.KafkaHandlerTimeout,
		HandlerAttempts: cfg.KafkaHandlerAttempts,
		RetryBackoff:    cfg.KafkaRetryBackoff,
	}, orderCreatedHandler, appLogger.With(zap.String("component", "OrderEventsConsumer")))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		appLogger.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		appLogger.Info("Starting Order Events Kafka Consumer...")
		err := orderEventsConsumer.Consume(gctx)
		appLogger.Info("Order Events Kafka Consumer stopped.")
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Shutting down application...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server graceful shutdown failed: %w", err)
		}
		appLogger.Info("HTTP server gracefully shut down.")
		return nil
	})

	if err := g.Wait(); err != nil {
		appLogger.Error("Payment Service stopped with error", zap.Error(err))
	}

	if err := orderEventsConsumer.Close(); err != nil {
		appLogger.Error("Error closing Order Events Kafka Consumer", zap.Error(err))
	}
	appLogger.Info("Application gracefully shut down.")
}
