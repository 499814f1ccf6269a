package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"bookcatalog/internal/availability"
	"bookcatalog/internal/book"
	"bookcatalog/internal/config"
	"bookcatalog/internal/platform/logging"
	"bookcatalog/internal/platform/metrics"
	"bookcatalog/internal/queue"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api exited", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.NewRegistry()).WithRuntimeCollectors()

	dbPool, err := openDB(ctx, cfg.Database.DSN, logger)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	channel, closeChannel := newChannel(cfg.Queue, logger)
	defer func() {
		if err := closeChannel(); err != nil {
			logger.Warn("closing event channel", zap.Error(err))
		}
	}()

	bookRepository := book.NewPostgresRepo(dbPool, cfg.Database.QueryTimeout)
	publisher := availability.NewPublisher(channel, cfg.Queue.AvailabilityLane, cfg.Queue.PublishTimeout, logger, m)
	bookService := book.NewService(bookRepository, publisher, logger)
	bookHandler := book.NewHTTPHandler(bookService, logger)

	var wg sync.WaitGroup
	if cfg.Queue.ConsumerEnabled {
		policy, err := availability.PolicyByName(cfg.Queue.TogglePolicy)
		if err != nil {
			return err
		}
		consumer := availability.NewConsumer(channel, bookRepository, availability.ConsumerConfig{
			AvailabilityLane: cfg.Queue.AvailabilityLane,
			ResponseLane:     cfg.Queue.ResponseLane,
			Policy:           policy,
			PublishTimeout:   cfg.Queue.PublishTimeout,
		}, logger, m)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil {
				logger.Error("availability consumer failed", zap.Error(err))
			}
		}()
	}

	handler, cleanup := withMiddleware(newRouter(bookHandler, dbPool, m), cfg.HTTP, logger, m)
	defer cleanup()

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		stop()
		wg.Wait()
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	wg.Wait()
	return nil
}

func openDB(ctx context.Context, dsn string, logger *zap.Logger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot create db pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("cannot ping database (%s): %w", config.RedactDSN(dsn), err)
	}
	logger.Info("database connection OK")
	return pool, nil
}

// newChannel picks RabbitMQ when a URL is configured and the in-process
// channel otherwise.
func newChannel(cfg config.QueueConfig, logger *zap.Logger) (queue.Channel, func() error) {
	policy := queue.RedeliveryPolicy{
		MaxRedeliveries:  cfg.MaxRedeliveries,
		DeadLetterSuffix: cfg.DeadLetterSuffix,
	}

	if cfg.URL == "" {
		logger.Warn("AMQP_URL not set, availability events stay in process")
		ch := queue.NewMemory(policy, queue.WithMemoryLogger(logger))
		return ch, ch.Close
	}

	logger.Info("using rabbitmq",
		zap.String("url", config.RedactDSN(cfg.URL)),
		zap.String("connection_mode", cfg.ConnectionMode),
	)
	ch := queue.NewAMQP(queue.AMQPConfig{
		URL:        cfg.URL,
		Shared:     cfg.ConnectionMode == config.ConnectionShared,
		Redelivery: policy,
		Logger:     logger,
	})
	return ch, ch.Close
}
