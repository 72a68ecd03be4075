package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"shortlink/pkg/cache"
	"shortlink/pkg/config"
	"shortlink/pkg/events"
	"shortlink/pkg/logging"
	"shortlink/pkg/service"
	"shortlink/pkg/storage"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewLogger(logging.LevelError).Error(context.Background(), "invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(logging.LogLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(ctx, "unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Error(ctx, "invalid redis url", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(opt)
	defer redisClient.Close()

	conn, ch, err := events.Connect(cfg.RabbitMQURL, cfg.ClickQueueName)
	if err != nil {
		logger.Error(ctx, "unable to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer conn.Close()
	defer ch.Close()

	linkStorage := storage.NewPostgresLinkStorage(pool)
	writer := service.NewClickWriter(linkStorage, linkStorage, cache.NewEventDeduper(redisClient, cfg.EventDedupWindow), logger)
	consumer := events.NewConsumer(ch, cfg.ClickQueueName, cfg.WorkerPrefetch, cfg.ClickWriteTimeout, writer, logger)

	if err := consumer.Run(ctx); err != nil {
		logger.Error(ctx, "analytics worker stopped", "error", err)
		os.Exit(1)
	}
	logger.Info(ctx, "analytics worker stopped")
}
