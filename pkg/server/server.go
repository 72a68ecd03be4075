// Package server holds the startup and shutdown plumbing shared by the api
// and redirect binaries.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"shortlink/pkg/cache"
	"shortlink/pkg/config"
	"shortlink/pkg/events"
	"shortlink/pkg/logging"
	"shortlink/pkg/service"
	"shortlink/pkg/storage"

	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

// NewClickRecorder picks where clicks go: straight to the store or onto the
// queue. The returned func releases the broker connection, if any.
func NewClickRecorder(cfg *config.Config, links storage.LinkStorage, clicks storage.ClickEventStorage, redisClient *redis.Client, logger *logging.Logger) (service.ClickRecorder, func(), error) {
	if cfg.ClickRecorder == config.RecorderAMQP {
		conn, ch, err := events.Connect(cfg.RabbitMQURL, cfg.ClickQueueName)
		if err != nil {
			return nil, nil, err
		}
		publisher := events.NewPublisher(ch, cfg.ClickQueueName, cfg.ClickWriteTimeout, cfg.ClickMaxInFlight, logger)
		return publisher, func() { ch.Close(); conn.Close() }, nil
	}

	dedup := cache.NewEventDeduper(redisClient, cfg.EventDedupWindow)
	writer := service.NewClickWriter(links, clicks, dedup, logger)
	return service.NewAsyncRecorder(writer, cfg.ClickWriteTimeout, cfg.ClickMaxInFlight, logger), func() {}, nil
}

// Serve runs srv until ctx is cancelled, then drains requests and pending
// click writes, in that order.
func Serve(ctx context.Context, srv *http.Server, recorder service.ClickRecorder, logger *logging.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Info(shutdownCtx, "shutting down", "addr", srv.Addr)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return recorder.Close(shutdownCtx)
}
