package main

import (
	"context"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shortlink/pkg/cache"
	"shortlink/pkg/config"
	"shortlink/pkg/http"
	"shortlink/pkg/logging"
	"shortlink/pkg/middleware"
	"shortlink/pkg/server"
	"shortlink/pkg/service"
	"shortlink/pkg/storage"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
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

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error(ctx, "api server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	// DB connection
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	// Redis connection
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return err
	}
	redisClient := redis.NewClient(opt)
	defer redisClient.Close()

	linkStorage := storage.NewPostgresLinkStorage(pool)
	linkCache := cache.NewLinkCache(redisClient)

	recorder, closeRecorder, err := server.NewClickRecorder(cfg, linkStorage, linkStorage, redisClient, logger)
	if err != nil {
		return err
	}
	defer closeRecorder()

	linkService := service.NewLinkService(linkStorage, linkStorage, linkCache, recorder, logger, service.Options{
		BaseURL:          cfg.BaseURL,
		CacheTTL:         cfg.CacheTTL,
		NegativeCacheTTL: cfg.NegativeCacheTTL,
	})

	// OAuth Middleware
	var oauthMiddleware *middleware.OAuthMiddleware
	if cfg.AuthEnabled() {
		verifier, err := middleware.NewOIDCVerifier(ctx, middleware.OAuthConfig{
			IssuerURL: cfg.OIDCIssuer,
			Audience:  cfg.OIDCAudience,
		})
		if err != nil {
			return err
		}
		oauthMiddleware = middleware.NewOAuthMiddleware(verifier, logger)
	} else {
		logger.Warn(ctx, "OIDC_ISSUER not set, all requests are anonymous")
	}

	handler := http.NewHandler(linkService, logger, cfg.RedirectCacheMaxAge)
	r := chi.NewRouter()
	http.SetupRoutes(r, handler, oauthMiddleware, logger)

	srv := &stdhttp.Server{
		Addr:              cfg.APIAddr,
		Handler:           otelhttp.NewHandler(r, "api"),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.Serve(ctx, srv, recorder, logger)
}
