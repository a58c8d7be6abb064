package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/jaseci-labs/newsletter-api/pkg/api"
	"github.com/jaseci-labs/newsletter-api/pkg/config"
	"github.com/jaseci-labs/newsletter-api/pkg/logger"
	"github.com/jaseci-labs/newsletter-api/pkg/middleware"
	"github.com/jaseci-labs/newsletter-api/pkg/services"
)

func main() {
	envErr := godotenv.Load()

	// Initialize configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("cannot load config", logger.Error(err))
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)
	if envErr != nil {
		log.Debug("no .env file loaded", logger.Error(envErr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize services
	subscriptionService := services.NewSubscriptionService(
		cfg.Mailchimp,
		services.NewClientFactory(&http.Client{Timeout: cfg.Mailchimp.HTTPTimeout}),
		log,
	)

	gin.SetMode(cfg.GinMode)

	var limiter *middleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		go limiter.Cleanup(ctx, time.Minute)
	}

	router, err := api.NewRouter(api.NewHandlers(subscriptionService, log), api.RouterOptions{
		AllowedOrigins: cfg.AllowedOrigins,
		TrustedProxies: cfg.TrustedProxies,
		RateLimiter:    limiter,
		Logger:         log,
	})
	if err != nil {
		log.Error("cannot build router", logger.Error(err))
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Warn("signal received, shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error("error starting server", logger.Error(err))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", logger.Error(err))
		return
	}
	log.Info("server exited")
}
