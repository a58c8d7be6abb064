package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jaseci-labs/newsletter-api/pkg/middleware"
)

// RouterOptions configures the middleware stack.
type RouterOptions struct {
	AllowedOrigins []string
	TrustedProxies []string
	// RateLimiter throttles the subscribe endpoint. nil disables it.
	RateLimiter *middleware.RateLimiter
	Logger      *slog.Logger
}

// NewRouter registers all routes on a new gin engine.
func NewRouter(h *Handlers, opts RouterOptions) (*gin.Engine, error) {
	router := gin.New()
	if err := router.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, err
	}

	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(opts.Logger))
	router.Use(middleware.CORS(opts.AllowedOrigins))

	subscribe := []gin.HandlerFunc{h.HandleSubscribe}
	if opts.RateLimiter != nil {
		subscribe = append([]gin.HandlerFunc{opts.RateLimiter.Middleware()}, subscribe...)
	}

	router.POST("/api/subscribe", subscribe...)
	router.GET("/health", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router, nil
}
