package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jaseci-labs/newsletter-api/pkg/logger"
	"github.com/jaseci-labs/newsletter-api/pkg/models"
	"github.com/jaseci-labs/newsletter-api/pkg/services"
)

const maxBodyBytes = 1 << 20

// Subscriber adds a visitor to the newsletter audience.
type Subscriber interface {
	Subscribe(ctx context.Context, req models.SubscriptionRequest) (*models.SubscriptionResult, error)
}

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	subscriber Subscriber
	log        *slog.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(subscriber Subscriber, log *slog.Logger) *Handlers {
	return &Handlers{
		subscriber: subscriber,
		log:        log.With(logger.Scope("api")),
	}
}

// HealthCheck handler for monitoring
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// HandleSubscribe processes newsletter form submissions
func (h *Handlers) HandleSubscribe(c *gin.Context) {
	// An unreadable body is treated like an empty form.
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		h.log.WarnContext(c.Request.Context(), "error reading request body", logger.Error(err))
		body = nil
	}

	req := models.DecodeSubscriptionRequest(body)

	res, err := h.subscriber.Subscribe(c.Request.Context(), req)
	if err != nil {
		status, msg := services.ErrorResponse(err)
		if status >= http.StatusInternalServerError {
			h.log.ErrorContext(c.Request.Context(), "subscribe failed", logger.Error(err))
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(res.StatusCode, gin.H{"message": res.Message})
}
