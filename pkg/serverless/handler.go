// Package serverless exposes the subscribe operation as an API Gateway HTTP
// API Lambda handler.
package serverless

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jaseci-labs/newsletter-api/pkg/logger"
	"github.com/jaseci-labs/newsletter-api/pkg/models"
	"github.com/jaseci-labs/newsletter-api/pkg/services"
)

// Subscriber adds a visitor to the newsletter audience.
type Subscriber interface {
	Subscribe(ctx context.Context, req models.SubscriptionRequest) (*models.SubscriptionResult, error)
}

type Handler struct {
	subscriber Subscriber
	log        *slog.Logger
}

// New creates a Handler backed by subscriber.
func New(subscriber Subscriber, log *slog.Logger) *Handler {
	return &Handler{
		subscriber: subscriber,
		log:        log.With(logger.Scope("lambda")),
	}
}

// Subscribe handles a POST from the signup form. Every outcome, including
// upstream failures, is returned as a response; the error is always nil so
// the invocation is never retried.
func (h *Handler) Subscribe(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if req.RequestContext.HTTP.Method == http.MethodOptions {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusNoContent}, nil
	}

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			h.log.WarnContext(ctx, "error decoding request body", logger.Error(err))
			decoded = nil
		}
		body = decoded
	}

	res, err := h.subscriber.Subscribe(ctx, models.DecodeSubscriptionRequest(body))
	if err != nil {
		status, msg := services.ErrorResponse(err)
		if status >= http.StatusInternalServerError {
			h.log.ErrorContext(ctx, "subscribe failed", logger.Error(err))
		}
		return jsonResponse(status, map[string]string{"error": msg}), nil
	}

	return jsonResponse(res.StatusCode, map[string]string{"message": res.Message}), nil
}

func jsonResponse(status int, payload map[string]string) events.APIGatewayV2HTTPResponse {
	// A map of strings always marshals.
	b, _ := json.Marshal(payload)
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(b),
	}
}
