package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jaseci-labs/newsletter-api/pkg/models"
)

// SubscribeError is a failure-family subscription result. Message is safe to
// show to the visitor.
type SubscribeError struct {
	Outcome    models.Outcome
	StatusCode int
	Message    string
	Err        error
}

func (e *SubscribeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *SubscribeError) Unwrap() error {
	return e.Err
}

// AsSubscribeError extracts a SubscribeError from an error chain.
func AsSubscribeError(err error) (*SubscribeError, bool) {
	var subErr *SubscribeError
	if errors.As(err, &subErr) {
		return subErr, true
	}
	return nil, false
}

func validationError(msg string) *SubscribeError {
	return &SubscribeError{Outcome: models.OutcomeValidationError, StatusCode: http.StatusBadRequest, Message: msg}
}

func configError(msg string) *SubscribeError {
	return &SubscribeError{Outcome: models.OutcomeConfigError, StatusCode: http.StatusInternalServerError, Message: msg}
}

func upstreamError(status int, msg string, err error) *SubscribeError {
	return &SubscribeError{Outcome: models.OutcomeUpstreamError, StatusCode: status, Message: msg, Err: err}
}

// ErrorResponse maps a subscription error to the status and visitor-facing
// message. Errors outside the SubscribeError family become a bare 500.
func ErrorResponse(err error) (int, string) {
	if subErr, ok := AsSubscribeError(err); ok {
		return subErr.StatusCode, subErr.Message
	}
	return http.StatusInternalServerError, msgInternalError
}
