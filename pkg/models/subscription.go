package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// SubscriptionRequest is the body posted by the newsletter form
type SubscriptionRequest struct {
	Email     string `json:"email" validate:"required,looseemail"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Normalize trims surrounding whitespace from every field.
func (r SubscriptionRequest) Normalize() SubscriptionRequest {
	return SubscriptionRequest{
		Email:     strings.TrimSpace(r.Email),
		FirstName: strings.TrimSpace(r.FirstName),
		LastName:  strings.TrimSpace(r.LastName),
	}
}

// DecodeSubscriptionRequest parses a form body. Anything that is not a JSON
// object decodes to the zero request, so callers report a missing email
// rather than a parse error. Numbers and booleans are taken as their literal
// text.
func DecodeSubscriptionRequest(body []byte) SubscriptionRequest {
	var raw struct {
		Email     formValue `json:"email"`
		FirstName formValue `json:"firstName"`
		LastName  formValue `json:"lastName"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return SubscriptionRequest{}
	}
	return SubscriptionRequest{
		Email:     string(raw.Email),
		FirstName: string(raw.FirstName),
		LastName:  string(raw.LastName),
	}.Normalize()
}

// formValue accepts any JSON scalar. null, objects and arrays decode to "".
type formValue string

func (v *formValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = formValue(s)
	case '{', '[', 'n':
		*v = ""
	default:
		*v = formValue(data)
	}
	return nil
}

// Outcome classifies how a subscription request ended.
type Outcome int

const (
	OutcomeCreated Outcome = iota
	OutcomePending
	OutcomeAlreadySubscribed
	OutcomeUpdated
	OutcomeValidationError
	OutcomeConfigError
	OutcomeUpstreamError
)

var outcomeNames = map[Outcome]string{
	OutcomeCreated:           "created",
	OutcomePending:           "pending",
	OutcomeAlreadySubscribed: "already_subscribed",
	OutcomeUpdated:           "updated",
	OutcomeValidationError:   "validation_error",
	OutcomeConfigError:       "config_error",
	OutcomeUpstreamError:     "upstream_error",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

// SubscriptionResult is a success-family response.
type SubscriptionResult struct {
	Outcome    Outcome
	StatusCode int
	Message    string
}
