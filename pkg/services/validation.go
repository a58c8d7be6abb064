package services

import (
	"errors"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/jaseci-labs/newsletter-api/pkg/models"
)

const (
	msgEmailRequired = "Email is required"
	msgEmailInvalid  = "Invalid email format"
)

// The form only checks for something@something.tld; the list provider does
// the real address validation.
var looseEmailRe = regexp.MustCompile(`\S+@\S+\.\S+`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("looseemail", func(fl validator.FieldLevel) bool {
		return looseEmailRe.MatchString(fl.Field().String())
	})
	return v
}

func validateRequest(v *validator.Validate, req models.SubscriptionRequest) *SubscribeError {
	err := v.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 && fieldErrs[0].Tag() == "required" {
		return validationError(msgEmailRequired)
	}
	return validationError(msgEmailInvalid)
}
