package application

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/souraviitkgp/bluesky-explainer-agent/internal/domain"
)

// RegisterValidators registers the explainer's custom validation tags on v:
//
//	bskyposturl  the trimmed field is a bsky.app post URL
func RegisterValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("bskyposturl", validatePostURL); err != nil {
		return fmt.Errorf("failed to register bskyposturl validator: %w", err)
	}
	return nil
}

// NewValidator returns a validator with the custom tags registered.
func NewValidator() (*validator.Validate, error) {
	v := validator.New()
	if err := RegisterValidators(v); err != nil {
		return nil, err
	}
	return v, nil
}

// validatePostURL accepts empty values so that "required" reports them.
func validatePostURL(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	return domain.IsPostURL(s)
}
