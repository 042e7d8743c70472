package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/verdictlabs/verdict/internal/model"
)

// Validation errors.
var (
	ErrNilContext        = errors.New("context cannot be nil")
	ErrEmptyString       = errors.New("string parameter cannot be empty")
	ErrNilParameter      = errors.New("parameter cannot be nil")
	ErrInvalidDomain     = errors.New("invalid domain")
	ErrInvalidStatus     = errors.New("invalid application status")
	ErrInvalidApplication = errors.New("invalid application")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateDomain ensures the domain is a submittable application domain.
func validateDomain(d model.Domain) error {
	if !d.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidDomain, d)
	}
	return nil
}

// validatePolicyDomain ensures the domain may hold policies.
func validatePolicyDomain(d model.Domain) error {
	if !model.ValidPolicyDomain(d) {
		return fmt.Errorf("%w: %q", ErrInvalidDomain, d)
	}
	return nil
}

// validateApplication validates a record before it is persisted.
func validateApplication(app *model.Application) error {
	if app == nil {
		return fmt.Errorf("%w: application", ErrNilParameter)
	}
	if err := validateString(app.ID, "application.ID"); err != nil {
		return err
	}
	if err := validateDomain(app.Domain); err != nil {
		return err
	}
	switch app.Status {
	case model.StatusPendingAI, model.StatusPendingHuman, model.StatusCompleted:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatus, app.Status)
	}
	if app.InputFeatures == nil {
		return fmt.Errorf("%w: input features missing", ErrInvalidApplication)
	}
	return nil
}
