package domain

import (
	"errors"
	"fmt"

	"realtyhub/internal/models"
)

var (
	ErrValidation             = models.ErrValidation
	ErrNotFound               = errors.New("not found")
	ErrPropertyNotFound       = fmt.Errorf("property %w", ErrNotFound)
	ErrForbidden              = errors.New("forbidden")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrDateConflict           = errors.New("requested dates overlap an existing hold")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrConcurrentModification = errors.New("booking was modified concurrently")
	ErrRateLimited            = errors.New("too many requests")
)

type ValidationError = models.ValidationError

func Invalid(field, reason string) error {
	return models.Invalid(field, reason)
}
