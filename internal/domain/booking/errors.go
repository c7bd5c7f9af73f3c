package booking

import "communityhub/internal/pkg/apperr"

var (
	ErrInvalidUser       = apperr.New(apperr.ErrInvalidInput, "user id must be positive")
	ErrInvalidResource   = apperr.New(apperr.ErrInvalidInput, "resource id is required")
	ErrInvalidUnits      = apperr.New(apperr.ErrInvalidInput, "requested units must be positive")
	ErrInvalidAmount     = apperr.New(apperr.ErrInvalidInput, "amount must not be negative")
	ErrInvalidDiscount   = apperr.New(apperr.ErrInvalidInput, "discount must be between 0 and amount")
	ErrUnknownStatus     = apperr.New(apperr.ErrInvalidInput, "unknown booking status")
	ErrInvalidTransition = apperr.New(apperr.ErrInvalidTransition, "booking status change not allowed")
	ErrNotFound          = apperr.New(apperr.ErrNotFound, "booking not found")
)
