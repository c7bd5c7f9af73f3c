package loyalty

import "communityhub/internal/pkg/apperr"

var (
	ErrNegativeSpend   = apperr.New(apperr.ErrInvalidInput, "spend must not be negative")
	ErrInvalidAmount   = apperr.New(apperr.ErrInvalidInput, "net amount must not be negative")
	ErrInvalidUser     = apperr.New(apperr.ErrInvalidInput, "user id must be positive")
	ErrSpendOverflow   = apperr.New(apperr.ErrInvalidInput, "cumulative spend would overflow")
	ErrAccountNotFound = apperr.New(apperr.ErrNotFound, "loyalty account not found")
)
