package capacity

import "communityhub/internal/pkg/apperr"

var (
	ErrInvalidUnits     = apperr.New(apperr.ErrInvalidInput, "units must be positive")
	ErrInvalidResource  = apperr.New(apperr.ErrInvalidInput, "invalid resource definition")
	ErrResourceNotFound = apperr.New(apperr.ErrNotFound, "resource not found")
	ErrCapacityExceeded = apperr.New(apperr.ErrCapacityExceeded, "not enough capacity left on resource")

	ErrCapacityBelowReserved = apperr.New(apperr.ErrInvalidInput, "capacity is below units already reserved")
)
