package domain

import "errors"

// Sentinel errors for the domain layer.
var (
	ErrInvalidWindow  = errors.New("domain: window hours must be positive")
	ErrUnknownSortKey = errors.New("domain: unknown sort key")
)
