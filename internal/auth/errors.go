package auth

import "errors"

// Error taxonomy shared by every core component. The transport layer maps
// each value to a stable status code; the core itself never retries.
var (
	ErrConflict     = errors.New("auth: conflict")
	ErrUnauthorized = errors.New("auth: unauthorized")
	ErrForbidden    = errors.New("auth: forbidden")
	ErrNotFound     = errors.New("auth: not found")
	ErrInvalidInput = errors.New("auth: invalid input")
)
