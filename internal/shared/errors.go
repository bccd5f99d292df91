// Package shared holds the error sentinels, audit rows, paging and
// idempotency keys used across the clinic modules.
package shared

import "errors"

// Sentinels mapped to HTTP statuses by httpx.RespondError.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrValidation         = errors.New("validation failed")
	// ErrConflict means the record's current state blocks the request, such
	// as voiding a voided transaction or double-booking an optometrist.
	ErrConflict = errors.New("conflict")
)
