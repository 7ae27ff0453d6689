package domain

import "errors"

var (
	// ErrConfiguration means required settings (credentials, paths) are missing.
	ErrConfiguration = errors.New("configuration error")
	// ErrAuth means the exchange rejected the login.
	ErrAuth = errors.New("exchange authentication failed")

	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidStrategy   = errors.New("invalid strategy index")
	ErrVersionConflict   = errors.New("version conflict")

	// Not-ready conditions: expected while markets open or settle, retried next cycle.
	ErrNoMarketAvailable = errors.New("no market available")
	ErrNoBookAvailable   = errors.New("no market book available")
	ErrNoClearedOrder    = errors.New("no cleared order found")

	// ErrPlacementFailure means the exchange rejected or expired at least one instruction.
	ErrPlacementFailure = errors.New("order placement failed")
)

// IsNotReady reports whether err is one of the expected "try again later"
// conditions rather than a real failure.
func IsNotReady(err error) bool {
	return errors.Is(err, ErrNoMarketAvailable) ||
		errors.Is(err, ErrNoBookAvailable) ||
		errors.Is(err, ErrNoClearedOrder)
}
