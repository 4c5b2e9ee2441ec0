// Package services implements the business logic of the ingestion path:
// event admission, attribution, pricing, and ledger writes. This file
// centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// Translation into HTTP statuses and error codes is performed at the
// handler layer.
package services

import "errors"

var (
	// ErrStoryNotFound indicates that the referenced story does not exist.
	ErrStoryNotFound = errors.New("story not found")

	// ErrStoryExpired is returned when a client submits a new impression or
	// click against a story past its expiry. Expiry only gates new facts;
	// attribution lookups still resolve expired stories.
	ErrStoryExpired = errors.New("story expired")

	// ErrPurchaseNotFound indicates that a refund references an unknown
	// purchase.
	ErrPurchaseNotFound = errors.New("purchase not found")

	// ErrIdempotencyConflict is returned when the idempotency key was
	// already used. The original processing happened; callers should treat
	// this as success-equivalent and must not re-execute side effects.
	ErrIdempotencyConflict = errors.New("request already processed")

	// ErrDuplicateOrder is returned when a purchase carries an order id that
	// is already on the ledger under a different idempotency key.
	ErrDuplicateOrder = errors.New("order already recorded")

	// ErrAmountOverflow is returned when a minor-unit amount does not fit
	// the ledger column. Amounts this large are outside the system's
	// operating range and must not be silently truncated.
	ErrAmountOverflow = errors.New("amount exceeds ledger range")
)

// ValidationError reports a schema violation on a specific request field.
// It is distinct from authentication errors by construction: validation
// runs only after the signature gate has admitted the request.
type ValidationError struct {
	Field string
	Msg   string
}

// Error implements the error interface.
func (e *ValidationError) Error() string { return e.Field + ": " + e.Msg }

// Invalid builds a ValidationError for field.
func Invalid(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Msg: msg}
}

// AsValidation unwraps err into a *ValidationError if it is one.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
