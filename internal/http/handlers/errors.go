// Package handlers defines the HTTP-layer error codes used across all API
// endpoints. Codes are lowercase snake_case and stable: clients branch on
// them programmatically, messages are for humans.
//
// Admission-gate codes (missing_header, bad_timestamp, timestamp_out_of_window,
// invalid_signature, bad_idempotency_key) are emitted by the middleware layer
// before a request ever reaches these handlers.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:

	// ErrCodeValidationFailed marks a schema violation in an admitted request
	// body. Distinct from the gate's auth codes: the signature was valid.
	ErrCodeValidationFailed = "validation_failed"
	// ErrCodeIdempotencyConflict means the Idempotency-Key was already used.
	// The original event is recorded; clients must not retry.
	ErrCodeIdempotencyConflict = "idempotency_conflict"
	// ErrCodeDuplicateOrder means the order id is already on the ledger under
	// a different idempotency key.
	ErrCodeDuplicateOrder = "duplicate_order"
	// ErrCodeStoryExpired means the story can no longer accept new
	// impressions or clicks.
	ErrCodeStoryExpired = "story_expired"
	// ErrCodeAmountOutOfRange means the amount exceeds the ledger range.
	ErrCodeAmountOutOfRange = "amount_out_of_range"
	// ErrCodeRecordFailed covers persistence failures while recording events.
	ErrCodeRecordFailed = "record_failed"
	// ErrCodeListFailed covers failures while serving reporting reads.
	ErrCodeListFailed = "list_failed"
)
