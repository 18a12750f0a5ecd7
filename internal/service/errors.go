package service

import "errors"

// Placement and status errors surfaced to callers. Each carries enough
// wrapped context (product id, customer id, current status) for retry
// logic or user-facing messaging; match with errors.Is.
var (
	// Validation errors, detected before any stock is touched.
	ErrUnknownCustomer   = errors.New("unknown customer")
	ErrEmptyOrder        = errors.New("order has no line items")
	ErrDuplicateLineItem = errors.New("duplicate line item")
	ErrInvalidQuantity   = errors.New("invalid quantity")

	// Reservation errors; any stock already reserved in the same
	// attempt has been released by the time these are returned.
	ErrUnknownProduct    = errors.New("unknown product")
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrPersistenceFailure is retryable: reservations were rolled back
	// and the caller may resubmit the same request.
	ErrPersistenceFailure = errors.New("persistence failure")

	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrNotFound                = errors.New("not found")
)
