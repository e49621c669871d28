package domain

import "errors"

var (
	// ErrTransient marks provider failures worth retrying: network errors,
	// timeouts, throttling (HTTP 429) and server errors (HTTP 5xx).
	ErrTransient = errors.New("transient provider error")

	// ErrPermanent marks provider failures that will not succeed on retry,
	// such as a rejected request (HTTP 4xx other than 429).
	ErrPermanent = errors.New("permanent provider error")

	// ErrInvalidRange is returned for date ranges whose end precedes the start
	// and for non-positive chunk sizes.
	ErrInvalidRange = errors.New("invalid date range")
)
