package dispatch

import "errors"

var (
	// ErrJobNotFound is returned when a job cannot be found in the database.
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidTransition is returned for status changes outside the graph.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrRecipientRequired is returned when delivery confirmation lacks a
	// recorded recipient name.
	ErrRecipientRequired = errors.New("recipient name is required")

	// ErrTooFarFromDropoff is returned when the courier confirms delivery
	// beyond the allowed proximity to the dropoff.
	ErrTooFarFromDropoff = errors.New("courier too far from dropoff")
)
