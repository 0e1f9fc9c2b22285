package handlers

const (
	RequestIDHeader = "X-Request-ID"

	ErrInvalidJSON         = "Invalid JSON body"
	ErrInvalidChildID      = "Invalid child ID"
	ErrInvalidChallengeID  = "Invalid challenge ID"
	ErrInvalidAsOf         = "Invalid as_of, expected RFC3339"
	ErrTooManyRequests     = "Too many requests, slow down"
	ErrUpstreamUnavailable = "Service temporarily unavailable"
	ErrInternalServerError = "Internal server error"
)
