package ports

import "errors"

// Core error taxonomy. Callers match these with errors.Is; every failure returned
// by the evaluation packages wraps exactly one of them.
var (
	// ErrInvalidArgument marks malformed or out-of-domain input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvariant marks an operation that would break an accounting invariant.
	ErrInvariant = errors.New("invariant violation")
	// ErrClosedPosition marks ROI queries or mutations on an exited position.
	ErrClosedPosition = errors.New("position is closed")
	// ErrNotFound marks expected bar or record data that is absent.
	ErrNotFound = errors.New("resource not found")
	// ErrLogic marks a violated structural precondition.
	ErrLogic = errors.New("logic error")
)

// Standard infrastructure errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Exchange Specific Errors
	ErrConnectionFailed     = errors.New("failed to connect to the exchange")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed = errors.New("exchange authentication failed (check API keys)")
	ErrInvalidAPIKeys       = errors.New("invalid API keys or permissions")

	// Database Specific Errors
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrQueryFailed    = errors.New("database query failed")
	ErrUpdateFailed   = errors.New("database update failed")
)
