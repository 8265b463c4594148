package services

import "errors"

var (
	// ErrInvalidState means the callback state did not match the stored
	// one-time state, or no state was pending.
	ErrInvalidState = errors.New("invalid or expired state")

	// ErrMissingCode means the callback arrived without an authorization code.
	ErrMissingCode = errors.New("missing authorization code")

	// ErrProvider means the provider reported an authorization error on the
	// callback instead of a code.
	ErrProvider = errors.New("identity provider reported an error")

	// ErrMissingParameter means a required request parameter was absent.
	ErrMissingParameter = errors.New("missing required parameter")
)
