package idp

import "errors"

var (
	// ErrCodeExchange means the authorization code was invalid, expired or
	// already used. Callers must not retry with the same code.
	ErrCodeExchange = errors.New("authorization code exchange failed")

	// ErrTokenRefresh means the provider rejected the refresh token. This is
	// terminal for the session; there is no retry.
	ErrTokenRefresh = errors.New("token refresh failed")

	// ErrTokenValidation means the access token is expired, malformed or its
	// signature did not verify.
	ErrTokenValidation = errors.New("token validation failed")

	// ErrAdminAPI wraps failures from the provider's admin (service-credential) API.
	ErrAdminAPI = errors.New("identity provider admin API request failed")
)
