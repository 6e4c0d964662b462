package credentials

import "errors"

// Sentinel kinds for credential errors.
var (
	ErrNotFound       = errors.New("credential not found")
	ErrNoRefreshToken = errors.New("credential has no refresh token")
	ErrNoExchanger    = errors.New("no token exchanger configured")
)
