package token

import "errors"

// Sentinel kinds for credential errors.
var (
	// ErrUnauthorized covers unknown ids, disabled tokens and bad secrets
	// alike, so callers cannot probe which token ids exist.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is returned by Store implementations; the Verifier folds
	// it into ErrUnauthorized before it reaches any caller.
	ErrNotFound = errors.New("token not found")
)
