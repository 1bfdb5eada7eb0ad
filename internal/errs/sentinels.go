// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist or belongs to another user.
	ErrNotFound = errors.New("not found")

	// ErrDecryptAuth indicates AEAD tag verification failed while decrypting a stored API key.
	ErrDecryptAuth = errors.New("decrypt authentication failed")

	// ErrUnauthorized indicates a missing or invalid caller identity.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation indicates malformed input, rejected before any side effect.
	ErrValidation = errors.New("validation")
)
