package core

import "errors"

var (
	ErrChallengeExpired  = errors.New("challenge has expired")
	ErrChallengeConsumed = errors.New("challenge has already been used")
	ErrInvalidChallenge  = errors.New("invalid challenge message")
	ErrInvalidAddress    = errors.New("invalid ethereum address")
	ErrSignatureInvalid  = errors.New("invalid signature")

	ErrDeviceNotRecognized    = errors.New("device not recognized")
	ErrDevicePairingConflict  = errors.New("device is already linked to a different wallet")
	ErrSuspiciousDeviceChange = errors.New("suspicious device change")
	ErrSuspiciousLocation     = errors.New("suspicious location change")

	ErrSessionInvalid = errors.New("invalid session")
	ErrSessionExpired = errors.New("session expired")

	ErrRefreshTokenInvalid = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	ErrAccessTokenInvalid = errors.New("invalid access token")

	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrNotFound is the canonical missing-record error returned by
	// every repository implementation.
	ErrNotFound = errors.New("record not found")
)
