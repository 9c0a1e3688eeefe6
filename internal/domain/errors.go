package domain

import "errors"

// The error texts double as the reason strings clients receive.
var (
	ErrTargetUnavailable    = errors.New("target_unavailable")
	ErrInvalidPayload       = errors.New("invalid_payload")
	ErrInvalidMessageTarget = errors.New("invalid_message_target")
	ErrPersistenceFailure   = errors.New("persistence_failure")

	ErrNotAuthenticated = errors.New("not_authenticated")
	ErrIdentityMismatch = errors.New("identity_mismatch")
	ErrJoinDenied       = errors.New("join_denied")
	ErrRateLimited      = errors.New("rate_limited")
)
