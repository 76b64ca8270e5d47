package loadgen

import "errors"

var (
	// ErrInvalidConfig is returned when a run cannot start with the given settings.
	ErrInvalidConfig = errors.New("invalid load configuration")
	// ErrUnhealthy is returned when the service health check fails.
	ErrUnhealthy = errors.New("service unhealthy")
	// ErrUnexpectedStatus is returned for responses outside the expected codes.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrVerification marks a calculation that is not internally consistent.
	ErrVerification = errors.New("verification failed")
)
