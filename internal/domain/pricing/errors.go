package pricing

import "errors"

// ErrInvalidInput is returned when pricer preconditions are violated.
var ErrInvalidInput = errors.New("invalid pricing input")
