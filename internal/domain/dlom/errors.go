package dlom

import (
	"errors"

	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/pricing"
)

// ErrInvalidInput is the pricer sentinel, also used for rejected snapshots.
var ErrInvalidInput = pricing.ErrInvalidInput

var errAggregation = errors.New("aggregate statistics")
