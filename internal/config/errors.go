package config

import (
	"errors"
)

var (
	// ErrInvalidConfig marks settings that load but cannot run the service,
	// such as history market data without a file or a zero queue size.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig marks a config file or DLOM_ environment value that
	// could not be read or parsed.
	ErrLoadConfig = errors.New("load config failed")
)
