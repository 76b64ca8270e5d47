package service

import "errors"

var (
	// ErrInvalidRequest marks request fields that fail validation.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotStarted is returned by background operations before Start.
	ErrNotStarted = errors.New("service not started")
	// ErrBusy is returned when the calculation queue is full.
	ErrBusy = errors.New("calculation queue full")
)
