package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound        = errors.New("record not found")
	ErrRelatedNotFound = errors.New("related record not found")
	ErrDuplicate       = errors.New("calculation already exists")
)
