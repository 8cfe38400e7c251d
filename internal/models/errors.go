package models

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrJobNotFound       = errors.New("job not found")
	ErrInvalidTransition = errors.New("invalid job status transition")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrQueueUnavailable  = errors.New("task queue unavailable")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrUpstream          = errors.New("upstream capability failed")
)
