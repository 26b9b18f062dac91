package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound             = errors.New("entity not found")
	ErrAlreadyExists        = errors.New("entity already exists")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrRateLimited          = errors.New("rate limit exceeded")
	ErrGenerationInProgress = errors.New("generation already in progress for blueprint")
	ErrQueueFull            = errors.New("job queue full")
	ErrCacheMiss            = errors.New("cache miss")
	ErrLockHeld             = errors.New("lock held by another owner")
)
