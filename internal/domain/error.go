package domain

import "errors"

var (
	// Common domain errors
	ErrJobNotFound        = errors.New("job not found")
	ErrInvalidQuery       = errors.New("invalid query")
	ErrUnknownSource      = errors.New("unknown source")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNoSourcesSucceeded = errors.New("no sources succeeded")
	ErrQueueFull          = errors.New("dispatch queue full")
	ErrRateLimited        = errors.New("too many submissions")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)
