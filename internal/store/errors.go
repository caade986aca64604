package store

import "errors"

var (
	ErrJobNotFound   = errors.New("job not found")
	ErrClaimLost     = errors.New("job claim no longer held")
	ErrUnknownDriver = errors.New("unknown database driver")
	ErrNotResettable = errors.New("job is already pending")
)
