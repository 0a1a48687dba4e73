package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrAlreadyCancelled = errors.New("booking is already cancelled")

	ErrTokenNotFound = errors.New("no booking matches cancellation token")

	ErrDuplicateToken = errors.New("cancellation token already exists")
)
