package application

import "errors"

var (
	// ErrInvalidInput wraps every request validation failure.
	ErrInvalidInput   = errors.New("invalid input")
	ErrNoAdoptedDraft = errors.New("adopted draft not found")
)
