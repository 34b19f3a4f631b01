package adapter

import "errors"

// Domain errors for the adapter package.
var (
	// ErrInvalidOptions is returned when Controller options are incomplete.
	ErrInvalidOptions = errors.New("adapter: invalid options")

	// ErrNotRunning is returned when work reaches a stopped controller.
	ErrNotRunning = errors.New("adapter: controller not running")

	// ErrEnableFailed is returned when hardware initialization fails.
	ErrEnableFailed = errors.New("adapter: enable failed")
)
