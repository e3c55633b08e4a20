package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrEmptyPrompt     = errors.New("prompt is required")
	ErrNotAnImage      = errors.New("reference payload is not an image")
	ErrInvalidAspect   = errors.New("unsupported aspect ratio")
	ErrInvalidDuration = errors.New("duration out of range")
	ErrJobBusy         = errors.New("another start is in flight")
	ErrNoActiveJob     = errors.New("no active job")
	ErrProviderFailure = errors.New("provider failure")
)
