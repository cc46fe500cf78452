package session

import "errors"

var (
	ErrNoDocument      = errors.New("no document loaded")
	ErrUnsupportedFile = errors.New("unsupported file")
	ErrInvalidSetting  = errors.New("invalid setting")
	ErrNotFound        = errors.New("session not found")
	ErrDrawUnsupported = errors.New("viewer does not accept drawing input")
	ErrClosed          = errors.New("session manager stopped")
)
