package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrNotConfigured     = errors.New("ai gateway not configured")
	ErrEmptyDocument     = errors.New("document empty or unreadable")
	ErrUnsupportedFormat = errors.New("unsupported document format")
)
