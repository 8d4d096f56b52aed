// Package apperr holds the sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")

	ErrNoPendingInteraction = errors.New("no pending interaction")
	ErrInvalidTransition    = errors.New("invalid interaction transition")
	ErrUnmounted            = errors.New("hook unmounted")
)
