package queue

import "errors"

var (
	// ErrClosed is returned by Enqueue after Close.
	ErrClosed = errors.New("queue closed")
	// ErrDraining is returned when a second drain loop is started.
	ErrDraining = errors.New("queue already draining")
)
