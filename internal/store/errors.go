package store

import "errors"

var (
	ErrNotFound  = errors.New("store: resource not found")
	ErrDuplicate = errors.New("store: duplicate resource")
	// ErrTerminal is returned when an update targets a generation task that
	// has already reached a terminal status.
	ErrTerminal = errors.New("store: generation task already terminal")
)
