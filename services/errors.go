package services

import "errors"

// Sentinel errors returned by the token and withdrawal services. Controllers
// map these onto HTTP statuses; anything else is an internal error.
var (
	ErrNotFound            = errors.New("record not found")
	ErrConflict            = errors.New("conflicting state")
	ErrValidation          = errors.New("invalid input")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidTransition   = errors.New("invalid status transition")
)
