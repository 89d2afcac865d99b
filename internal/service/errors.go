package service

import "errors"

var (
	// ErrUserNotFound is returned when an event or request cannot be tied to
	// a known application user.
	ErrUserNotFound     = errors.New("user not found")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrInvalidInput     = errors.New("invalid input")
)
