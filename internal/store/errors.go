package store

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrOTPInvalid         = errors.New("otp invalid or expired")
	ErrSessionNotFound    = errors.New("session not found")
	ErrCustomerNotFound   = errors.New("customer not found")
	ErrAccessDenied       = errors.New("access denied")
)
