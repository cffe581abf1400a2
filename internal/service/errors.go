package service

import "errors"

// Sentinel errors handlers map to HTTP statuses with errors.Is.
var (
	ErrInvalidTier      = errors.New("invalid tier")
	ErrInvalidEmail     = errors.New("invalid email")
	ErrDuplicateEmail   = errors.New("email already registered")
	ErrInvalidAPIKey    = errors.New("invalid api key")
	ErrTrialExpired     = errors.New("trial expired")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrPaymentProvider  = errors.New("payment provider request failed")
)
