package service

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrForbidden              = errors.New("forbidden")
	ErrInvalidInput           = errors.New("invalid input")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrContentPolicyViolation = errors.New("content policy violation")
	ErrDuplicateResponse      = errors.New("duplicate response")
	ErrSelfResponse           = errors.New("self response forbidden")
	ErrNotCapturable          = errors.New("payment is not capturable")
	ErrNotInDispute           = errors.New("order is not in dispute")
	ErrProviderUnavailable    = errors.New("payment provider unavailable")
	ErrProviderConfigMissing  = errors.New("payment provider is not configured")
)
