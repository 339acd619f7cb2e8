package domain

import "errors"

var (
	ErrUnknownProduct     = errors.New("unknown_product")
	ErrVerificationFailed = errors.New("receipt_verification_failed")
	ErrInvalidPlatform    = errors.New("invalid_platform")
)
