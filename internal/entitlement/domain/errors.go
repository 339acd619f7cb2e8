package domain

import "errors"

var (
	// ErrNoCredits is returned by Reserve when the user has neither an
	// active subscription nor a remaining credit. No state is changed.
	ErrNoCredits = errors.New("no_credits_remaining")

	ErrNotFound      = errors.New("entitlement_not_found")
	ErrInvalidAmount = errors.New("invalid_credit_amount")
	ErrInvalidUser   = errors.New("invalid_user")
	ErrInvalidWindow = errors.New("invalid_subscription_window")
)
