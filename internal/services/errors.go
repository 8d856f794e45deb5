package services

import "errors"

var (
	ErrNotFound                = errors.New("not found")
	ErrUserNotFound            = errors.New("user not found")
	ErrTutorNotFound           = errors.New("tutor not found")
	ErrInvalidTransition       = errors.New("invalid status transition")
	ErrInvalidState            = errors.New("invalid state")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrPaymentDeclined         = errors.New("payment declined")
	ErrMessageTooShort         = errors.New("message too short")
	ErrDuplicatePendingRequest = errors.New("a pending request to this tutor already exists")
	ErrInvalidInput            = errors.New("invalid input")

	// ErrSettlementFailed means a refund could not be applied together with
	// its status change. Nothing was committed; it needs operator attention.
	ErrSettlementFailed = errors.New("settlement failed")
)
