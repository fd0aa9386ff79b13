package services

import (
	"errors"

	"round-lottery/internal/repository"
)

var (
	ErrNotFound            = repository.ErrNotFound
	ErrInvalidState        = repository.ErrInvalidState
	ErrInsufficientBalance = repository.ErrInsufficientBalance

	ErrDuplicateReference  = errors.New("deposit reference already used")
	ErrVerificationTimeout = errors.New("receipt verification timed out")
	ErrVerificationError   = errors.New("receipt verification failed")

	ErrBetLocked          = errors.New("betting is locked for this account")
	ErrProfileLocked      = errors.New("account is locked")
	ErrBettingClosed      = errors.New("betting is closed for this round")
	ErrInvalidBet         = errors.New("invalid bet")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrMissingReference   = errors.New("transaction reference is required")
	ErrInvalidDetails     = errors.New("invalid withdrawal details")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUsernameTaken      = errors.New("username or mobile number already registered")
	ErrResultPending      = errors.New("round result is not available yet")
	ErrPrimaryAdmin       = errors.New("the primary admin cannot be changed")
)
