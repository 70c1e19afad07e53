package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalidOrder  = errors.New("invalid order parameters")
	ErrSigningFailed = errors.New("signing failed")
	ErrLockHeld      = errors.New("lock held by another holder")

	// Mirror-order rejections.
	ErrTradingDisabled = errors.New("trading is disabled")
	ErrNoSigningKey    = errors.New("no signing key configured")
	ErrNoLiquidity     = errors.New("no liquidity")
	ErrInvalidSize     = errors.New("invalid size")
	ErrSideDisabled    = errors.New("copy side disabled")
	ErrTokenUnresolved = errors.New("token id could not be resolved")
	ErrBadPayload      = errors.New("malformed stored payload")
	ErrBadCallback     = errors.New("malformed callback payload")
)
