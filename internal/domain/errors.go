package domain

import "errors"

var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrWalletNotFound      = errors.New("no starknet wallet detected")
	ErrAccountUnavailable  = errors.New("wallet account not found after connect")
	ErrProviderUnavailable = errors.New("wallet provider not available")
	ErrSessionRequired     = errors.New("connect wallet first")
	ErrChainRejected       = errors.New("chain rejected call")
	ErrConfigMissing       = errors.New("missing configuration")
	ErrProverUnavailable   = errors.New("prover unavailable")
	ErrNotFound            = errors.New("not found")
	ErrLockHeld            = errors.New("lock already held")
	ErrNoMarketSelected    = errors.New("no market selected")
)
