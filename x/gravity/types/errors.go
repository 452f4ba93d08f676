package types

import (
	"cosmossdk.io/errors"
)

// x/gravity module sentinel errors
var (
	ErrInvalid             = errors.Register(ModuleName, 2, "invalid")
	ErrEventNonceTooLow    = errors.Register(ModuleName, 3, "event nonce already accepted")
	ErrEventNonceTooHigh   = errors.Register(ModuleName, 4, "non contiguous event nonce")
	ErrConflictingClaim    = errors.Register(ModuleName, 5, "claim conflicts with observed attestation")
	ErrUnknownOrchestrator = errors.Register(ModuleName, 6, "orchestrator not bound to a bonded validator")
	ErrDuplicate           = errors.Register(ModuleName, 7, "duplicate")
	ErrInvalidEthSignature = errors.Register(ModuleName, 8, "invalid ethereum signature")
	ErrUnknownValset       = errors.Register(ModuleName, 9, "unknown valset")
	ErrUnknownBatch        = errors.Register(ModuleName, 10, "unknown batch")
	ErrNoUnbatchedTxs      = errors.Register(ModuleName, 11, "no unbatched transactions")
	ErrBatchNotProfitable  = errors.Register(ModuleName, 12, "batch fees below minimum")
	ErrTxNotInPool         = errors.Register(ModuleName, 13, "transaction not in pool")
	ErrNotOwner            = errors.Register(ModuleName, 14, "sender is not the owner")
	ErrDelegateKeyExists   = errors.Register(ModuleName, 15, "delegate key already set")
	ErrUnknownToken        = errors.Register(ModuleName, 16, "token has no bridge mapping")
	ErrInvalidClaim        = errors.Register(ModuleName, 17, "invalid claim")
	ErrValidatorNotBonded  = errors.Register(ModuleName, 18, "validator not bonded")
	ErrTokenAlreadyMapped  = errors.Register(ModuleName, 19, "token already mapped")
	ErrUnsupportedMsg      = errors.Register(ModuleName, 20, "unsupported message")
)
