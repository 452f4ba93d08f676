package orchestrator

import (
	"context"
	"errors"

	errorsmod "cosmossdk.io/errors"

	bridgetypes "github.com/functionx/fx-bridge/types"
	"github.com/functionx/fx-bridge/x/gravity/types"
)

// Codespace for orchestrator errors
const Codespace = "orchestrator"

var (
	ErrNonceGap         = errorsmod.Register(Codespace, 2, "event nonce gap")
	ErrConflictingClaim = errorsmod.Register(Codespace, 3, "conflicting claim")
	ErrSigningFailed    = errorsmod.Register(Codespace, 4, "signing failed")
	ErrMalformedEvent   = errorsmod.Register(Codespace, 5, "malformed chain event")
	ErrHeadUnknown      = errorsmod.Register(Codespace, 6, "chain head unknown")
	ErrShuttingDown     = errorsmod.Register(Codespace, 7, "shutting down")
)

type errorClass int

const (
	classRetryable errorClass = iota
	// the hub already holds what was sent
	classDuplicate
	// the hub expects an earlier event nonce
	classGap
	// the hub no longer tracks the valset or batch
	classStale
	// the hub refused the batch request, nothing to do until the pool changes
	classUnprofitable
	classFatal
)

func classify(err error) errorClass {
	switch {
	case err == nil:
		return classRetryable
	case errors.Is(err, types.ErrEventNonceTooLow), errors.Is(err, types.ErrDuplicate):
		return classDuplicate
	case errors.Is(err, types.ErrEventNonceTooHigh), errors.Is(err, ErrNonceGap):
		return classGap
	case errors.Is(err, types.ErrUnknownValset), errors.Is(err, types.ErrUnknownBatch):
		return classStale
	case errors.Is(err, types.ErrBatchNotProfitable), errors.Is(err, types.ErrNoUnbatchedTxs):
		return classUnprofitable
	case errors.Is(err, types.ErrConflictingClaim),
		errors.Is(err, ErrConflictingClaim),
		errors.Is(err, ErrSigningFailed),
		errors.Is(err, types.ErrInvalidEthSignature),
		errors.Is(err, types.ErrUnknownOrchestrator),
		errors.Is(err, bridgetypes.ErrInvalidSignature):
		return classFatal
	default:
		return classRetryable
	}
}

// IsFatal reports whether err must halt the direction that produced it
func IsFatal(err error) bool {
	return err != nil && classify(err) == classFatal
}

func isShutdown(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrShuttingDown))
}
