package orchestrator

import (
	"context"

	bridgetypes "github.com/functionx/fx-bridge/types"
	"github.com/functionx/fx-bridge/x/gravity/types"
)

// HubChain is the orchestrator's endpoint to the hub. Queries return the hub's committed
// state; Send* methods sign with the orchestrator's hub credential and return once the
// hub has executed the message, with its rejection reason as a registered error.
type HubChain interface {
	Params(ctx context.Context) (types.Params, error)

	// Claim ordering
	LastEventNonce(ctx context.Context, orchestrator string) (uint64, error)
	LastEventBlockHeight(ctx context.Context, orchestrator string) (uint64, error)
	SendClaim(ctx context.Context, claim types.EthereumClaim) error

	// Valsets
	Valsets(ctx context.Context) ([]bridgetypes.Valset, error)
	ValsetAt(ctx context.Context, nonce uint64) (bridgetypes.Valset, bool, error)
	PendingValsets(ctx context.Context, orchestrator string) ([]bridgetypes.Valset, error)
	ValsetConfirms(ctx context.Context, nonce uint64) ([]types.MsgValsetConfirm, error)
	SendValsetConfirm(ctx context.Context, msg *types.MsgValsetConfirm) error

	// Batches
	OutgoingBatches(ctx context.Context) ([]*bridgetypes.OutgoingTxBatch, error)
	PendingBatches(ctx context.Context, orchestrator string) ([]*bridgetypes.OutgoingTxBatch, error)
	BatchConfirms(ctx context.Context, tokenContract string, nonce uint64) ([]types.MsgConfirmBatch, error)
	SendBatchConfirm(ctx context.Context, msg *types.MsgConfirmBatch) error
	BatchFees(ctx context.Context) ([]bridgetypes.BatchFees, error)
	DenomForContract(ctx context.Context, tokenContract string) (string, error)
	RequestBatch(ctx context.Context, msg *types.MsgRequestBatch) error

	LastObservedBlockHeight(ctx context.Context) (bridgetypes.LastObservedBlockHeight, error)
}
