package testutil

import (
	"context"
	"sync"

	errorsmod "cosmossdk.io/errors"

	bridgetypes "github.com/functionx/fx-bridge/types"
	"github.com/functionx/fx-bridge/x/gravity/types"
)

// KeeperHub serves the orchestrator's hub queries and messages straight from a test
// keeper. Every call is serialized on one lock.
type KeeperHub struct {
	mu  sync.Mutex
	env *GravityTestEnv

	// Intercept, when set, wraps every message delivery. deliver executes the message.
	Intercept func(msg types.Msg, deliver func() error) error
	// Delivered lists every message the keeper accepted, in order
	Delivered []types.Msg
}

// NewKeeperHub wraps env
func NewKeeperHub(env *GravityTestEnv) *KeeperHub {
	return &KeeperHub{env: env}
}

// Do runs fn against the keeper under the hub lock
func (h *KeeperHub) Do(fn func(env *GravityTestEnv)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(h.env)
}

// EndBlock runs the keeper's end blocker and moves to the next height
func (h *KeeperHub) EndBlock() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.env.Keeper.EndBlocker(h.env.Ctx); err != nil {
		return err
	}
	h.env.Ctx = h.env.Ctx.WithBlockHeight(h.env.Ctx.BlockHeight() + 1)
	return nil
}

func (h *KeeperHub) send(msg types.Msg) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	deliver := func() error {
		if _, err := h.env.Handler(h.env.Ctx, msg); err != nil {
			return err
		}
		h.Delivered = append(h.Delivered, msg)
		return nil
	}
	if h.Intercept != nil {
		return h.Intercept(msg, deliver)
	}
	return deliver()
}

func (h *KeeperHub) Params(_ context.Context) (types.Params, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.env.Keeper.GetParams(h.env.Ctx), nil
}

func (h *KeeperHub) LastEventNonce(_ context.Context, orchestrator string) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.env.Keeper.GetLastEventNonceByOrchestrator(h.env.Ctx, orchestrator), nil
}

func (h *KeeperHub) LastEventBlockHeight(_ context.Context, orchestrator string) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.env.Keeper.GetLastEventBlockHeightByOrchestrator(h.env.Ctx, orchestrator), nil
}

func (h *KeeperHub) SendClaim(_ context.Context, claim types.EthereumClaim) error {
	return h.send(claim)
}

func (h *KeeperHub) Valsets(_ context.Context) ([]bridgetypes.Valset, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.env.Keeper.GetValsets(h.env.Ctx), nil
}

func (h *KeeperHub) ValsetAt(_ context.Context, nonce uint64) (bridgetypes.Valset, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	valset, found := h.env.Keeper.GetValset(h.env.Ctx, nonce)
	return valset, found, nil
}

func (h *KeeperHub) PendingValsets(_ context.Context, orchestrator string) ([]bridgetypes.Valset, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.env.Keeper.GetPendingValsetsForOrchestrator(h.env.Ctx, orchestrator), nil
}

func (h *KeeperHub) ValsetConfirms(_ context.Context, nonce uint64) ([]types.MsgValsetConfirm, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.env.Keeper.GetValsetConfirms(h.env.Ctx, nonce), nil
}

func (h *KeeperHub) SendValsetConfirm(_ context.Context, msg *types.MsgValsetConfirm) error {
	return h.send(msg)
}

func (h *KeeperHub) OutgoingBatches(_ context.Context) ([]*bridgetypes.OutgoingTxBatch, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.env.Keeper.GetOutgoingTxBatches(h.env.Ctx), nil
}

func (h *KeeperHub) PendingBatches(_ context.Context, orchestrator string) ([]*bridgetypes.OutgoingTxBatch, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.env.Keeper.GetPendingBatchesForOrchestrator(h.env.Ctx, orchestrator), nil
}

func (h *KeeperHub) BatchConfirms(_ context.Context, tokenContract string, nonce uint64) ([]types.MsgConfirmBatch, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.env.Keeper.GetBatchConfirms(h.env.Ctx, tokenContract, nonce), nil
}

func (h *KeeperHub) SendBatchConfirm(_ context.Context, msg *types.MsgConfirmBatch) error {
	return h.send(msg)
}

func (h *KeeperHub) BatchFees(_ context.Context) ([]bridgetypes.BatchFees, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.env.Keeper.GetBatchFees(h.env.Ctx), nil
}

func (h *KeeperHub) DenomForContract(_ context.Context, tokenContract string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := bridgetypes.ValidateEthAddress(tokenContract); err != nil {
		return "", errorsmod.Wrap(types.ErrUnknownToken, tokenContract)
	}
	denom, _ := h.env.Keeper.DenomForContract(h.env.Ctx, tokenContract)
	return denom, nil
}

func (h *KeeperHub) RequestBatch(_ context.Context, msg *types.MsgRequestBatch) error {
	return h.send(msg)
}

func (h *KeeperHub) LastObservedBlockHeight(_ context.Context) (bridgetypes.LastObservedBlockHeight, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.env.Keeper.GetLastObservedBlockHeight(h.env.Ctx), nil
}
