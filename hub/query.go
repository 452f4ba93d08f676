package hub

import (
	"context"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	rpcclient "github.com/cometbft/cometbft/rpc/client"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/kv"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	gethcommon "github.com/ethereum/go-ethereum/common"

	bridgetypes "github.com/functionx/fx-bridge/types"
	"github.com/functionx/fx-bridge/x/gravity/types"
)

var (
	storeKeyPath      = fmt.Sprintf("/store/%s/key", types.StoreKey)
	storeSubspacePath = fmt.Sprintf("/store/%s/subspace", types.StoreKey)
	accountQueryPath  = "/cosmos.auth.v1beta1.Query/Account"
	baseAccountType   = "/cosmos.auth.v1beta1.BaseAccount"
)

func (c *Client) query(ctx context.Context, path string, data []byte) ([]byte, error) {
	res, err := c.rpc.ABCIQueryWithOptions(ctx, path, data, rpcclient.DefaultABCIQueryOptions)
	if err != nil {
		return nil, errorsmod.Wrapf(err, "query %s", path)
	}
	if res.Response.Code != 0 {
		return nil, errorsmod.ABCIError(res.Response.Codespace, res.Response.Code, res.Response.Log)
	}
	return res.Response.Value, nil
}

// get returns the raw value at key, nil when absent
func (c *Client) get(ctx context.Context, key []byte) ([]byte, error) {
	return c.query(ctx, storeKeyPath, key)
}

// subspace returns every pair under prefix in key order
func (c *Client) subspace(ctx context.Context, prefix []byte) ([]kv.Pair, error) {
	bz, err := c.query(ctx, storeSubspacePath, prefix)
	if err != nil {
		return nil, err
	}
	pairs, err := UnmarshalPairs(bz)
	if err != nil {
		return nil, errorsmod.Wrap(err, "decode subspace")
	}
	return pairs, nil
}

func (c *Client) getUint64(ctx context.Context, key []byte) (uint64, error) {
	bz, err := c.get(ctx, key)
	if err != nil || len(bz) == 0 {
		return 0, err
	}
	return sdk.BigEndianToUint64(bz), nil
}

func decodeAll[T any](pairs []kv.Pair) ([]T, error) {
	out := make([]T, 0, len(pairs))
	for _, pair := range pairs {
		var v T
		if err := types.ModuleCdc.UnmarshalJSON(pair.Value, &v); err != nil {
			return nil, errorsmod.Wrapf(err, "decode %x", pair.Key)
		}
		out = append(out, v)
	}
	return out, nil
}

// account returns the number and next sequence of the signing account
func (c *Client) account(ctx context.Context) (uint64, uint64, error) {
	req := authtypes.QueryAccountRequest{Address: c.address.String()}
	reqBz, err := req.Marshal()
	if err != nil {
		return 0, 0, err
	}
	bz, err := c.query(ctx, accountQueryPath, reqBz)
	if err != nil {
		return 0, 0, errorsmod.Wrapf(err, "account %s", c.address)
	}
	var res authtypes.QueryAccountResponse
	if err := res.Unmarshal(bz); err != nil {
		return 0, 0, errorsmod.Wrap(err, "decode account")
	}
	if res.Account == nil || res.Account.TypeUrl != baseAccountType {
		return 0, 0, errorsmod.Wrapf(types.ErrInvalid, "account %s is not a base account", c.address)
	}
	var acc authtypes.BaseAccount
	if err := acc.Unmarshal(res.Account.Value); err != nil {
		return 0, 0, errorsmod.Wrap(err, "decode base account")
	}
	return acc.AccountNumber, acc.Sequence, nil
}

func (c *Client) Params(ctx context.Context) (types.Params, error) {
	bz, err := c.get(ctx, types.ParamsKey)
	if err != nil {
		return types.Params{}, err
	}
	if bz == nil {
		return types.Params{}, errorsmod.Wrap(types.ErrInvalid, "params not set")
	}
	var params types.Params
	if err := types.ModuleCdc.UnmarshalJSON(bz, &params); err != nil {
		return types.Params{}, errorsmod.Wrap(err, "decode params")
	}
	return params, nil
}

func (c *Client) LastEventNonce(ctx context.Context, orchestrator string) (uint64, error) {
	return c.getUint64(ctx, types.GetLastEventNonceByOrchestratorKey(orchestrator))
}

func (c *Client) LastEventBlockHeight(ctx context.Context, orchestrator string) (uint64, error) {
	return c.getUint64(ctx, types.GetLastEventBlockHeightByOrchestratorKey(orchestrator))
}

func (c *Client) Valsets(ctx context.Context) ([]bridgetypes.Valset, error) {
	pairs, err := c.subspace(ctx, types.ValsetRequestKey)
	if err != nil {
		return nil, err
	}
	return decodeAll[bridgetypes.Valset](pairs)
}

func (c *Client) ValsetAt(ctx context.Context, nonce uint64) (bridgetypes.Valset, bool, error) {
	bz, err := c.get(ctx, types.GetValsetKey(nonce))
	if err != nil || bz == nil {
		return bridgetypes.Valset{}, false, err
	}
	var valset bridgetypes.Valset
	if err := types.ModuleCdc.UnmarshalJSON(bz, &valset); err != nil {
		return bridgetypes.Valset{}, false, errorsmod.Wrapf(err, "decode valset %d", nonce)
	}
	return valset, true, nil
}

// PendingValsets returns the valsets orchestrator has not confirmed, oldest first
func (c *Client) PendingValsets(ctx context.Context, orchestrator string) ([]bridgetypes.Valset, error) {
	valsets, err := c.Valsets(ctx)
	if err != nil {
		return nil, err
	}
	confirmed := make(map[uint64]bool)
	pairs, err := c.subspace(ctx, types.ValsetConfirmKey)
	if err != nil {
		return nil, err
	}
	// confirm keys are prefix | nonce | orchestrator
	prefixLen := len(types.ValsetConfirmKey)
	for _, pair := range pairs {
		if len(pair.Key) < prefixLen+8 || string(pair.Key[prefixLen+8:]) != orchestrator {
			continue
		}
		confirmed[sdk.BigEndianToUint64(pair.Key[prefixLen:prefixLen+8])] = true
	}

	var pending []bridgetypes.Valset
	for _, valset := range valsets {
		if !confirmed[valset.Nonce] {
			pending = append(pending, valset)
		}
	}
	return pending, nil
}

func (c *Client) ValsetConfirms(ctx context.Context, nonce uint64) ([]types.MsgValsetConfirm, error) {
	pairs, err := c.subspace(ctx, types.GetValsetConfirmKeyPrefix(nonce))
	if err != nil {
		return nil, err
	}
	return decodeAll[types.MsgValsetConfirm](pairs)
}

func (c *Client) OutgoingBatches(ctx context.Context) ([]*bridgetypes.OutgoingTxBatch, error) {
	pairs, err := c.subspace(ctx, types.OutgoingTxBatchKey)
	if err != nil {
		return nil, err
	}
	batches, err := decodeAll[bridgetypes.OutgoingTxBatch](pairs)
	if err != nil {
		return nil, err
	}
	out := make([]*bridgetypes.OutgoingTxBatch, len(batches))
	for i := range batches {
		out[i] = &batches[i]
	}
	return out, nil
}

// PendingBatches returns the batches orchestrator has not confirmed
func (c *Client) PendingBatches(ctx context.Context, orchestrator string) ([]*bridgetypes.OutgoingTxBatch, error) {
	batches, err := c.OutgoingBatches(ctx)
	if err != nil {
		return nil, err
	}
	var pending []*bridgetypes.OutgoingTxBatch
	for _, batch := range batches {
		bz, err := c.get(ctx, types.GetBatchConfirmKey(batch.TokenContract, batch.BatchNonce, orchestrator))
		if err != nil {
			return nil, err
		}
		if bz == nil {
			pending = append(pending, batch)
		}
	}
	return pending, nil
}

func (c *Client) BatchConfirms(ctx context.Context, tokenContract string, nonce uint64) ([]types.MsgConfirmBatch, error) {
	pairs, err := c.subspace(ctx, types.GetBatchConfirmKeyPrefix(tokenContract, nonce))
	if err != nil {
		return nil, err
	}
	return decodeAll[types.MsgConfirmBatch](pairs)
}

func (c *Client) BatchFees(ctx context.Context) ([]bridgetypes.BatchFees, error) {
	params, err := c.Params(ctx)
	if err != nil {
		return nil, err
	}
	pairs, err := c.subspace(ctx, types.OutgoingTxPoolKey)
	if err != nil {
		return nil, err
	}
	pool, err := decodeAll[bridgetypes.OutgoingTransferTx](pairs)
	if err != nil {
		return nil, err
	}
	return types.BatchFeesFor(pool, params), nil
}

// DenomForContract returns the hub denom a batch request for tokenContract names
func (c *Client) DenomForContract(ctx context.Context, tokenContract string) (string, error) {
	if err := bridgetypes.ValidateEthAddress(tokenContract); err != nil {
		return "", errorsmod.Wrap(types.ErrUnknownToken, tokenContract)
	}
	bz, err := c.get(ctx, types.GetERC20ToDenomKey(gethcommon.HexToAddress(tokenContract).Hex()))
	if err != nil {
		return "", err
	}
	if bz != nil {
		return string(bz), nil
	}
	return types.VoucherDenom(tokenContract), nil
}

func (c *Client) LastObservedBlockHeight(ctx context.Context) (bridgetypes.LastObservedBlockHeight, error) {
	bz, err := c.get(ctx, types.LastObservedBlockHeightKey)
	if err != nil || bz == nil {
		return bridgetypes.LastObservedBlockHeight{}, err
	}
	var height bridgetypes.LastObservedBlockHeight
	if err := types.ModuleCdc.UnmarshalJSON(bz, &height); err != nil {
		return bridgetypes.LastObservedBlockHeight{}, errorsmod.Wrap(err, "decode last observed height")
	}
	return height, nil
}
