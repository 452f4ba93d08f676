package hub

import (
	"context"
	"errors"
	"sync"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	"github.com/cenkalti/backoff/v4"
	cmtbytes "github.com/cometbft/cometbft/libs/bytes"
	rpcclient "github.com/cometbft/cometbft/rpc/client"
	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	sdk "github.com/cosmos/cosmos-sdk/types"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"

	"github.com/functionx/fx-bridge/orchestrator"
	"github.com/functionx/fx-bridge/x/gravity/types"
)

const (
	DefaultCommitTimeout = 60 * time.Second
	DefaultPollInterval  = time.Second
)

var _ orchestrator.HubChain = (*Client)(nil)

// RPC is the part of a CometBFT RPC client the hub client uses
type RPC interface {
	ABCIQueryWithOptions(ctx context.Context, path string, data cmtbytes.HexBytes, opts rpcclient.ABCIQueryOptions) (*coretypes.ResultABCIQuery, error)
	BroadcastTxSync(ctx context.Context, tx cmttypes.Tx) (*coretypes.ResultBroadcastTx, error)
	Tx(ctx context.Context, hash []byte, prove bool) (*coretypes.ResultTx, error)
}

// Client reads the gravity store and broadcasts gravity messages over CometBFT RPC.
// Messages are signed with one secp256k1 account; sends are serialized so the
// account sequence stays in step with the hub.
type Client struct {
	logger  log.Logger
	rpc     RPC
	chainID string
	key     *secp256k1.PrivKey
	address sdk.AccAddress

	commitTimeout time.Duration
	pollInterval  time.Duration

	mu            sync.Mutex
	accountLoaded bool
	accountNumber uint64
	sequence      uint64
}

// NewClient signs with key on chainID
func NewClient(logger log.Logger, rpc RPC, chainID string, key *secp256k1.PrivKey) *Client {
	return &Client{
		logger:        logger.With("component", "hub"),
		rpc:           rpc,
		chainID:       chainID,
		key:           key,
		address:       sdk.AccAddress(key.PubKey().Address()),
		commitTimeout: DefaultCommitTimeout,
		pollInterval:  DefaultPollInterval,
	}
}

// Dial connects to a CometBFT RPC endpoint such as tcp://localhost:26657
func Dial(logger log.Logger, endpoint, chainID string, key *secp256k1.PrivKey) (*Client, error) {
	rpc, err := rpchttp.New(endpoint, "/websocket")
	if err != nil {
		return nil, errorsmod.Wrapf(err, "dial %s", endpoint)
	}
	return NewClient(logger, rpc, chainID, key), nil
}

// SetCommitPolicy overrides how long and how often a broadcast waits for its block
func (c *Client) SetCommitPolicy(timeout, interval time.Duration) {
	c.commitTimeout = timeout
	c.pollInterval = interval
}

// Address returns the hub account messages are signed with
func (c *Client) Address() sdk.AccAddress {
	return c.address
}

func (c *Client) broadcast(ctx context.Context, msg types.Msg) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.accountLoaded {
		number, sequence, err := c.account(ctx)
		if err != nil {
			return err
		}
		c.accountNumber, c.sequence, c.accountLoaded = number, sequence, true
	}

	tx := types.Tx{
		Msgs:          []types.Msg{msg},
		AccountNumber: c.accountNumber,
		Sequence:      c.sequence,
		PubKey:        c.key.PubKey().Bytes(),
	}
	signBytes, err := tx.SignBytes(c.chainID)
	if err != nil {
		return errorsmod.Wrap(err, "sign bytes")
	}
	if tx.Signature, err = c.key.Sign(signBytes); err != nil {
		return errorsmod.Wrap(err, "sign transaction")
	}
	bz, err := types.EncodeTx(tx)
	if err != nil {
		return errorsmod.Wrap(err, "encode transaction")
	}

	res, err := c.rpc.BroadcastTxSync(ctx, bz)
	if err != nil {
		// the node may or may not have taken it, reload the sequence next time
		c.accountLoaded = false
		return errorsmod.Wrapf(err, "broadcast %s", msg.Type())
	}
	if res.Code != 0 {
		err := errorsmod.ABCIError(res.Codespace, res.Code, res.Log)
		if errors.Is(err, sdkerrors.ErrWrongSequence) {
			c.accountLoaded = false
		}
		return err
	}
	c.sequence++

	c.logger.Debug("transaction broadcast", "msg", msg.Type(), "hash", res.Hash.String(), "sequence", tx.Sequence)
	return c.waitForCommit(ctx, res.Hash)
}

// waitForCommit polls until the transaction is in a block and returns its execution error
func (c *Client) waitForCommit(ctx context.Context, hash cmtbytes.HexBytes) error {
	ctx, cancel := context.WithTimeout(ctx, c.commitTimeout)
	defer cancel()

	var result *coretypes.ResultTx
	op := func() error {
		res, err := c.rpc.Tx(ctx, hash, false)
		if err != nil {
			return err
		}
		result = res
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(backoff.NewConstantBackOff(c.pollInterval), ctx)); err != nil {
		return errorsmod.Wrapf(err, "wait for %s", hash)
	}
	if result.TxResult.Code != 0 {
		return errorsmod.ABCIError(result.TxResult.Codespace, result.TxResult.Code, result.TxResult.Log)
	}
	return nil
}

func (c *Client) SendClaim(ctx context.Context, claim types.EthereumClaim) error {
	return c.broadcast(ctx, claim)
}

func (c *Client) SendValsetConfirm(ctx context.Context, msg *types.MsgValsetConfirm) error {
	return c.broadcast(ctx, msg)
}

func (c *Client) SendBatchConfirm(ctx context.Context, msg *types.MsgConfirmBatch) error {
	return c.broadcast(ctx, msg)
}

func (c *Client) RequestBatch(ctx context.Context, msg *types.MsgRequestBatch) error {
	return c.broadcast(ctx, msg)
}
