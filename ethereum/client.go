package ethereum

import (
	"context"
	"math/big"
	"sort"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	"github.com/cenkalti/backoff/v4"
	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	gethcommon "github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	bridgetypes "github.com/functionx/fx-bridge/types"
)

// Codespace for EVM client errors
const Codespace = "ethereum"

var (
	ErrReadOnly        = errorsmod.Register(Codespace, 2, "client has no signing key")
	ErrNoCode          = errorsmod.Register(Codespace, 3, "no contract code at bridge address")
	ErrTxReverted      = errorsmod.Register(Codespace, 4, "transaction reverted")
	ErrTxNotConfirmed  = errorsmod.Register(Codespace, 5, "transaction not confirmed")
	ErrUnexpectedReply = errorsmod.Register(Codespace, 6, "unexpected contract reply")
)

const (
	DefaultWaitTimeout  = 150 * time.Second
	DefaultPollInterval = 3 * time.Second

	// estimated gas is raised by 20%
	gasLimitPercent = 120
)

var _ bridgetypes.EthereumChain = (*Client)(nil)

// Backend is the part of an EVM JSON-RPC client the bridge client uses
type Backend interface {
	bind.ContractBackend
	BlockNumber(ctx context.Context) (uint64, error)
	TransactionReceipt(ctx context.Context, txHash gethcommon.Hash) (*ethtypes.Receipt, error)
}

// TransactionSigner signs bridge transactions for the client's sending address
type TransactionSigner interface {
	Address() string
	SignTx(ctx context.Context, tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error)
}

// Client reads bridge events and relays signed updates to the bridge contract
type Client struct {
	logger       log.Logger
	backend      Backend
	bridge       gethcommon.Address
	contract     *bind.BoundContract
	signer       TransactionSigner
	chainID      *big.Int
	waitTimeout  time.Duration
	pollInterval time.Duration
}

// NewClient binds the bridge contract at bridge on backend. signer may be nil for a
// client that only reads.
func NewClient(logger log.Logger, backend Backend, bridge string, signer TransactionSigner, chainID *big.Int) (*Client, error) {
	if err := bridgetypes.ValidateEthAddress(bridge); err != nil {
		return nil, errorsmod.Wrap(err, "bridge contract")
	}
	address := gethcommon.HexToAddress(bridge)
	return &Client{
		logger:       logger.With("component", "ethereum"),
		backend:      backend,
		bridge:       address,
		contract:     bind.NewBoundContract(address, BridgeABI, backend, backend, backend),
		signer:       signer,
		chainID:      chainID,
		waitTimeout:  DefaultWaitTimeout,
		pollInterval: DefaultPollInterval,
	}, nil
}

// Dial connects to an EVM JSON-RPC endpoint
func Dial(ctx context.Context, logger log.Logger, url, bridge string, signer TransactionSigner) (*Client, error) {
	rpc, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, errorsmod.Wrapf(err, "dial %s", url)
	}
	chainID, err := rpc.ChainID(ctx)
	if err != nil {
		rpc.Close()
		return nil, errorsmod.Wrap(err, "query chain id")
	}
	return NewClient(logger, rpc, bridge, signer, chainID)
}

// SetWaitPolicy overrides how long and how often WaitForTransaction polls
func (c *Client) SetWaitPolicy(timeout, interval time.Duration) {
	c.waitTimeout = timeout
	c.pollInterval = interval
}

// Bridge returns the bridge contract address
func (c *Client) Bridge() string {
	return c.bridge.Hex()
}

func (c *Client) HeadHeight(ctx context.Context) (uint64, error) {
	return c.backend.BlockNumber(ctx)
}

// EventsInRange returns bridge events in [fromBlock, toBlock] ordered by event nonce.
// Logs that do not decode are logged and left out, so the watcher sees a gap at
// their nonce.
func (c *Client) EventsInRange(ctx context.Context, fromBlock, toBlock uint64) ([]bridgetypes.ChainEvent, error) {
	logs, err := c.backend.FilterLogs(ctx, geth.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []gethcommon.Address{c.bridge},
		Topics:    [][]gethcommon.Hash{EventTopics()},
	})
	if err != nil {
		return nil, errorsmod.Wrapf(err, "filter logs %d..%d", fromBlock, toBlock)
	}

	events := make([]bridgetypes.ChainEvent, 0, len(logs))
	for _, l := range logs {
		if l.Removed {
			continue
		}
		event, err := ParseEvent(l)
		if err != nil {
			c.logger.Error("undecodable bridge log", "tx", l.TxHash.Hex(), "index", l.Index, "block", l.BlockNumber, "error", err)
			continue
		}
		events = append(events, event)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].GetEventNonce() < events[j].GetEventNonce()
	})
	return events, nil
}

func (c *Client) LastValsetNonce(ctx context.Context) (uint64, error) {
	return c.callUint64(ctx, MethodLastValsetNonce)
}

func (c *Client) LastBatchNonce(ctx context.Context, tokenContract string) (uint64, error) {
	if err := bridgetypes.ValidateEthAddress(tokenContract); err != nil {
		return 0, err
	}
	return c.callUint64(ctx, MethodLastBatchNonce, gethcommon.HexToAddress(tokenContract))
}

func (c *Client) callUint64(ctx context.Context, method string, args ...interface{}) (uint64, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return 0, errorsmod.Wrapf(err, "call %s", method)
	}
	if len(out) != 1 {
		return 0, errorsmod.Wrapf(ErrUnexpectedReply, "%s returned %d values", method, len(out))
	}
	n, ok := out[0].(*big.Int)
	if !ok || !n.IsUint64() {
		return 0, errorsmod.Wrapf(ErrUnexpectedReply, "%s returned %v", method, out[0])
	}
	return n.Uint64(), nil
}

func (c *Client) SubmitValset(ctx context.Context, current, next bridgetypes.Valset, sigs []bridgetypes.EthSignature) (string, error) {
	calldata, err := PackUpdateValset(current, next, sigs)
	if err != nil {
		return "", errorsmod.Wrap(err, "pack updateValset")
	}
	txHash, err := c.transact(ctx, calldata)
	if err != nil {
		return "", err
	}
	c.logger.Info("valset update sent", "valset_nonce", next.Nonce, "tx", txHash)
	return txHash, nil
}

func (c *Client) SubmitBatch(ctx context.Context, current bridgetypes.Valset, batch bridgetypes.OutgoingTxBatch, sigs []bridgetypes.EthSignature) (string, error) {
	calldata, err := PackSubmitBatch(current, batch, sigs)
	if err != nil {
		return "", errorsmod.Wrap(err, "pack submitBatch")
	}
	txHash, err := c.transact(ctx, calldata)
	if err != nil {
		return "", err
	}
	c.logger.Info("batch sent", "batch_nonce", batch.BatchNonce, "token_contract", batch.TokenContract, "tx", txHash)
	return txHash, nil
}

func (c *Client) transact(ctx context.Context, calldata []byte) (string, error) {
	if c.signer == nil {
		return "", ErrReadOnly
	}
	// Gas estimation cannot succeed without code for method invocations.
	code, err := c.backend.PendingCodeAt(ctx, c.bridge)
	if err != nil {
		return "", errorsmod.Wrap(err, "query bridge code")
	}
	if len(code) == 0 {
		return "", errorsmod.Wrap(ErrNoCode, c.bridge.Hex())
	}

	from := gethcommon.HexToAddress(c.signer.Address())
	var signErr error
	opts := &bind.TransactOpts{
		From:    from,
		Context: ctx,
		Signer: func(address gethcommon.Address, tx *ethtypes.Transaction) (*ethtypes.Transaction, error) {
			if address != from {
				return nil, bind.ErrNotAuthorized
			}
			signed, err := c.signer.SignTx(ctx, tx, c.chainID)
			signErr = err
			return signed, err
		},
	}

	msg := geth.CallMsg{From: opts.From, To: &c.bridge, Data: calldata, Value: new(big.Int)}
	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return "", errorsmod.Wrap(err, "query head header")
	}
	if head.BaseFee != nil {
		tip, err := c.backend.SuggestGasTipCap(ctx)
		if err != nil {
			return "", errorsmod.Wrap(err, "suggest gas tip cap")
		}
		feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
		opts.GasTipCap, opts.GasFeeCap = tip, feeCap
		msg.GasTipCap, msg.GasFeeCap = tip, feeCap
	} else {
		price, err := c.backend.SuggestGasPrice(ctx)
		if err != nil {
			return "", errorsmod.Wrap(err, "suggest gas price")
		}
		opts.GasPrice = price
		msg.GasPrice = price
	}

	gas, err := c.backend.EstimateGas(ctx, msg)
	if err != nil {
		return "", errorsmod.Wrap(err, "estimate gas")
	}
	opts.GasLimit = gas * gasLimitPercent / 100

	tx, err := c.contract.RawTransact(opts, calldata)
	if signErr != nil {
		return "", errorsmod.Wrap(signErr, "sign transaction")
	}
	if err != nil {
		return "", errorsmod.Wrap(err, "send transaction")
	}
	return tx.Hash().Hex(), nil
}

// WaitForTransaction polls until txHash is mined successfully and buried under
// confirmations-1 further blocks
func (c *Client) WaitForTransaction(ctx context.Context, txHash string, confirmations uint64) error {
	ctx, cancel := context.WithTimeout(ctx, c.waitTimeout)
	defer cancel()

	hash := gethcommon.HexToHash(txHash)
	op := func() error {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err != nil {
			return err
		}
		if receipt.Status != ethtypes.ReceiptStatusSuccessful {
			return backoff.Permanent(errorsmod.Wrapf(ErrTxReverted, "%s in block %s", txHash, receipt.BlockNumber))
		}
		if confirmations <= 1 {
			return nil
		}
		head, err := c.backend.BlockNumber(ctx)
		if err != nil {
			return err
		}
		if head+1 < receipt.BlockNumber.Uint64()+confirmations {
			return errorsmod.Wrapf(ErrTxNotConfirmed, "%s at %d, head %d", txHash, receipt.BlockNumber.Uint64(), head)
		}
		return nil
	}
	err := backoff.Retry(op, backoff.WithContext(backoff.NewConstantBackOff(c.pollInterval), ctx))
	if err != nil {
		return errorsmod.Wrapf(err, "wait for %s", txHash)
	}
	return nil
}
