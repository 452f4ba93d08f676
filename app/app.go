package app

import (
	"context"
	"fmt"
	"sync"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	storetypes "cosmossdk.io/store/types"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtproto "github.com/cometbft/cometbft/proto/tendermint/types"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"

	"github.com/functionx/fx-bridge/x/gravity"
	"github.com/functionx/fx-bridge/x/gravity/keeper"
	"github.com/functionx/fx-bridge/x/gravity/types"
)

const Name = "fxhub"

// Query paths the app answers
var (
	StoreKeyPath      = fmt.Sprintf("/store/%s/key", types.StoreKey)
	StoreSubspacePath = fmt.Sprintf("/store/%s/subspace", types.StoreKey)
	AccountQueryPath  = "/cosmos.auth.v1beta1.Query/Account"
)

// AccountKeeper holds the accounts that sign broadcast envelopes
type AccountKeeper interface {
	GetAccount(ctx context.Context, addr sdk.AccAddress) sdk.AccountI
	SetAccount(ctx context.Context, acc sdk.AccountI)
}

// App hosts the gravity module on a commit multistore. It decodes the amino envelope
// the orchestrator broadcasts, runs the account, sequence and signature checks, then
// executes the messages through the module handler. Blocks end with the module's
// EndBlock.
type App struct {
	mu sync.Mutex

	logger  log.Logger
	chainID string
	cms     storetypes.CommitMultiStore
	key     *storetypes.KVStoreKey
	ctx     sdk.Context

	AccountKeeper AccountKeeper
	GravityKeeper keeper.Keeper

	module  gravity.AppModule
	handler keeper.Handler
}

// New wires the gravity keeper stored under key in cms. The gravity store must already
// be mounted and loaded.
func New(logger log.Logger, chainID string, cms storetypes.CommitMultiStore, key *storetypes.KVStoreKey, k keeper.Keeper, accounts AccountKeeper) *App {
	module := gravity.NewAppModule(k)
	app := &App{
		logger:        logger.With("module", "app"),
		chainID:       chainID,
		cms:           cms,
		key:           key,
		AccountKeeper: accounts,
		GravityKeeper: k,
		module:        module,
		handler:       module.Handler(),
	}
	app.ctx = app.newContext()
	return app
}

func (app *App) newContext() sdk.Context {
	header := cmtproto.Header{ChainID: app.chainID, Height: app.cms.LastCommitID().Version + 1}
	return sdk.NewContext(app.cms, header, false, app.logger)
}

// Context returns the context of the block being built
func (app *App) Context() sdk.Context {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.ctx
}

// DecodeTx parses and validates an envelope, then checks it against the signer's
// account: account number, next sequence and signature over the chain id.
func (app *App) DecodeTx(bz []byte) (types.Tx, sdk.AccountI, error) {
	tx, err := types.DecodeTx(bz)
	if err != nil {
		return types.Tx{}, nil, err
	}
	if err := tx.ValidateBasic(); err != nil {
		return types.Tx{}, nil, err
	}
	signer, err := tx.Signer()
	if err != nil {
		return types.Tx{}, nil, err
	}
	acc := app.AccountKeeper.GetAccount(app.ctx, signer)
	if acc == nil {
		return types.Tx{}, nil, errorsmod.Wrap(sdkerrors.ErrUnknownAddress, signer.String())
	}
	if tx.AccountNumber != acc.GetAccountNumber() {
		return types.Tx{}, nil, errorsmod.Wrapf(sdkerrors.ErrUnauthorized, "account number %d, expected %d", tx.AccountNumber, acc.GetAccountNumber())
	}
	if tx.Sequence != acc.GetSequence() {
		return types.Tx{}, nil, errorsmod.Wrapf(sdkerrors.ErrWrongSequence, "expected %d, got %d", acc.GetSequence(), tx.Sequence)
	}
	if err := tx.VerifySignature(app.chainID); err != nil {
		return types.Tx{}, nil, err
	}
	return tx, acc, nil
}

// CheckTx runs the envelope checks without executing anything
func (app *App) CheckTx(bz []byte) error {
	app.mu.Lock()
	defer app.mu.Unlock()
	_, _, err := app.DecodeTx(bz)
	return err
}

// DeliverTx checks the envelope, spends its sequence and executes its messages. The
// messages apply all together or not at all; the sequence is spent either way.
func (app *App) DeliverTx(bz []byte) *abci.ExecTxResult {
	app.mu.Lock()
	defer app.mu.Unlock()

	tx, acc, err := app.DecodeTx(bz)
	if err != nil {
		return execError(err)
	}
	if err := acc.SetSequence(acc.GetSequence() + 1); err != nil {
		return execError(err)
	}
	app.AccountKeeper.SetAccount(app.ctx, acc)

	cacheCtx, commit := app.ctx.CacheContext()
	var events []abci.Event
	for i, msg := range tx.Msgs {
		res, err := app.handler(cacheCtx, msg)
		if err != nil {
			app.logger.Debug("message failed", "index", i, "msg", msg.Type(), "error", err)
			return execError(err)
		}
		events = append(events, res.Events...)
	}
	commit()
	return &abci.ExecTxResult{Events: events}
}

func execError(err error) *abci.ExecTxResult {
	codespace, code, info := errorsmod.ABCIInfo(err, false)
	return &abci.ExecTxResult{Codespace: codespace, Code: code, Log: info}
}

// EndBlock runs the gravity end blocker on the current block
func (app *App) EndBlock() error {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.module.EndBlock(app.ctx)
}

// Commit persists the block and starts the next one
func (app *App) Commit() storetypes.CommitID {
	app.mu.Lock()
	defer app.mu.Unlock()
	id := app.cms.Commit()
	app.ctx = app.newContext()
	return id
}

// Query answers the raw store paths and the account query the orchestrator uses
func (app *App) Query(path string, data []byte) *abci.ResponseQuery {
	app.mu.Lock()
	defer app.mu.Unlock()

	switch path {
	case StoreKeyPath:
		return &abci.ResponseQuery{Key: data, Value: app.ctx.KVStore(app.key).Get(data)}

	case StoreSubspacePath:
		queryable, ok := app.cms.(storetypes.Queryable)
		if !ok {
			return queryError(errorsmod.Wrapf(sdkerrors.ErrUnknownRequest, "store %T cannot be queried", app.cms))
		}
		res, err := queryable.Query(&storetypes.RequestQuery{Path: "/" + app.key.Name() + "/subspace", Data: data})
		if err != nil {
			return queryError(err)
		}
		return &abci.ResponseQuery{Key: res.Key, Value: res.Value, Height: res.Height}

	case AccountQueryPath:
		var req authtypes.QueryAccountRequest
		if err := req.Unmarshal(data); err != nil {
			return queryError(errorsmod.Wrap(sdkerrors.ErrTxDecode, err.Error()))
		}
		addr, err := sdk.AccAddressFromBech32(req.Address)
		if err != nil {
			return queryError(errorsmod.Wrap(sdkerrors.ErrInvalidAddress, err.Error()))
		}
		acc := app.AccountKeeper.GetAccount(app.ctx, addr)
		if acc == nil {
			return queryError(errorsmod.Wrap(sdkerrors.ErrUnknownAddress, req.Address))
		}
		packed, err := codectypes.NewAnyWithValue(acc)
		if err != nil {
			return queryError(err)
		}
		bz, err := (&authtypes.QueryAccountResponse{Account: packed}).Marshal()
		if err != nil {
			return queryError(err)
		}
		return &abci.ResponseQuery{Value: bz}
	}
	return queryError(errorsmod.Wrap(sdkerrors.ErrUnknownRequest, path))
}

func queryError(err error) *abci.ResponseQuery {
	codespace, code, info := errorsmod.ABCIInfo(err, false)
	return &abci.ResponseQuery{Code: code, Codespace: codespace, Log: info}
}
