package hub_test

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtbytes "github.com/cometbft/cometbft/libs/bytes"
	rpcclient "github.com/cometbft/cometbft/rpc/client"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	cmttypes "github.com/cometbft/cometbft/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/functionx/fx-bridge/app"
	"github.com/functionx/fx-bridge/hub"
	"github.com/functionx/fx-bridge/testutil"
)

var _ hub.RPC = (*fakeNode)(nil)

// fakeNode serves CometBFT RPC calls from the host app over a test keeper. A broadcast
// transaction is checked like a mempool would, then delivered at once.
type fakeNode struct {
	mu       sync.Mutex
	app      *app.App
	accounts *testutil.MockAccountKeeper
	results  map[string]*abci.ExecTxResult
	queries  []string
}

func newFakeNode(env *testutil.GravityTestEnv, chainID string) *fakeNode {
	accounts := testutil.NewMockAccountKeeper()
	return &fakeNode{
		app:      app.New(log.NewNopLogger(), chainID, env.CMS, env.StoreKey, *env.Keeper, accounts),
		accounts: accounts,
		results:  make(map[string]*abci.ExecTxResult),
	}
}

func (n *fakeNode) addAccount(addr sdk.AccAddress, number, sequence uint64) {
	n.accounts.AddAccount(addr, number, sequence)
}

func (n *fakeNode) ABCIQueryWithOptions(_ context.Context, path string, data cmtbytes.HexBytes, _ rpcclient.ABCIQueryOptions) (*coretypes.ResultABCIQuery, error) {
	n.mu.Lock()
	n.queries = append(n.queries, path)
	n.mu.Unlock()
	return &coretypes.ResultABCIQuery{Response: *n.app.Query(path, data)}, nil
}

func (n *fakeNode) BroadcastTxSync(_ context.Context, bz cmttypes.Tx) (*coretypes.ResultBroadcastTx, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	hash := bz.Hash()
	if err := n.app.CheckTx(bz); err != nil {
		codespace, code, info := errorsmod.ABCIInfo(err, false)
		return &coretypes.ResultBroadcastTx{Code: code, Codespace: codespace, Log: info, Hash: hash}, nil
	}
	n.results[hex.EncodeToString(hash)] = n.app.DeliverTx(bz)
	return &coretypes.ResultBroadcastTx{Hash: hash}, nil
}

func (n *fakeNode) Tx(_ context.Context, hash []byte, _ bool) (*coretypes.ResultTx, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	result, ok := n.results[hex.EncodeToString(hash)]
	if !ok {
		return nil, errors.New("tx not found")
	}
	return &coretypes.ResultTx{Hash: hash, TxResult: *result}, nil
}
