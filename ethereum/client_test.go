package ethereum

import (
	"context"
	"math/big"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cosmossdk.io/log"
	sdk "github.com/cosmos/cosmos-sdk/types"
	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	gethcommon "github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	bridgetypes "github.com/functionx/fx-bridge/types"
)

// fakeBackend serves the JSON-RPC surface the client uses. Calls outside it panic
// through the nil embedded backend.
type fakeBackend struct {
	bind.ContractBackend

	mu    sync.Mutex
	nonce uint64
	sent  []*ethtypes.Transaction

	head     uint64
	logs     []ethtypes.Log
	query    geth.FilterQuery
	receipts map[gethcommon.Hash]*ethtypes.Receipt
	replies  map[string][]byte
	calls    []geth.CallMsg
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		receipts: make(map[gethcommon.Hash]*ethtypes.Receipt),
		replies:  make(map[string][]byte),
	}
}

func (f *fakeBackend) BlockNumber(context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeBackend) FilterLogs(_ context.Context, q geth.FilterQuery) ([]ethtypes.Log, error) {
	f.query = q
	return f.logs, nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash gethcommon.Hash) (*ethtypes.Receipt, error) {
	receipt, ok := f.receipts[hash]
	if !ok {
		return nil, geth.NotFound
	}
	return receipt, nil
}

func (f *fakeBackend) CallContract(_ context.Context, msg geth.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls = append(f.calls, msg)
	return f.replies[string(msg.Data[:4])], nil
}

func (f *fakeBackend) PendingCodeAt(context.Context, gethcommon.Address) ([]byte, error) {
	return []byte{0x60, 0x80}, nil
}

// HeaderByNumber reports a chain without a base fee, so transactions are legacy priced
func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*ethtypes.Header, error) {
	return &ethtypes.Header{Number: new(big.Int).SetUint64(f.head)}, nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) EstimateGas(context.Context, geth.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, gethcommon.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonce, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *ethtypes.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	f.nonce++
	return nil
}

func (f *fakeBackend) reply(t *testing.T, method string, value *big.Int) {
	t.Helper()
	m := BridgeABI.Methods[method]
	out, err := m.Outputs.Pack(value)
	require.NoError(t, err)
	f.replies[string(m.ID)] = out
}

func newTestClient(t *testing.T, backend *fakeBackend) *Client {
	t.Helper()
	client, err := NewClient(log.NewNopLogger(), backend, testBridge.Hex(), nil, big.NewInt(1))
	require.NoError(t, err)
	client.SetWaitPolicy(50*time.Millisecond, time.Millisecond)
	return client
}

func TestNewClientRejectsBadBridge(t *testing.T) {
	_, err := NewClient(log.NewNopLogger(), newFakeBackend(), "0x1234", nil, big.NewInt(1))
	require.ErrorIs(t, err, bridgetypes.ErrInvalidEthAddress)
}

func TestEventsInRange(t *testing.T) {
	backend := newFakeBackend()
	receiver := sdk.AccAddress("deposit-receiver-001")
	removed := depositLog(t, 3, 52, receiver, 100)
	removed.Removed = true
	garbage := depositLog(t, 4, 53, receiver, 100)
	garbage.Data = nil
	backend.logs = []ethtypes.Log{
		depositLog(t, 2, 51, receiver, 100),
		removed,
		garbage,
		depositLog(t, 1, 50, receiver, 100),
	}
	client := newTestClient(t, backend)

	events, err := client.EventsInRange(testContext(t), 50, 60)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, uint64(1), events[0].GetEventNonce())
	require.Equal(t, uint64(2), events[1].GetEventNonce())

	require.Equal(t, big.NewInt(50), backend.query.FromBlock)
	require.Equal(t, big.NewInt(60), backend.query.ToBlock)
	require.Equal(t, []gethcommon.Address{testBridge}, backend.query.Addresses)
	require.Len(t, backend.query.Topics, 1)
	require.Len(t, backend.query.Topics[0], 4)
}

func TestContractNonces(t *testing.T) {
	backend := newFakeBackend()
	backend.head = 77
	backend.reply(t, MethodLastValsetNonce, big.NewInt(4))
	backend.reply(t, MethodLastBatchNonce, big.NewInt(11))
	client := newTestClient(t, backend)

	head, err := client.HeadHeight(testContext(t))
	require.NoError(t, err)
	require.Equal(t, uint64(77), head)

	nonce, err := client.LastValsetNonce(testContext(t))
	require.NoError(t, err)
	require.Equal(t, uint64(4), nonce)

	nonce, err = client.LastBatchNonce(testContext(t), testToken.Hex())
	require.NoError(t, err)
	require.Equal(t, uint64(11), nonce)

	last := backend.calls[len(backend.calls)-1]
	args, err := BridgeABI.Methods[MethodLastBatchNonce].Inputs.Unpack(last.Data[4:])
	require.NoError(t, err)
	require.Equal(t, testToken, args[0])

	_, err = client.LastBatchNonce(testContext(t), "token")
	require.ErrorIs(t, err, bridgetypes.ErrInvalidEthAddress)
}

func TestWaitForTransaction(t *testing.T) {
	backend := newFakeBackend()
	client := newTestClient(t, backend)

	mined := gethcommon.HexToHash("0x01")
	reverted := gethcommon.HexToHash("0x02")
	backend.receipts[mined] = &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful, BlockNumber: big.NewInt(10)}
	backend.receipts[reverted] = &ethtypes.Receipt{Status: ethtypes.ReceiptStatusFailed, BlockNumber: big.NewInt(10)}

	backend.head = 10
	require.NoError(t, client.WaitForTransaction(testContext(t), mined.Hex(), 1))
	require.Error(t, client.WaitForTransaction(testContext(t), mined.Hex(), 3))

	backend.head = 12
	require.NoError(t, client.WaitForTransaction(testContext(t), mined.Hex(), 3))

	require.ErrorIs(t, client.WaitForTransaction(testContext(t), reverted.Hex(), 1), ErrTxReverted)
	require.Error(t, client.WaitForTransaction(testContext(t), gethcommon.HexToHash("0x03").Hex(), 1))
}

func TestReadOnlyClientCannotSubmit(t *testing.T) {
	client := newTestClient(t, newFakeBackend())
	current := bridgetypes.Valset{Nonce: 1, Members: bridgetypes.BridgeValidators{{Power: 1, EthAddress: testSender.Hex()}}}
	next := bridgetypes.Valset{Nonce: 2, Members: current.Members}
	sigs := []bridgetypes.EthSignature{{EthAddress: testSender.Hex()}}

	_, err := client.SubmitValset(testContext(t), current, next, sigs)
	require.ErrorIs(t, err, ErrReadOnly)

	_, err = client.SubmitValset(testContext(t), current, next, nil)
	require.ErrorIs(t, err, bridgetypes.ErrInvalidSignature)
}

func TestKeySigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "eth.key")
	require.NoError(t, crypto.SaveECDSA(path, key))

	signer, err := LoadKeySigner(path)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey).Hex(), signer.Address())

	checkpoint := crypto.Keccak256([]byte("checkpoint"))
	sig, err := signer.Sign(checkpoint)
	require.NoError(t, err)
	require.Contains(t, []byte{27, 28}, sig[64])
	require.NoError(t, bridgetypes.ValidateEthSignature(checkpoint, sig, signer.Address()))

	_, err = LoadKeySigner(filepath.Join(t.TempDir(), "missing.key"))
	require.Error(t, err)
}
