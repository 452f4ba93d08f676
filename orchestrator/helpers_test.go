package orchestrator_test

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/cenkalti/backoff/v4"
	sdk "github.com/cosmos/cosmos-sdk/types"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/functionx/fx-bridge/orchestrator"
	"github.com/functionx/fx-bridge/testutil"
	bridgetypes "github.com/functionx/fx-bridge/types"
)

const (
	tokenContract = "0x2170Ed0880ac9A755fd29B2688956BD959F933F8"
	ethSender     = "0x00000000000000000000000000000000000000aa"
)

var (
	_ orchestrator.HubChain     = (*testutil.KeeperHub)(nil)
	_ bridgetypes.EthereumChain = (*fakeEth)(nil)
	_ bridgetypes.TxSigner      = (*orchSigner)(nil)

	receiver = sdk.AccAddress([]byte("deposit-receiver-001"))
)

func deposit(nonce, height uint64) *bridgetypes.DepositEvent {
	return &bridgetypes.DepositEvent{
		EventNonce:    nonce,
		BlockHeight:   height,
		TokenContract: tokenContract,
		Amount:        math.NewIntFromUint64(nonce * 100),
		Sender:        ethSender,
		Receiver:      receiver.String(),
	}
}

func noRetry() backoff.BackOff {
	return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3)
}

type blockRange struct{ from, to uint64 }

// fakeEth is an in-memory bridge contract
type fakeEth struct {
	mu          sync.Mutex
	head        uint64
	headErr     error
	events      []bridgetypes.ChainEvent
	scans       []blockRange
	valsetNonce uint64
	batchNonces map[string]uint64

	relayedValsets []bridgetypes.Valset
	valsetSigs     [][]bridgetypes.EthSignature
	relayedBatches []bridgetypes.OutgoingTxBatch
	waited         []string
}

func newFakeEth(head uint64) *fakeEth {
	return &fakeEth{head: head, batchNonces: make(map[string]uint64)}
}

func (f *fakeEth) SetHead(head uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.head = head
}

// Reveal makes events visible to EventsInRange in the order given
func (f *fakeEth) Reveal(events ...bridgetypes.ChainEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, events...)
}

// Replace swaps the payload of the event with the same nonce
func (f *fakeEth) Replace(event bridgetypes.ChainEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.events {
		if e.GetEventNonce() == event.GetEventNonce() {
			f.events[i] = event
		}
	}
}

// ScannedTo reports whether a scan reached height
func (f *fakeEth) ScannedTo(height uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.scans {
		if r.to >= height {
			return true
		}
	}
	return false
}

func (f *fakeEth) HeadHeight(_ context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, f.headErr
}

func (f *fakeEth) EventsInRange(_ context.Context, fromBlock, toBlock uint64) ([]bridgetypes.ChainEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans = append(f.scans, blockRange{fromBlock, toBlock})
	var out []bridgetypes.ChainEvent
	for _, e := range f.events {
		if e.GetBlockHeight() >= fromBlock && e.GetBlockHeight() <= toBlock {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEth) LastValsetNonce(_ context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.valsetNonce, nil
}

func (f *fakeEth) LastBatchNonce(_ context.Context, token string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batchNonces[token], nil
}

func (f *fakeEth) SubmitValset(_ context.Context, _, next bridgetypes.Valset, sigs []bridgetypes.EthSignature) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.relayedValsets = append(f.relayedValsets, next)
	f.valsetSigs = append(f.valsetSigs, sigs)
	f.valsetNonce = next.Nonce
	return fmt.Sprintf("0xvalset%d", next.Nonce), nil
}

func (f *fakeEth) SubmitBatch(_ context.Context, _ bridgetypes.Valset, batch bridgetypes.OutgoingTxBatch, _ []bridgetypes.EthSignature) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.relayedBatches = append(f.relayedBatches, batch)
	f.batchNonces[batch.TokenContract] = batch.BatchNonce
	return fmt.Sprintf("0xbatch%d", batch.BatchNonce), nil
}

func (f *fakeEth) WaitForTransaction(_ context.Context, txHash string, _ uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waited = append(f.waited, txHash)
	return nil
}

// orchSigner signs with a test orchestrator's EVM key
type orchSigner struct {
	orch testutil.TestOrchestrator
	fail error
}

func (s *orchSigner) Address() string { return s.orch.EthAddress }

func (s *orchSigner) Sign(msg []byte) ([]byte, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	return s.orch.SignCheckpoint(msg), nil
}

func (s *orchSigner) SignTx(tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	return ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(chainID), s.orch.EthKey)
}

var errBackendDown = errors.New("hsm unavailable")

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestEnv(t *testing.T, powers ...int64) (*testutil.GravityTestEnv, *testutil.KeeperHub) {
	t.Helper()
	env := testutil.SetupGravityKeeper(t)
	env.AddOrchestrators(t, powers...)
	return env, testutil.NewKeeperHub(env)
}

func lower(s string) string {
	return strings.ToLower(s)
}
