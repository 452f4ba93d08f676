package testutil

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"sync"
	"testing"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	storetypes "cosmossdk.io/store/types"
	sdktestutil "github.com/cosmos/cosmos-sdk/testutil"
	sdk "github.com/cosmos/cosmos-sdk/types"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	stakingtypes "github.com/cosmos/cosmos-sdk/x/staking/types"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/functionx/fx-bridge/x/gravity/keeper"
	"github.com/functionx/fx-bridge/x/gravity/types"
)

// MockBankKeeper keeps balances in memory
type MockBankKeeper struct {
	mu       sync.Mutex
	balances map[string]sdk.Coins
	module   sdk.Coins
	Minted   sdk.Coins
	Burned   sdk.Coins
}

// NewMockBankKeeper creates an empty bank
func NewMockBankKeeper() *MockBankKeeper {
	return &MockBankKeeper{balances: make(map[string]sdk.Coins)}
}

// Fund credits an account
func (b *MockBankKeeper) Fund(addr sdk.AccAddress, coins ...sdk.Coin) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[addr.String()] = b.balances[addr.String()].Add(coins...)
}

// Balance returns an account balance of denom
func (b *MockBankKeeper) Balance(addr sdk.AccAddress, denom string) sdk.Coin {
	b.mu.Lock()
	defer b.mu.Unlock()
	return sdk.NewCoin(denom, b.balances[addr.String()].AmountOf(denom))
}

// ModuleBalance returns the module account balance of denom
func (b *MockBankKeeper) ModuleBalance(denom string) sdk.Coin {
	b.mu.Lock()
	defer b.mu.Unlock()
	return sdk.NewCoin(denom, b.module.AmountOf(denom))
}

func (b *MockBankKeeper) SendCoinsFromAccountToModule(_ context.Context, sender sdk.AccAddress, _ string, amt sdk.Coins) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	balance := b.balances[sender.String()]
	if !balance.IsAllGTE(amt) {
		return errorsmod.Wrapf(sdkerrors.ErrInsufficientFunds, "%s < %s", balance, amt)
	}
	b.balances[sender.String()] = balance.Sub(amt...)
	b.module = b.module.Add(amt...)
	return nil
}

func (b *MockBankKeeper) SendCoinsFromModuleToAccount(_ context.Context, _ string, recipient sdk.AccAddress, amt sdk.Coins) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.module.IsAllGTE(amt) {
		return errorsmod.Wrapf(sdkerrors.ErrInsufficientFunds, "module %s < %s", b.module, amt)
	}
	b.module = b.module.Sub(amt...)
	b.balances[recipient.String()] = b.balances[recipient.String()].Add(amt...)
	return nil
}

func (b *MockBankKeeper) MintCoins(_ context.Context, _ string, amt sdk.Coins) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.module = b.module.Add(amt...)
	b.Minted = b.Minted.Add(amt...)
	return nil
}

func (b *MockBankKeeper) BurnCoins(_ context.Context, _ string, amt sdk.Coins) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.module.IsAllGTE(amt) {
		return errorsmod.Wrapf(sdkerrors.ErrInsufficientFunds, "module %s < %s", b.module, amt)
	}
	b.module = b.module.Sub(amt...)
	b.Burned = b.Burned.Add(amt...)
	return nil
}

// MockStakingKeeper serves a fixed bonded validator set
type MockStakingKeeper struct {
	mu         sync.Mutex
	validators []stakingtypes.Validator
}

// NewBondedValidator returns a bonded validator with the given consensus power
func NewBondedValidator(operator sdk.ValAddress, power int64) stakingtypes.Validator {
	return stakingtypes.Validator{
		OperatorAddress: operator.String(),
		Status:          stakingtypes.Bonded,
		Tokens:          sdk.TokensFromConsensusPower(power, sdk.DefaultPowerReduction),
	}
}

// SetPower adds, updates or (with power 0) unbonds a validator
func (s *MockStakingKeeper) SetPower(operator sdk.ValAddress, power int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, val := range s.validators {
		if val.OperatorAddress == operator.String() {
			if power == 0 {
				s.validators = append(s.validators[:i], s.validators[i+1:]...)
				return
			}
			s.validators[i] = NewBondedValidator(operator, power)
			return
		}
	}
	if power > 0 {
		s.validators = append(s.validators, NewBondedValidator(operator, power))
	}
}

func (s *MockStakingKeeper) GetBondedValidatorsByPower(_ context.Context) ([]stakingtypes.Validator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]stakingtypes.Validator, len(s.validators))
	copy(out, s.validators)
	return out, nil
}

// TestOrchestrator is a validator together with its delegate identities
type TestOrchestrator struct {
	Validator    sdk.ValAddress
	Orchestrator sdk.AccAddress
	EthKey       *ecdsa.PrivateKey
	EthAddress   string
	Power        int64
}

// SignCheckpoint produces the EIP-191 signature the bridge contract expects
func (o TestOrchestrator) SignCheckpoint(checkpoint []byte) []byte {
	sig, err := crypto.Sign(accounts.TextHash(checkpoint), o.EthKey)
	if err != nil {
		panic(err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig
}

// MockAccountKeeper keeps base accounts in memory
type MockAccountKeeper struct {
	mu       sync.Mutex
	accounts map[string]sdk.AccountI
}

// NewMockAccountKeeper creates an empty account set
func NewMockAccountKeeper() *MockAccountKeeper {
	return &MockAccountKeeper{accounts: make(map[string]sdk.AccountI)}
}

// AddAccount registers a base account with the given number and next sequence
func (a *MockAccountKeeper) AddAccount(addr sdk.AccAddress, number, sequence uint64) {
	a.SetAccount(context.Background(), authtypes.NewBaseAccount(addr, nil, number, sequence))
}

// Sequence returns the next sequence of addr
func (a *MockAccountKeeper) Sequence(addr sdk.AccAddress) uint64 {
	acc := a.GetAccount(context.Background(), addr)
	if acc == nil {
		return 0
	}
	return acc.GetSequence()
}

func (a *MockAccountKeeper) GetAccount(_ context.Context, addr sdk.AccAddress) sdk.AccountI {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.accounts[addr.String()]
}

func (a *MockAccountKeeper) SetAccount(_ context.Context, acc sdk.AccountI) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.accounts[acc.GetAddress().String()] = acc
}

// GravityTestEnv is a gravity keeper on an in-memory store with mock collaborators
type GravityTestEnv struct {
	CMS           storetypes.CommitMultiStore
	StoreKey      *storetypes.KVStoreKey
	Ctx           sdk.Context
	Keeper        *keeper.Keeper
	Bank          *MockBankKeeper
	Staking       *MockStakingKeeper
	Handler       keeper.Handler
	Orchestrators []TestOrchestrator
}

// SetupGravityKeeper creates a keeper with default params at block height 1
func SetupGravityKeeper(t testing.TB) *GravityTestEnv {
	t.Helper()
	storeKey := storetypes.NewKVStoreKey(types.StoreKey)
	testCtx := sdktestutil.DefaultContextWithDB(t, storeKey, storetypes.NewTransientStoreKey("transient_test"))
	ctx := testCtx.Ctx.WithBlockHeight(1).WithLogger(log.NewNopLogger())

	bank := NewMockBankKeeper()
	staking := &MockStakingKeeper{}
	k := keeper.NewKeeper(types.ModuleCdc, storeKey, bank, staking)
	require.NoError(t, k.SetParams(ctx, types.DefaultParams()))

	return &GravityTestEnv{
		CMS:      testCtx.CMS,
		StoreKey: storeKey,
		Ctx:      ctx,
		Keeper:   k,
		Bank:     bank,
		Staking:  staking,
		Handler:  keeper.NewHandler(*k),
	}
}

// AddOrchestrators bonds one validator per power and registers its delegate keys
func (env *GravityTestEnv) AddOrchestrators(t testing.TB, powers ...int64) []TestOrchestrator {
	t.Helper()
	start := len(env.Orchestrators)
	for i, power := range powers {
		seed := []byte(fmt.Sprintf("orchestrator-%08d", start+i))
		valAddr := sdk.ValAddress(crypto.Keccak256(append([]byte("val"), seed...))[:20])
		orchAddr := sdk.AccAddress(crypto.Keccak256(append([]byte("orch"), seed...))[:20])
		ethKey, err := crypto.GenerateKey()
		require.NoError(t, err)

		env.Staking.SetPower(valAddr, power)
		orch := TestOrchestrator{
			Validator:    valAddr,
			Orchestrator: orchAddr,
			EthKey:       ethKey,
			EthAddress:   crypto.PubkeyToAddress(ethKey.PublicKey).Hex(),
			Power:        power,
		}
		_, err = env.Handler(env.Ctx, types.NewMsgSetOrchestratorAddress(valAddr, orchAddr, orch.EthAddress))
		require.NoError(t, err)
		env.Orchestrators = append(env.Orchestrators, orch)
	}
	return env.Orchestrators[start:]
}
