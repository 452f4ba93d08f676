package testutil

import (
	"reflect"
	"testing"
	"time"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"

	bridgetypes "github.com/functionx/fx-bridge/types"
)

// PropertyTestConfig holds configuration for property-based tests
type PropertyTestConfig struct {
	MinSuccessfulTests int
	MaxDiscardRatio    float64
	Workers            int
	Seed               int64
}

// DefaultPropertyTestConfig returns default configuration for property tests
func DefaultPropertyTestConfig() *PropertyTestConfig {
	return &PropertyTestConfig{
		MinSuccessfulTests: 100,
		MaxDiscardRatio:    5.0,
		Workers:            1,
		Seed:               time.Now().UnixNano(),
	}
}

// NewPropertyTester creates a new property tester with default configuration
func NewPropertyTester(t *testing.T) *gopter.Properties {
	t.Helper()
	config := DefaultPropertyTestConfig()
	parameters := gopter.DefaultTestParametersWithSeed(config.Seed)
	parameters.MinSuccessfulTests = config.MinSuccessfulTests
	parameters.MaxDiscardRatio = config.MaxDiscardRatio
	parameters.Workers = config.Workers
	t.Logf("property seed %d", config.Seed)
	return gopter.NewProperties(parameters)
}

// Generators for property-based testing

// GenAccAddress generates hub account addresses
func GenAccAddress() gopter.Gen {
	return gen.SliceOfN(20, gen.UInt8()).Map(func(bz []byte) sdk.AccAddress {
		return sdk.AccAddress(bz)
	})
}

// GenEthAddress generates checksummed EVM addresses
func GenEthAddress() gopter.Gen {
	return gen.SliceOfN(20, gen.UInt8()).Map(func(bz []byte) string {
		return gethcommon.BytesToAddress(bz).Hex()
	})
}

// GenFee generates fee amounts with frequent ties
func GenFee() gopter.Gen {
	return gen.Int64Range(0, 50).Map(func(i int64) math.Int {
		return math.NewInt(i * 10)
	})
}

// GenOutgoingPool generates a pool of transfers for one token contract with unique IDs
func GenOutgoingPool(contract string) gopter.Gen {
	return gen.SliceOf(GenFee()).Map(func(fees []math.Int) []bridgetypes.OutgoingTransferTx {
		pool := make([]bridgetypes.OutgoingTransferTx, len(fees))
		for i, fee := range fees {
			pool[i] = bridgetypes.OutgoingTransferTx{
				ID:          uint64(i + 1),
				Sender:      sdk.AccAddress([]byte{byte(i), 1, 2, 3}).String(),
				DestAddress: gethcommon.BigToAddress(math.NewInt(int64(i + 1)).BigInt()).Hex(),
				Token:       bridgetypes.ERC20Token{Contract: contract, Amount: math.NewInt(1000)},
				Fee:         bridgetypes.ERC20Token{Contract: contract, Amount: fee},
			}
		}
		return pool
	})
}

// GenPowers generates a non-empty list of validator powers
func GenPowers() gopter.Gen {
	return gen.IntRange(1, 20).FlatMap(func(n interface{}) gopter.Gen {
		return gen.SliceOfN(n.(int), gen.Int64Range(1, 1000))
	}, reflect.TypeOf([]int64{}))
}

// Shuffle returns a permutation of items driven by a seed
func Shuffle[T any](items []T, seed int64) []T {
	out := make([]T, len(items))
	copy(out, items)
	s := uint64(seed)
	for i := len(out) - 1; i > 0; i-- {
		s = s*6364136223846793005 + 1442695040888963407
		j := int((s >> 33) % uint64(i+1))
		out[i], out[j] = out[j], out[i]
	}
	return out
}
