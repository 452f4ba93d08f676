package types

import (
	"fmt"

	"cosmossdk.io/math"

	bridgetypes "github.com/functionx/fx-bridge/types"
)

// Params defines the parameters for the gravity module.
type Params struct {
	// GravityID tags every checkpoint so signatures cannot be replayed on another bridge
	GravityID        string `json:"gravity_id"`
	BridgeEthAddress string `json:"bridge_eth_address"`
	BridgeChainID    uint64 `json:"bridge_chain_id"`

	// Batch timeouts are projected from these averages, all in milliseconds
	TargetBatchTimeout  uint64 `json:"target_batch_timeout"`
	AverageBlockTime    uint64 `json:"average_block_time"`
	AverageEthBlockTime uint64 `json:"average_eth_block_time"`

	BatchMaxElements uint64   `json:"batch_max_elements"`
	BatchFeeFloor    math.Int `json:"batch_fee_floor"`

	ValsetUpdatePowerChangePercent math.LegacyDec `json:"valset_update_power_change_percent"`
}

// DefaultParams returns a default set of parameters
func DefaultParams() Params {
	return Params{
		GravityID:                      "fx-bridge-eth",
		BridgeChainID:                  1,
		TargetBatchTimeout:             43_200_000, // 12 hours
		AverageBlockTime:               5_000,
		AverageEthBlockTime:            15_000,
		BatchMaxElements:               100,
		BatchFeeFloor:                  math.ZeroInt(),
		ValsetUpdatePowerChangePercent: math.LegacyNewDecWithPrec(1, 1),
	}
}

// Validate checks the parameters for consistency
func (p Params) Validate() error {
	if p.GravityID == "" {
		return fmt.Errorf("gravity id cannot be empty")
	}
	if len(p.GravityID) > 32 {
		return fmt.Errorf("gravity id longer than 32 bytes: %q", p.GravityID)
	}
	if p.BridgeEthAddress != "" {
		if err := bridgetypes.ValidateEthAddress(p.BridgeEthAddress); err != nil {
			return fmt.Errorf("bridge address: %w", err)
		}
	}
	if p.AverageBlockTime == 0 {
		return fmt.Errorf("average block time must be positive")
	}
	if p.AverageEthBlockTime == 0 {
		return fmt.Errorf("average eth block time must be positive")
	}
	if p.TargetBatchTimeout < p.AverageEthBlockTime {
		return fmt.Errorf("target batch timeout %d shorter than one eth block", p.TargetBatchTimeout)
	}
	if p.BatchMaxElements == 0 {
		return fmt.Errorf("batch max elements must be positive")
	}
	if p.BatchFeeFloor.IsNil() || p.BatchFeeFloor.IsNegative() {
		return fmt.Errorf("batch fee floor must be non-negative")
	}
	if p.ValsetUpdatePowerChangePercent.IsNil() ||
		p.ValsetUpdatePowerChangePercent.IsNegative() ||
		p.ValsetUpdatePowerChangePercent.GT(math.LegacyOneDec()) {
		return fmt.Errorf("valset update power change percent must be within [0, 1]")
	}
	return nil
}
