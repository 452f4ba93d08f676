package types

import "cosmossdk.io/math"

// MaxPower is the total power of a normalized signer set, matching the bridge contract
const MaxPower = int64(1) << 32

// ThresholdReached reports whether power is at least two thirds of total.
// A zero total never reaches the threshold.
func ThresholdReached(power, total math.Int) bool {
	if total.IsNil() || !total.IsPositive() || power.IsNil() {
		return false
	}
	return power.MulRaw(3).GTE(total.MulRaw(2))
}

// NormalizePower scales power into [0, MaxPower] relative to total
func NormalizePower(power, total math.Int) uint64 {
	if total.IsNil() || !total.IsPositive() {
		return 0
	}
	return power.MulRaw(MaxPower).Quo(total).Uint64()
}
