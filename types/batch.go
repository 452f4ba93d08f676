package types

import (
	"sort"

	"cosmossdk.io/math"
)

// SelectBatchTxs picks the transfers a new batch would carry from a pool snapshot of a
// single token contract. Transfers are ordered by fee descending with ID ascending as
// tie-break; transfers whose fee is below feeFloor are never selected and at most
// maxElements transfers are returned. The result depends only on the arguments.
func SelectBatchTxs(pool []OutgoingTransferTx, maxElements uint64, feeFloor math.Int) []OutgoingTransferTx {
	if maxElements == 0 || len(pool) == 0 {
		return nil
	}
	if feeFloor.IsNil() {
		feeFloor = math.ZeroInt()
	}

	candidates := make([]OutgoingTransferTx, len(pool))
	copy(candidates, pool)
	sort.SliceStable(candidates, func(i, j int) bool {
		fi, fj := candidates[i].Fee.Amount, candidates[j].Fee.Amount
		if !fi.Equal(fj) {
			return fi.GT(fj)
		}
		return candidates[i].ID < candidates[j].ID
	})

	selected := make([]OutgoingTransferTx, 0, min(uint64(len(candidates)), maxElements))
	for _, tx := range candidates {
		if uint64(len(selected)) == maxElements {
			break
		}
		// sorted by fee, nothing after this one clears the floor either
		if tx.Fee.Amount.LT(feeFloor) {
			break
		}
		selected = append(selected, tx)
	}
	return selected
}

// TotalFees sums transfer fees
func TotalFees(txs []OutgoingTransferTx) math.Int {
	total := math.ZeroInt()
	for _, tx := range txs {
		total = total.Add(tx.Fee.Amount)
	}
	return total
}
