package types

import (
	"sort"

	bridgetypes "github.com/functionx/fx-bridge/types"
)

// BatchFeesFor reports, per token contract of pool, what a batch built under params
// would carry. Contracts with nothing eligible are left out; the result is ordered by
// token contract.
func BatchFeesFor(pool []bridgetypes.OutgoingTransferTx, params Params) []bridgetypes.BatchFees {
	byContract := make(map[string][]bridgetypes.OutgoingTransferTx)
	for _, tx := range pool {
		byContract[tx.Token.Contract] = append(byContract[tx.Token.Contract], tx)
	}

	fees := make([]bridgetypes.BatchFees, 0, len(byContract))
	for contract, txs := range byContract {
		selected := bridgetypes.SelectBatchTxs(txs, params.BatchMaxElements, params.BatchFeeFloor)
		if len(selected) == 0 {
			continue
		}
		fees = append(fees, bridgetypes.BatchFees{
			TokenContract: contract,
			TotalFees:     bridgetypes.TotalFees(selected),
			TotalTxs:      uint64(len(selected)),
		})
	}
	sort.Slice(fees, func(i, j int) bool { return fees[i].TokenContract < fees[j].TokenContract })
	return fees
}
