package types

import (
	"fmt"
	"sort"
	"strings"

	"cosmossdk.io/math"
)

// BridgeValidator is one member of a bridge signer set as seen by the EVM contract
type BridgeValidator struct {
	Power      uint64 `json:"power"`
	EthAddress string `json:"eth_address"`
}

// BridgeValidators is an ordered signer set
type BridgeValidators []BridgeValidator

// Sort orders members by power descending, ties broken by address so that every
// node derives the same order for the same membership.
func (b BridgeValidators) Sort() {
	sort.SliceStable(b, func(i, j int) bool {
		if b[i].Power != b[j].Power {
			return b[i].Power > b[j].Power
		}
		return strings.ToLower(b[i].EthAddress) < strings.ToLower(b[j].EthAddress)
	})
}

// TotalPower sums member power
func (b BridgeValidators) TotalPower() math.Int {
	total := math.ZeroInt()
	for _, v := range b {
		total = total.Add(math.NewIntFromUint64(v.Power))
	}
	return total
}

// PowerDiff returns the fraction of normalized power that moved between b and c.
// Both sets are expected to be normalized to MaxPower.
func (b BridgeValidators) PowerDiff(c BridgeValidators) math.LegacyDec {
	powers := make(map[string]int64, len(b))
	for _, v := range b {
		powers[strings.ToLower(v.EthAddress)] = int64(v.Power)
	}
	for _, v := range c {
		powers[strings.ToLower(v.EthAddress)] -= int64(v.Power)
	}

	diff := int64(0)
	for _, p := range powers {
		if p < 0 {
			p = -p
		}
		diff += p
	}

	return math.LegacyNewDec(diff).QuoInt64(MaxPower)
}

// Valset is a versioned bridge signer set
type Valset struct {
	Nonce   uint64           `json:"nonce"`
	Members BridgeValidators `json:"members"`
	Height  uint64           `json:"height"`
}

func (v Valset) String() string {
	return fmt.Sprintf("Valset{Nonce: %d, Members: %d}", v.Nonce, len(v.Members))
}

// ERC20Token is an amount of one token contract
type ERC20Token struct {
	Contract string   `json:"contract"`
	Amount   math.Int `json:"amount"`
}

// OutgoingTransferTx is a pending transfer from the hub to the EVM chain
type OutgoingTransferTx struct {
	ID          uint64     `json:"id"`
	Sender      string     `json:"sender"`
	DestAddress string     `json:"dest_address"`
	Token       ERC20Token `json:"token"`
	Fee         ERC20Token `json:"fee"`
}

func (tx OutgoingTransferTx) String() string {
	return fmt.Sprintf("OutgoingTransferTx{ID: %d, Fee: %s}", tx.ID, tx.Fee.Amount)
}

// OutgoingTxBatch is a frozen group of transfers for one token contract
type OutgoingTxBatch struct {
	BatchNonce    uint64               `json:"batch_nonce"`
	BatchTimeout  uint64               `json:"batch_timeout"`
	Transactions  []OutgoingTransferTx `json:"transactions"`
	TokenContract string               `json:"token_contract"`
	Block         uint64               `json:"block"`
	FeeReceive    string               `json:"fee_receive"`
}

func (b OutgoingTxBatch) String() string {
	return fmt.Sprintf("OutgoingTxBatch{Nonce: %d, Token: %s, Txs: %d}", b.BatchNonce, b.TokenContract, len(b.Transactions))
}

// TotalFee sums the fees of every transaction in the batch
func (b OutgoingTxBatch) TotalFee() math.Int {
	return TotalFees(b.Transactions)
}

// BatchFees summarizes what a batch for a token contract would currently earn
type BatchFees struct {
	TokenContract string   `json:"token_contract"`
	TotalFees     math.Int `json:"total_fees"`
	TotalTxs      uint64   `json:"total_txs"`
}

// LastObservedBlockHeight pairs the hub height with the EVM height of the most
// recently observed event.
type LastObservedBlockHeight struct {
	HubBlockHeight uint64 `json:"hub_block_height"`
	EthBlockHeight uint64 `json:"eth_block_height"`
}

// EthSignature is a 65 byte [R || S || V] signature made by EthAddress
type EthSignature struct {
	EthAddress string `json:"eth_address"`
	Signature  []byte `json:"signature"`
}
