package types

import (
	"context"
	"math/big"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// EthereumChain defines the expected interface for the EVM side of the bridge
type EthereumChain interface {
	// Chain head and event access
	HeadHeight(ctx context.Context) (uint64, error)
	EventsInRange(ctx context.Context, fromBlock, toBlock uint64) ([]ChainEvent, error)

	// Bridge contract state
	LastValsetNonce(ctx context.Context) (uint64, error)
	LastBatchNonce(ctx context.Context, tokenContract string) (uint64, error)

	// Relaying signed updates
	SubmitValset(ctx context.Context, current, next Valset, sigs []EthSignature) (string, error)
	SubmitBatch(ctx context.Context, current Valset, batch OutgoingTxBatch, sigs []EthSignature) (string, error)
	WaitForTransaction(ctx context.Context, txHash string, confirmations uint64) error
}

// Signer defines the expected interface for a signing backend. Implementations never
// expose key material and may not be reentrant.
type Signer interface {
	Address() string
	Sign(msg []byte) ([]byte, error)
}

// TxSigner is a signing backend that also signs EVM transactions with the same key
type TxSigner interface {
	Signer
	SignTx(tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error)
}
