package orchestrator

import (
	"context"
	"math/big"

	errorsmod "cosmossdk.io/errors"
	gethcommon "github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	bridgetypes "github.com/functionx/fx-bridge/types"
)

// SerialSigner queues checkpoint signature and EVM transaction signing requests on one
// signing backend. Requests never overlap; a request cancelled while queued is dropped,
// one that started signing always completes.
type SerialSigner struct {
	signer bridgetypes.Signer
	turn   chan struct{}
}

// NewSerialSigner wraps signer
func NewSerialSigner(signer bridgetypes.Signer) *SerialSigner {
	return &SerialSigner{
		signer: signer,
		turn:   make(chan struct{}, 1),
	}
}

// Address returns the EVM address of the signing key
func (s *SerialSigner) Address() string {
	return s.signer.Address()
}

// Sign produces an EIP-191 signature over checkpoint and checks that it recovers to
// the signer's address
func (s *SerialSigner) Sign(ctx context.Context, checkpoint []byte) ([]byte, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	sig, err := s.signer.Sign(checkpoint)
	if err != nil {
		return nil, errorsmod.Wrap(ErrSigningFailed, err.Error())
	}
	if err := bridgetypes.ValidateEthSignature(checkpoint, sig, s.signer.Address()); err != nil {
		return nil, errorsmod.Wrap(ErrSigningFailed, err.Error())
	}
	return sig, nil
}

// SignTx signs an EVM transaction in the same queue as checkpoints and checks that the
// sender recovers to the signer's address
func (s *SerialSigner) SignTx(ctx context.Context, tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error) {
	txSigner, ok := s.signer.(bridgetypes.TxSigner)
	if !ok {
		return nil, errorsmod.Wrapf(ErrSigningFailed, "backend %T cannot sign transactions", s.signer)
	}
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	signed, err := txSigner.SignTx(tx, chainID)
	if err != nil {
		return nil, errorsmod.Wrap(ErrSigningFailed, err.Error())
	}
	sender, err := ethtypes.Sender(ethtypes.LatestSignerForChainID(chainID), signed)
	if err != nil {
		return nil, errorsmod.Wrap(ErrSigningFailed, err.Error())
	}
	if sender != gethcommon.HexToAddress(s.signer.Address()) {
		return nil, errorsmod.Wrapf(ErrSigningFailed, "transaction signed by %s, expected %s", sender, s.signer.Address())
	}
	return signed, nil
}

func (s *SerialSigner) acquire(ctx context.Context) error {
	if ctx.Err() != nil {
		return errorsmod.Wrap(ErrShuttingDown, "signature request dropped")
	}
	select {
	case s.turn <- struct{}{}:
		return nil
	case <-ctx.Done():
		return errorsmod.Wrap(ErrShuttingDown, "signature request dropped")
	}
}

func (s *SerialSigner) release() {
	<-s.turn
}
