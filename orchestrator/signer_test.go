package orchestrator_test

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gethcommon "github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/functionx/fx-bridge/orchestrator"
	"github.com/functionx/fx-bridge/testutil"
	bridgetypes "github.com/functionx/fx-bridge/types"
)

func newTestOrchestratorKey(t *testing.T) testutil.TestOrchestrator {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return testutil.TestOrchestrator{EthKey: key, EthAddress: crypto.PubkeyToAddress(key.PublicKey).Hex()}
}

// overlapSigner fails the test if two signatures are ever produced at once
type overlapSigner struct {
	orchSigner
	active  atomic.Int32
	overlap atomic.Bool
	release chan struct{}
}

func (s *overlapSigner) Sign(msg []byte) ([]byte, error) {
	if s.active.Add(1) > 1 {
		s.overlap.Store(true)
	}
	defer s.active.Add(-1)
	if s.release != nil {
		<-s.release
	}
	return s.orchSigner.Sign(msg)
}

func TestSerialSignerNeverInterleaves(t *testing.T) {
	signer := &overlapSigner{orchSigner: orchSigner{orch: newTestOrchestratorKey(t)}}
	serial := orchestrator.NewSerialSigner(signer)
	checkpoint := crypto.Keccak256([]byte("checkpoint"))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sig, err := serial.Sign(context.Background(), checkpoint)
			require.NoError(t, err)
			require.NoError(t, bridgetypes.ValidateEthSignature(checkpoint, sig, serial.Address()))
		}()
	}
	wg.Wait()
	require.False(t, signer.overlap.Load())
}

func TestSerialSignerDropsCancelledRequests(t *testing.T) {
	signer := &overlapSigner{
		orchSigner: orchSigner{orch: newTestOrchestratorKey(t)},
		release:    make(chan struct{}),
	}
	serial := orchestrator.NewSerialSigner(signer)
	checkpoint := crypto.Keccak256([]byte("checkpoint"))

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		_, err := serial.Sign(context.Background(), checkpoint)
		done <- err
	}()
	<-started
	require.Eventually(t, func() bool { return signer.active.Load() == 1 }, time.Second, time.Millisecond)

	// queued behind the running signature
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := serial.Sign(ctx, checkpoint)
	require.ErrorIs(t, err, orchestrator.ErrShuttingDown)

	// the running one still completes
	close(signer.release)
	require.NoError(t, <-done)
}

func TestSerialSignerFailures(t *testing.T) {
	checkpoint := crypto.Keccak256([]byte("checkpoint"))

	failing := orchestrator.NewSerialSigner(&orchSigner{orch: newTestOrchestratorKey(t), fail: errBackendDown})
	_, err := failing.Sign(context.Background(), checkpoint)
	require.ErrorIs(t, err, orchestrator.ErrSigningFailed)
	require.True(t, orchestrator.IsFatal(err))

	// a key that does not match the advertised address
	wrong := newTestOrchestratorKey(t)
	wrong.EthAddress = newTestOrchestratorKey(t).EthAddress
	mismatched := orchestrator.NewSerialSigner(&orchSigner{orch: wrong})
	_, err = mismatched.Sign(context.Background(), checkpoint)
	require.ErrorIs(t, err, orchestrator.ErrSigningFailed)
}

func TestSerialSignerSignsTransactions(t *testing.T) {
	chainID := big.NewInt(530)
	to := gethcommon.HexToAddress("0x00000000000000000000000000000000000000b1")
	tx := ethtypes.NewTx(&ethtypes.LegacyTx{Nonce: 1, To: &to, Gas: 21000, GasPrice: big.NewInt(1)})

	serial := orchestrator.NewSerialSigner(&orchSigner{orch: newTestOrchestratorKey(t)})
	signed, err := serial.SignTx(context.Background(), tx, chainID)
	require.NoError(t, err)
	sender, err := ethtypes.Sender(ethtypes.LatestSignerForChainID(chainID), signed)
	require.NoError(t, err)
	require.Equal(t, serial.Address(), sender.Hex())

	// a backend that only signs checkpoints
	checkpointOnly := orchestrator.NewSerialSigner(struct{ bridgetypes.Signer }{&orchSigner{orch: newTestOrchestratorKey(t)}})
	_, err = checkpointOnly.SignTx(context.Background(), tx, chainID)
	require.ErrorIs(t, err, orchestrator.ErrSigningFailed)

	wrong := newTestOrchestratorKey(t)
	wrong.EthAddress = newTestOrchestratorKey(t).EthAddress
	_, err = orchestrator.NewSerialSigner(&orchSigner{orch: wrong}).SignTx(context.Background(), tx, chainID)
	require.ErrorIs(t, err, orchestrator.ErrSigningFailed)

	failing := orchestrator.NewSerialSigner(&orchSigner{orch: newTestOrchestratorKey(t), fail: errBackendDown})
	_, err = failing.SignTx(context.Background(), tx, chainID)
	require.True(t, orchestrator.IsFatal(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = serial.SignTx(ctx, tx, chainID)
	require.ErrorIs(t, err, orchestrator.ErrShuttingDown)
}
