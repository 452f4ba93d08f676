package orchestrator

import (
	"context"
	"sort"
	"strings"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"github.com/hashicorp/go-metrics"

	bridgetypes "github.com/functionx/fx-bridge/types"
)

// DefaultRelayConfirmations is the number of EVM blocks a relay transaction must be
// buried under before the relayer moves on
const DefaultRelayConfirmations = uint64(1)

// Relayer submits valset updates and batches to the bridge contract once the signer
// set the contract currently trusts has confirmed them with enough power.
type Relayer struct {
	logger        log.Logger
	eth           bridgetypes.EthereumChain
	hub           HubChain
	rpcTimeout    time.Duration
	confirmations uint64
	valsets       bool
	batches       bool
}

// NewRelayer creates a relayer; valsets and batches toggle the two kinds of relay
func NewRelayer(logger log.Logger, eth bridgetypes.EthereumChain, hub HubChain, rpcTimeout time.Duration, confirmations uint64, valsets, batches bool) *Relayer {
	return &Relayer{
		logger:        logger.With("component", "relayer"),
		eth:           eth,
		hub:           hub,
		rpcTimeout:    rpcTimeout,
		confirmations: confirmations,
		valsets:       valsets,
		batches:       batches,
	}
}

// Poll relays at most one valset and one batch per token contract
func (r *Relayer) Poll(ctx context.Context) error {
	queryCtx, cancel := context.WithTimeout(ctx, r.rpcTimeout)
	defer cancel()

	params, err := r.hub.Params(queryCtx)
	if err != nil {
		return errorsmod.Wrap(err, "query params")
	}
	ethNonce, err := r.eth.LastValsetNonce(queryCtx)
	if err != nil {
		return errorsmod.Wrap(err, "query contract valset nonce")
	}
	current, found, err := r.hub.ValsetAt(queryCtx, ethNonce)
	if err != nil {
		return errorsmod.Wrapf(err, "query valset %d", ethNonce)
	}
	if !found {
		r.logger.Info("contract valset not known to the hub, nothing can be verified", "valset_nonce", ethNonce)
		return nil
	}

	if r.valsets {
		if current, err = r.relayValset(ctx, params.GravityID, current); err != nil {
			return err
		}
	}
	if r.batches {
		return r.relayBatches(ctx, params.GravityID, current)
	}
	return nil
}

// relayValset submits the newest valset that current has confirmed and returns the
// valset the contract trusts afterwards
func (r *Relayer) relayValset(ctx context.Context, gravityID string, current bridgetypes.Valset) (bridgetypes.Valset, error) {
	queryCtx, cancel := context.WithTimeout(ctx, r.rpcTimeout)
	valsets, err := r.hub.Valsets(queryCtx)
	cancel()
	if err != nil {
		return current, errorsmod.Wrap(err, "query valsets")
	}

	for i := len(valsets) - 1; i >= 0; i-- {
		next := valsets[i]
		if next.Nonce <= current.Nonce {
			break
		}
		checkpoint, err := next.Checkpoint(gravityID)
		if err != nil {
			continue
		}

		queryCtx, cancel := context.WithTimeout(ctx, r.rpcTimeout)
		confirms, err := r.hub.ValsetConfirms(queryCtx, next.Nonce)
		cancel()
		if err != nil {
			return current, errorsmod.Wrapf(err, "query confirms of valset %d", next.Nonce)
		}
		bySigner := make(map[string][]byte, len(confirms))
		for _, confirm := range confirms {
			bySigner[strings.ToLower(confirm.EthAddress)] = confirm.Signature
		}
		sigs, power := AlignSignatures(current.Members, checkpoint, bySigner)
		if !bridgetypes.ThresholdReached(power, current.Members.TotalPower()) {
			continue
		}

		txHash, err := r.eth.SubmitValset(ctx, current, next, sigs)
		if err != nil {
			metrics.IncrCounterWithLabels(metricDirectionErrors, 1, labels("direction", "relay_valset"))
			return current, errorsmod.Wrapf(err, "submit valset %d", next.Nonce)
		}
		if err := r.eth.WaitForTransaction(ctx, txHash, r.confirmations); err != nil {
			return current, errorsmod.Wrapf(err, "wait for valset %d in %s", next.Nonce, txHash)
		}
		metrics.IncrCounterWithLabels(metricRelayed, 1, labels("kind", "valset"))
		metrics.SetGaugeWithLabels(metricLastRelayed, float32(next.Nonce), labels("kind", "valset"))
		r.logger.Info("valset relayed", "valset_nonce", next.Nonce, "tx_hash", txHash)
		return next, nil
	}
	return current, nil
}

func (r *Relayer) relayBatches(ctx context.Context, gravityID string, current bridgetypes.Valset) error {
	queryCtx, cancel := context.WithTimeout(ctx, r.rpcTimeout)
	batches, err := r.hub.OutgoingBatches(queryCtx)
	cancel()
	if err != nil {
		return errorsmod.Wrap(err, "query outgoing batches")
	}
	if len(batches) == 0 {
		return nil
	}

	byToken := make(map[string][]*bridgetypes.OutgoingTxBatch)
	for _, batch := range batches {
		byToken[batch.TokenContract] = append(byToken[batch.TokenContract], batch)
	}
	tokens := make([]string, 0, len(byToken))
	for token := range byToken {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	queryCtx, cancel = context.WithTimeout(ctx, r.rpcTimeout)
	head, err := r.eth.HeadHeight(queryCtx)
	cancel()
	if err != nil {
		return errorsmod.Wrap(ErrHeadUnknown, err.Error())
	}

	for _, token := range tokens {
		if err := r.relayBatch(ctx, gravityID, current, head, token, byToken[token]); err != nil {
			return err
		}
	}
	return nil
}

// relayBatch submits the newest batch of one token contract that can still execute
func (r *Relayer) relayBatch(ctx context.Context, gravityID string, current bridgetypes.Valset, head uint64, token string, batches []*bridgetypes.OutgoingTxBatch) error {
	queryCtx, cancel := context.WithTimeout(ctx, r.rpcTimeout)
	lastNonce, err := r.eth.LastBatchNonce(queryCtx, token)
	cancel()
	if err != nil {
		return errorsmod.Wrapf(err, "query contract batch nonce of %s", token)
	}

	sort.Slice(batches, func(i, j int) bool { return batches[i].BatchNonce > batches[j].BatchNonce })
	for _, batch := range batches {
		if batch.BatchNonce <= lastNonce {
			break
		}
		if batch.BatchTimeout <= head {
			continue
		}
		checkpoint, err := batch.Checkpoint(gravityID)
		if err != nil {
			continue
		}

		queryCtx, cancel := context.WithTimeout(ctx, r.rpcTimeout)
		confirms, err := r.hub.BatchConfirms(queryCtx, token, batch.BatchNonce)
		cancel()
		if err != nil {
			return errorsmod.Wrapf(err, "query confirms of batch %d", batch.BatchNonce)
		}
		bySigner := make(map[string][]byte, len(confirms))
		for _, confirm := range confirms {
			bySigner[strings.ToLower(confirm.EthSigner)] = confirm.Signature
		}
		sigs, power := AlignSignatures(current.Members, checkpoint, bySigner)
		if !bridgetypes.ThresholdReached(power, current.Members.TotalPower()) {
			continue
		}

		txHash, err := r.eth.SubmitBatch(ctx, current, *batch, sigs)
		if err != nil {
			metrics.IncrCounterWithLabels(metricDirectionErrors, 1, labels("direction", "relay_batch"))
			return errorsmod.Wrapf(err, "submit batch %d of %s", batch.BatchNonce, token)
		}
		if err := r.eth.WaitForTransaction(ctx, txHash, r.confirmations); err != nil {
			return errorsmod.Wrapf(err, "wait for batch %d in %s", batch.BatchNonce, txHash)
		}
		metrics.IncrCounterWithLabels(metricRelayed, 1, labels("kind", "batch"))
		metrics.SetGaugeWithLabels(metricLastRelayed, float32(batch.BatchNonce), labels("kind", "batch", "token_contract", token))
		r.logger.Info("batch relayed", "token_contract", token, "batch_nonce", batch.BatchNonce, "tx_hash", txHash)
		return nil
	}
	return nil
}

// AlignSignatures orders signatures by signer set membership, leaving an empty entry
// for members without a valid signature over checkpoint, and returns the power that
// signed. bySigner is keyed by lower case EVM address.
func AlignSignatures(members bridgetypes.BridgeValidators, checkpoint []byte, bySigner map[string][]byte) ([]bridgetypes.EthSignature, math.Int) {
	sigs := make([]bridgetypes.EthSignature, len(members))
	power := math.ZeroInt()
	for i, member := range members {
		sigs[i] = bridgetypes.EthSignature{EthAddress: member.EthAddress}
		sig, ok := bySigner[strings.ToLower(member.EthAddress)]
		if !ok {
			continue
		}
		if err := bridgetypes.ValidateEthSignature(checkpoint, sig, member.EthAddress); err != nil {
			continue
		}
		sigs[i].Signature = sig
		power = power.Add(math.NewIntFromUint64(member.Power))
	}
	return sigs, power
}
