package orchestrator

import (
	"context"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	"github.com/hashicorp/go-metrics"

	"github.com/functionx/fx-bridge/x/gravity/types"
)

// ConfirmSigner signs every valset and batch checkpoint the hub is waiting on this
// orchestrator for and submits the signatures.
type ConfirmSigner struct {
	logger       log.Logger
	hub          HubChain
	signer       *SerialSigner
	orchestrator string
	rpcTimeout   time.Duration
}

// NewConfirmSigner creates a confirm signer
func NewConfirmSigner(logger log.Logger, hub HubChain, signer *SerialSigner, orchestrator string, rpcTimeout time.Duration) *ConfirmSigner {
	return &ConfirmSigner{
		logger:       logger.With("component", "confirms"),
		hub:          hub,
		signer:       signer,
		orchestrator: orchestrator,
		rpcTimeout:   rpcTimeout,
	}
}

// Poll signs the pending valsets, oldest first, then the pending batches
func (c *ConfirmSigner) Poll(ctx context.Context) error {
	queryCtx, cancel := context.WithTimeout(ctx, c.rpcTimeout)
	params, err := c.hub.Params(queryCtx)
	cancel()
	if err != nil {
		return errorsmod.Wrap(err, "query params")
	}
	if err := c.confirmValsets(ctx, params.GravityID); err != nil {
		return err
	}
	return c.confirmBatches(ctx, params.GravityID)
}

func (c *ConfirmSigner) confirmValsets(ctx context.Context, gravityID string) error {
	queryCtx, cancel := context.WithTimeout(ctx, c.rpcTimeout)
	valsets, err := c.hub.PendingValsets(queryCtx, c.orchestrator)
	cancel()
	if err != nil {
		return errorsmod.Wrap(err, "query pending valsets")
	}

	for _, valset := range valsets {
		checkpoint, err := valset.Checkpoint(gravityID)
		if err != nil {
			c.logger.Error("valset cannot be signed", "valset_nonce", valset.Nonce, "error", err)
			continue
		}
		sig, err := c.signer.Sign(ctx, checkpoint)
		if err != nil {
			return err
		}
		msg := &types.MsgValsetConfirm{
			Nonce:        valset.Nonce,
			Orchestrator: c.orchestrator,
			EthAddress:   c.signer.Address(),
			Signature:    sig,
		}
		if err := c.send(ctx, func(ctx context.Context) error { return c.hub.SendValsetConfirm(ctx, msg) }); err != nil {
			if c.skippable(err, "valset_nonce", valset.Nonce) {
				continue
			}
			return errorsmod.Wrapf(err, "confirm valset %d", valset.Nonce)
		}
		metrics.IncrCounterWithLabels(metricConfirmsSigned, 1, labels("kind", "valset"))
		c.logger.Info("valset confirmed", "valset_nonce", valset.Nonce)
	}
	return nil
}

func (c *ConfirmSigner) confirmBatches(ctx context.Context, gravityID string) error {
	queryCtx, cancel := context.WithTimeout(ctx, c.rpcTimeout)
	batches, err := c.hub.PendingBatches(queryCtx, c.orchestrator)
	cancel()
	if err != nil {
		return errorsmod.Wrap(err, "query pending batches")
	}

	for _, batch := range batches {
		checkpoint, err := batch.Checkpoint(gravityID)
		if err != nil {
			c.logger.Error("batch cannot be signed", "token_contract", batch.TokenContract, "batch_nonce", batch.BatchNonce, "error", err)
			continue
		}
		sig, err := c.signer.Sign(ctx, checkpoint)
		if err != nil {
			return err
		}
		msg := &types.MsgConfirmBatch{
			Nonce:         batch.BatchNonce,
			TokenContract: batch.TokenContract,
			EthSigner:     c.signer.Address(),
			Orchestrator:  c.orchestrator,
			Signature:     sig,
		}
		if err := c.send(ctx, func(ctx context.Context) error { return c.hub.SendBatchConfirm(ctx, msg) }); err != nil {
			if c.skippable(err, "batch_nonce", batch.BatchNonce) {
				continue
			}
			return errorsmod.Wrapf(err, "confirm batch %d of %s", batch.BatchNonce, batch.TokenContract)
		}
		metrics.IncrCounterWithLabels(metricConfirmsSigned, 1, labels("kind", "batch"))
		c.logger.Info("batch confirmed", "token_contract", batch.TokenContract, "batch_nonce", batch.BatchNonce)
	}
	return nil
}

func (c *ConfirmSigner) send(ctx context.Context, fn func(context.Context) error) error {
	if ctx.Err() != nil {
		return errorsmod.Wrap(ErrShuttingDown, "confirm not sent")
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.rpcTimeout)
	defer cancel()
	return fn(sendCtx)
}

// skippable reports whether the hub already has the confirm or dropped its subject
func (c *ConfirmSigner) skippable(err error, key string, nonce uint64) bool {
	switch classify(err) {
	case classDuplicate:
		c.logger.Debug("already confirmed", key, nonce)
		return true
	case classStale:
		c.logger.Debug("confirm target pruned", key, nonce)
		return true
	default:
		return false
	}
}
