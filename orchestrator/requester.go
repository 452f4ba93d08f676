package orchestrator

import (
	"context"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"github.com/hashicorp/go-metrics"

	"github.com/functionx/fx-bridge/x/gravity/types"
)

// BatchRequester asks the hub to build a batch for every token contract whose pool
// fees reach the configured minimum.
type BatchRequester struct {
	logger       log.Logger
	hub          HubChain
	orchestrator string
	minimumFee   math.Int
	feeReceive   string
	rpcTimeout   time.Duration
}

// NewBatchRequester creates a requester; a nil minimumFee requests any non-empty pool
func NewBatchRequester(logger log.Logger, hub HubChain, orchestrator string, minimumFee math.Int, feeReceive string, rpcTimeout time.Duration) *BatchRequester {
	if minimumFee.IsNil() {
		minimumFee = math.ZeroInt()
	}
	return &BatchRequester{
		logger:       logger.With("component", "batch_requester"),
		hub:          hub,
		orchestrator: orchestrator,
		minimumFee:   minimumFee,
		feeReceive:   feeReceive,
		rpcTimeout:   rpcTimeout,
	}
}

// Poll requests batches and returns the number the hub built
func (r *BatchRequester) Poll(ctx context.Context) (int, error) {
	queryCtx, cancel := context.WithTimeout(ctx, r.rpcTimeout)
	fees, err := r.hub.BatchFees(queryCtx)
	cancel()
	if err != nil {
		return 0, errorsmod.Wrap(err, "query batch fees")
	}

	requested := 0
	for _, fee := range fees {
		if fee.TotalTxs == 0 || fee.TotalFees.LT(r.minimumFee) {
			continue
		}

		queryCtx, cancel := context.WithTimeout(ctx, r.rpcTimeout)
		denom, err := r.hub.DenomForContract(queryCtx, fee.TokenContract)
		cancel()
		if err != nil {
			return requested, errorsmod.Wrapf(err, "denom of %s", fee.TokenContract)
		}

		msg := &types.MsgRequestBatch{
			Sender:     r.orchestrator,
			Denom:      denom,
			MinimumFee: r.minimumFee,
			FeeReceive: r.feeReceive,
		}
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.rpcTimeout)
		err = r.hub.RequestBatch(sendCtx, msg)
		cancel()
		if err != nil {
			if classify(err) == classUnprofitable {
				r.logger.Debug("batch not built", "token_contract", fee.TokenContract, "reason", err)
				continue
			}
			return requested, errorsmod.Wrapf(err, "request batch for %s", fee.TokenContract)
		}

		requested++
		metrics.IncrCounterWithLabels(metricBatchRequests, 1, labels("token_contract", fee.TokenContract))
		r.logger.Info("batch requested", "token_contract", fee.TokenContract, "total_fees", fee.TotalFees, "total_txs", fee.TotalTxs)
	}
	return requested, nil
}
