package orchestrator

import (
	"context"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-metrics"

	bridgetypes "github.com/functionx/fx-bridge/types"
	"github.com/functionx/fx-bridge/x/gravity/types"
)

// BuildClaim maps an observed event to the claim orchestrator submits for it
func BuildClaim(event bridgetypes.ChainEvent, orchestrator string) (types.EthereumClaim, error) {
	if err := event.Validate(); err != nil {
		return nil, errorsmod.Wrap(ErrMalformedEvent, err.Error())
	}

	var claim types.EthereumClaim
	switch e := event.(type) {
	case *bridgetypes.DepositEvent:
		claim = &types.MsgDepositClaim{
			EventNonce:    e.EventNonce,
			BlockHeight:   e.BlockHeight,
			TokenContract: e.TokenContract,
			Amount:        e.Amount,
			EthSender:     e.Sender,
			Receiver:      e.Receiver,
			TargetIBC:     e.TargetIBC,
			Orchestrator:  orchestrator,
		}
	case *bridgetypes.WithdrawEvent:
		claim = &types.MsgWithdrawClaim{
			EventNonce:    e.EventNonce,
			BlockHeight:   e.BlockHeight,
			BatchNonce:    e.BatchNonce,
			TokenContract: e.TokenContract,
			Orchestrator:  orchestrator,
		}
	case *bridgetypes.OriginatedTokenEvent:
		claim = &types.MsgOriginatedTokenClaim{
			EventNonce:    e.EventNonce,
			BlockHeight:   e.BlockHeight,
			TokenContract: e.TokenContract,
			Name:          e.Name,
			Symbol:        e.Symbol,
			Decimals:      e.Decimals,
			Orchestrator:  orchestrator,
		}
	case *bridgetypes.ValsetUpdatedEvent:
		claim = &types.MsgValsetUpdatedClaim{
			EventNonce:   e.EventNonce,
			BlockHeight:  e.BlockHeight,
			ValsetNonce:  e.ValsetNonce,
			Members:      e.Members,
			Orchestrator: orchestrator,
		}
	default:
		return nil, errorsmod.Wrapf(ErrMalformedEvent, "unknown event %T", event)
	}

	if err := claim.ValidateBasic(); err != nil {
		return nil, errorsmod.Wrap(ErrMalformedEvent, err.Error())
	}
	return claim, nil
}

// SubmitResult is the outcome of a claim submission the hub did not reject
type SubmitResult int

const (
	SubmitAccepted SubmitResult = iota
	SubmitDuplicate
)

func (r SubmitResult) String() string {
	if r == SubmitDuplicate {
		return "duplicate"
	}
	return "accepted"
}

// Submitter sends claims for one orchestrator strictly in event nonce order. It keeps
// the next nonce the hub will accept and refuses to send anything else.
type Submitter struct {
	logger       log.Logger
	hub          HubChain
	orchestrator string
	rpcTimeout   time.Duration
	newBackOff   func() backoff.BackOff

	// next event nonce the hub accepts from orchestrator, zero until synced
	expected uint64
}

// NewSubmitter creates a submitter; newBackOff supplies the retry policy of each send
func NewSubmitter(logger log.Logger, hub HubChain, orchestrator string, rpcTimeout time.Duration, newBackOff func() backoff.BackOff) *Submitter {
	return &Submitter{
		logger:       logger.With("component", "submitter"),
		hub:          hub,
		orchestrator: orchestrator,
		rpcTimeout:   rpcTimeout,
		newBackOff:   newBackOff,
	}
}

// Orchestrator returns the hub address claims are submitted as
func (s *Submitter) Orchestrator() string {
	return s.orchestrator
}

// Expected returns the next event nonce the hub accepts, zero if unknown
func (s *Submitter) Expected() uint64 {
	return s.expected
}

// Resync re-reads the last accepted event nonce from the hub
func (s *Submitter) Resync(ctx context.Context) (uint64, error) {
	queryCtx, cancel := context.WithTimeout(ctx, s.rpcTimeout)
	defer cancel()
	last, err := s.hub.LastEventNonce(queryCtx, s.orchestrator)
	if err != nil {
		return 0, errorsmod.Wrap(err, "query last event nonce")
	}
	s.expected = last + 1
	s.logger.Info("synced event nonce with hub", "event_nonce", last)
	return s.expected, nil
}

// Submit delivers the claim for event. An event below the expected nonce was already
// accepted and is reported as a duplicate without sending; an event above it is a gap
// and is never sent. Transient failures are retried until ctx ends.
func (s *Submitter) Submit(ctx context.Context, event bridgetypes.ChainEvent) (SubmitResult, error) {
	if s.expected == 0 {
		if _, err := s.Resync(ctx); err != nil {
			return 0, err
		}
	}

	nonce := event.GetEventNonce()
	switch {
	case nonce < s.expected:
		metrics.IncrCounter(metricClaimsDuplicate, 1)
		return SubmitDuplicate, nil
	case nonce > s.expected:
		metrics.IncrCounter(metricNonceGaps, 1)
		return 0, errorsmod.Wrapf(ErrNonceGap, "event nonce %d, hub expects %d", nonce, s.expected)
	}

	claim, err := BuildClaim(event, s.orchestrator)
	if err != nil {
		return 0, err
	}

	send := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(errorsmod.Wrap(ErrShuttingDown, "claim not sent"))
		}
		// a send that started runs to completion
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.rpcTimeout)
		defer cancel()
		err := s.hub.SendClaim(sendCtx, claim)
		if err != nil && classify(err) != classRetryable {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		s.logger.Error("claim submission failed, retrying", "event_nonce", nonce, "wait", wait, "error", err)
	}
	err = backoff.RetryNotify(send, backoff.WithContext(s.newBackOff(), ctx), notify)

	switch {
	case err == nil:
		s.expected = nonce + 1
		metrics.IncrCounterWithLabels(metricClaimsSubmitted, 1, labels("claim_type", claim.GetType().String()))
		metrics.SetGauge(metricLastEventNonce, float32(nonce))
		s.logger.Info("claim submitted", "event_nonce", nonce, "claim_type", claim.GetType().String())
		return SubmitAccepted, nil

	case classify(err) == classDuplicate:
		s.expected = nonce + 1
		metrics.IncrCounter(metricClaimsDuplicate, 1)
		s.logger.Debug("claim already accepted", "event_nonce", nonce)
		return SubmitDuplicate, nil

	case classify(err) == classGap:
		// the hub lost track of us or we of it, ask again before the next send
		s.expected = 0
		metrics.IncrCounter(metricNonceGaps, 1)
		return 0, errorsmod.Wrapf(ErrNonceGap, "event nonce %d: %s", nonce, err)

	case errorsmod.IsOf(err, types.ErrConflictingClaim):
		countFault("conflicting_claim")
		s.logger.Error("hub observed a different event at this nonce",
			"event_nonce", nonce,
			"claim_hash", claim.ClaimHash(),
			"error", err,
		)
		return 0, errorsmod.Wrapf(ErrConflictingClaim, "event nonce %d: %s", nonce, err)

	default:
		return 0, err
	}
}
