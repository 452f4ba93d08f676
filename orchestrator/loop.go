package orchestrator

import (
	"context"
	"sync/atomic"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-metrics"
	"github.com/sourcegraph/conc/pool"

	bridgetypes "github.com/functionx/fx-bridge/types"
)

// State is the step a direction is currently in
type State int32

const (
	StateIdle State = iota
	StatePolling
	StateConfirming
	StateSubmitting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateConfirming:
		return "confirming"
	case StateSubmitting:
		return "submitting"
	default:
		return "unknown"
	}
}

// Direction names
const (
	DirectionEthToHub = "eth_to_hub"
	DirectionHubToEth = "hub_to_eth"
	DirectionRelayer  = "relayer"
)

// Config tunes the orchestrator loop
type Config struct {
	ConfirmationDepth   uint64
	ConfirmationTimeout time.Duration
	PollInterval        time.Duration
	RPCTimeout          time.Duration
	ScanWindow          uint64
	// RescanPolls is the number of idle polls between rescans of the trailing window
	RescanPolls uint64
	// StartHeight is the first EVM block scanned when no progress is known
	StartHeight uint64

	BackoffMin time.Duration
	BackoffMax time.Duration
	// SubmitRetries bounds the retries of one claim send before the loop backs off
	SubmitRetries uint64

	RelayValsets       bool
	RelayBatches       bool
	RelayConfirmations uint64

	RequestBatches bool
	MinBatchFee    math.Int
	FeeReceive     string
}

// DefaultConfig returns the default loop configuration
func DefaultConfig() Config {
	return Config{
		ConfirmationDepth:   DefaultConfirmationDepth,
		ConfirmationTimeout: DefaultConfirmationTimeout,
		PollInterval:        5 * time.Second,
		RPCTimeout:          30 * time.Second,
		ScanWindow:          DefaultScanWindow,
		RescanPolls:         DefaultRescanPolls,
		BackoffMin:          time.Second,
		BackoffMax:          2 * time.Minute,
		SubmitRetries:       5,
		RelayValsets:        true,
		RelayBatches:        true,
		RelayConfirmations:  DefaultRelayConfirmations,
		RequestBatches:      true,
		MinBatchFee:         math.ZeroInt(),
	}
}

// Direction is one independently scheduled task of the orchestrator
type Direction struct {
	Name  string
	step  func(ctx context.Context, d *Direction) error
	state atomic.Int32
}

// State returns the step the direction is in
func (d *Direction) State() State {
	return State(d.state.Load())
}

func (d *Direction) setState(s State) {
	d.state.Store(int32(s))
}

// Orchestrator runs the watcher, confirm signer, batch requester and relayer of one
// orchestrator identity, each direction on its own cadence.
type Orchestrator struct {
	logger     log.Logger
	cfg        Config
	directions []*Direction

	Watcher   *Watcher
	Submitter *Submitter
	Confirms  *ConfirmSigner
	Requester *BatchRequester
	Relayer   *Relayer
}

// New wires the orchestrator components. orchestrator is the hub address claims and
// confirms are sent from; signer queues every use of the EVM key bound to it, so eth
// should sign its transactions through the same SerialSigner.
func New(
	logger log.Logger,
	cfg Config,
	eth bridgetypes.EthereumChain,
	hub HubChain,
	signer *SerialSigner,
	orchestrator string,
	store *CheckpointStore,
) *Orchestrator {
	logger = logger.With("orchestrator", orchestrator)
	o := &Orchestrator{logger: logger, cfg: cfg}

	o.Submitter = NewSubmitter(logger, hub, orchestrator, cfg.RPCTimeout, o.submitBackOff)
	tracker := NewTracker(cfg.ConfirmationDepth, cfg.ConfirmationTimeout)
	o.Watcher = NewWatcher(logger, eth, hub, tracker, o.Submitter, store, cfg.RPCTimeout, cfg.ScanWindow, cfg.StartHeight).
		SetRescanPolls(cfg.RescanPolls)
	o.Confirms = NewConfirmSigner(logger, hub, signer, orchestrator, cfg.RPCTimeout)
	o.Requester = NewBatchRequester(logger, hub, orchestrator, cfg.MinBatchFee, cfg.FeeReceive, cfg.RPCTimeout)
	o.Relayer = NewRelayer(logger, eth, hub, cfg.RPCTimeout, cfg.RelayConfirmations, cfg.RelayValsets, cfg.RelayBatches)

	o.directions = append(o.directions,
		&Direction{Name: DirectionEthToHub, step: func(ctx context.Context, d *Direction) error {
			return o.Watcher.Poll(ctx, d.setState)
		}},
		&Direction{Name: DirectionHubToEth, step: func(ctx context.Context, d *Direction) error {
			d.setState(StateSubmitting)
			if err := o.Confirms.Poll(ctx); err != nil {
				return err
			}
			if !cfg.RequestBatches {
				return nil
			}
			_, err := o.Requester.Poll(ctx)
			return err
		}},
	)
	if cfg.RelayValsets || cfg.RelayBatches {
		o.directions = append(o.directions, &Direction{Name: DirectionRelayer, step: func(ctx context.Context, d *Direction) error {
			d.setState(StateSubmitting)
			return o.Relayer.Poll(ctx)
		}})
	}
	return o
}

// Directions returns the scheduled directions
func (o *Orchestrator) Directions() []*Direction {
	return o.directions
}

func (o *Orchestrator) submitBackOff() backoff.BackOff {
	return backoff.WithMaxRetries(o.loopBackOff(), o.cfg.SubmitRetries)
}

func (o *Orchestrator) loopBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.cfg.BackoffMin
	b.MaxInterval = o.cfg.BackoffMax
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Run drives every direction until ctx is cancelled. A fatal error halts only the
// direction that hit it; Run returns once all directions stopped, with their fatal
// errors joined.
func (o *Orchestrator) Run(ctx context.Context) error {
	p := pool.New().WithErrors().WithContext(ctx)
	for _, d := range o.directions {
		d := d
		p.Go(func(ctx context.Context) error {
			return o.runDirection(ctx, d)
		})
	}
	err := p.Wait()
	o.logger.Info("orchestrator stopped")
	return err
}

func (o *Orchestrator) runDirection(ctx context.Context, d *Direction) error {
	logger := o.logger.With("direction", d.Name)
	b := o.loopBackOff()
	timer := time.NewTimer(0)
	defer timer.Stop()

	logger.Info("direction started")
	for {
		select {
		case <-ctx.Done():
			d.setState(StateIdle)
			logger.Info("direction stopped")
			return nil
		case <-timer.C:
		}

		d.setState(StatePolling)
		err := d.step(ctx, d)
		d.setState(StateIdle)

		wait := o.cfg.PollInterval
		switch {
		case err == nil:
			b.Reset()
		case isShutdown(ctx, err):
			logger.Info("direction stopped")
			return nil
		case IsFatal(err):
			metrics.IncrCounterWithLabels(metricDirectionErrors, 1, labels("direction", d.Name, "class", "fatal"))
			logger.Error("direction halted", "error", err)
			return errorsmod.Wrapf(err, "%s halted", d.Name)
		default:
			wait = b.NextBackOff()
			metrics.IncrCounterWithLabels(metricDirectionErrors, 1, labels("direction", d.Name, "class", "retryable"))
			logger.Error("step failed, backing off", "wait", wait, "error", err)
		}
		timer.Reset(wait)
	}
}
