package orchestrator

import (
	"bytes"
	"context"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"

	bridgetypes "github.com/functionx/fx-bridge/types"
)

const (
	// DefaultScanWindow bounds the number of EVM blocks fetched per poll
	DefaultScanWindow = uint64(2000)
	// DefaultRescanPolls is the number of caught-up polls without the next event
	// after which the trailing scan window is fetched again
	DefaultRescanPolls = uint64(10)
)

// Watcher scans the bridge contract for events and forwards them to the hub in event
// nonce order once they are confirmed. Each event nonce is delivered at most once per
// process; after a restart scanning resumes from the persisted checkpoint and the hub
// rejects anything already accepted.
type Watcher struct {
	logger      log.Logger
	eth         bridgetypes.EthereumChain
	hub         HubChain
	tracker     *Tracker
	submitter   *Submitter
	store       *CheckpointStore
	rpcTimeout  time.Duration
	scanWindow  uint64
	startHeight uint64
	rescanPolls uint64

	synced    bool
	scanFrom  uint64
	idlePolls uint64
	buffer    map[uint64]bridgetypes.ChainEvent
	hashes    map[uint64][]byte
	invalid   map[uint64]error
	reported  map[uint64]bool
}

// NewWatcher creates a watcher. Scanning starts at startHeight when neither the
// checkpoint store nor the hub knows about earlier progress.
func NewWatcher(
	logger log.Logger,
	eth bridgetypes.EthereumChain,
	hub HubChain,
	tracker *Tracker,
	submitter *Submitter,
	store *CheckpointStore,
	rpcTimeout time.Duration,
	scanWindow uint64,
	startHeight uint64,
) *Watcher {
	if scanWindow == 0 {
		scanWindow = DefaultScanWindow
	}
	return &Watcher{
		logger:      logger.With("component", "watcher"),
		eth:         eth,
		hub:         hub,
		tracker:     tracker,
		submitter:   submitter,
		store:       store,
		rpcTimeout:  rpcTimeout,
		scanWindow:  scanWindow,
		startHeight: startHeight,
		rescanPolls: DefaultRescanPolls,
		buffer:      make(map[uint64]bridgetypes.ChainEvent),
		hashes:      make(map[uint64][]byte),
		invalid:     make(map[uint64]error),
		reported:    make(map[uint64]bool),
	}
}

// SetRescanPolls sets how many caught-up polls pass before the trailing window is
// fetched again. Zero keeps the default.
func (w *Watcher) SetRescanPolls(n uint64) *Watcher {
	if n > 0 {
		w.rescanPolls = n
	}
	return w
}

// ScanFrom returns the next EVM block the watcher fetches
func (w *Watcher) ScanFrom() uint64 {
	return w.scanFrom
}

// Buffered returns the number of events waiting for confirmation or for a predecessor
func (w *Watcher) Buffered() int {
	return len(w.buffer)
}

// Poll runs one scan and forwards every event that became deliverable
func (w *Watcher) Poll(ctx context.Context, report func(State)) error {
	if report == nil {
		report = func(State) {}
	}
	if !w.synced {
		if err := w.sync(ctx); err != nil {
			return err
		}
	}

	report(StatePolling)
	head, headErr := w.head(ctx)
	if headErr == nil {
		if err := w.scan(ctx, head); err != nil {
			return err
		}
	}

	report(StateConfirming)
	if err := w.drain(ctx, head, headErr, report); err != nil {
		return err
	}
	if headErr != nil {
		return errorsmod.Wrap(ErrHeadUnknown, headErr.Error())
	}

	return w.rescan(ctx, head)
}

// rescan moves the scanner back when it is caught up but the next event was never seen.
// With later events buffered the gap is certain and the rewind is immediate; otherwise
// the trailing window is fetched again every rescanPolls polls, since a node may index
// a log after its block was already scanned.
func (w *Watcher) rescan(ctx context.Context, head uint64) error {
	expected := w.submitter.Expected()
	if _, ok := w.buffer[expected]; ok || w.scanFrom <= head {
		w.idlePolls = 0
		return nil
	}
	if len(w.buffer) > 0 {
		w.idlePolls = 0
		w.logger.Info("next event missing from scanned range, rescanning", "event_nonce", expected)
		return w.rewind(ctx)
	}

	w.idlePolls++
	if w.idlePolls < w.rescanPolls {
		return nil
	}
	w.idlePolls = 0
	if err := w.rewind(ctx); err != nil {
		return err
	}
	if trailing := head + 1 - min(head+1, w.scanWindow); w.scanFrom < trailing {
		w.scanFrom = trailing
	}
	w.logger.Debug("rescanning trailing window", "event_nonce", expected, "from", w.scanFrom, "head", head)
	return nil
}

// sync positions the scanner after a start or a nonce gap
func (w *Watcher) sync(ctx context.Context) error {
	expected, err := w.submitter.Resync(ctx)
	if err != nil {
		return err
	}

	from := w.startHeight
	cp, found, err := w.store.LastSeen()
	if err != nil {
		return errorsmod.Wrap(err, "load checkpoint")
	}
	if found && cp.EventNonce < expected {
		from = max(from, cp.BlockHeight)
	} else {
		queryCtx, cancel := context.WithTimeout(ctx, w.rpcTimeout)
		height, err := w.hub.LastEventBlockHeight(queryCtx, w.submitter.Orchestrator())
		cancel()
		if err != nil {
			return errorsmod.Wrap(err, "query last event block height")
		}
		from = max(from, height)
	}

	inFlight, err := w.store.InFlight()
	if err != nil {
		return errorsmod.Wrap(err, "load in-flight claims")
	}
	for nonce := range inFlight {
		if nonce < expected {
			if err := w.store.ClearInFlight(nonce); err != nil {
				return err
			}
			continue
		}
		w.logger.Info("claim may have been sent before restart", "event_nonce", nonce)
	}

	w.scanFrom = from
	w.prune(expected)
	w.synced = true
	w.logger.Info("watcher synced", "next_event_nonce", expected, "scan_from", from)
	return nil
}

func (w *Watcher) rewind(ctx context.Context) error {
	queryCtx, cancel := context.WithTimeout(ctx, w.rpcTimeout)
	defer cancel()
	height, err := w.hub.LastEventBlockHeight(queryCtx, w.submitter.Orchestrator())
	if err != nil {
		return errorsmod.Wrap(err, "query last event block height")
	}
	w.scanFrom = max(w.startHeight, height)
	return nil
}

func (w *Watcher) head(ctx context.Context) (uint64, error) {
	queryCtx, cancel := context.WithTimeout(ctx, w.rpcTimeout)
	defer cancel()
	return w.eth.HeadHeight(queryCtx)
}

func (w *Watcher) scan(ctx context.Context, head uint64) error {
	if head < w.scanFrom {
		return nil
	}
	to := min(head, w.scanFrom+w.scanWindow-1)

	queryCtx, cancel := context.WithTimeout(ctx, w.rpcTimeout)
	defer cancel()
	events, err := w.eth.EventsInRange(queryCtx, w.scanFrom, to)
	if err != nil {
		return errorsmod.Wrapf(err, "fetch events in [%d, %d]", w.scanFrom, to)
	}
	for _, event := range events {
		w.ingest(event)
	}
	w.logger.Debug("scanned", "from", w.scanFrom, "to", to, "events", len(events))
	w.scanFrom = to + 1
	return nil
}

func (w *Watcher) ingest(event bridgetypes.ChainEvent) {
	nonce := event.GetEventNonce()
	if nonce < w.submitter.Expected() {
		return
	}
	var hash []byte
	claim, err := BuildClaim(event, w.submitter.Orchestrator())
	if err == nil {
		hash = claim.ClaimHash()
	}
	if _, ok := w.buffer[nonce]; ok && hash != nil && bytes.Equal(w.hashes[nonce], hash) {
		return
	}
	if _, ok := w.buffer[nonce]; ok {
		// reorg or corrected payload, confirmation starts over
		w.logger.Info("event replaced before delivery", "event_nonce", nonce, "block_height", event.GetBlockHeight())
		w.tracker.Forget(nonce)
		delete(w.reported, nonce)
	}
	w.buffer[nonce] = event
	w.hashes[nonce] = hash
	w.invalid[nonce] = err
	w.tracker.Observe(nonce)
}

func (w *Watcher) drain(ctx context.Context, head uint64, headErr error, report func(State)) error {
	for {
		nonce := w.submitter.Expected()
		event, ok := w.buffer[nonce]
		if !ok {
			return nil
		}
		verdict := w.tracker.Check(event, head, headErr)
		if !verdict.Ready() {
			return nil
		}
		if err := w.invalid[nonce]; err != nil {
			// never sent, delivery stalls here until a corrected observation replaces it
			if !w.reported[nonce] {
				w.reported[nonce] = true
				countFault("malformed_event")
				w.logger.Error("event cannot be turned into a claim", "event_nonce", nonce, "error", err)
			}
			return nil
		}
		if verdict == VerdictTimedOut {
			w.logger.Info("forwarding event before full confirmation", "event_nonce", nonce, "block_height", event.GetBlockHeight(), "head", head)
		}

		report(StateSubmitting)
		if err := w.store.MarkInFlight(nonce, w.hashes[nonce]); err != nil {
			return errorsmod.Wrap(err, "mark in-flight claim")
		}
		_, err := w.submitter.Submit(ctx, event)
		switch {
		case err == nil:
			if err := w.delivered(event); err != nil {
				return err
			}

		case classify(err) == classGap:
			w.logger.Info("hub expects a different event nonce, resyncing", "event_nonce", nonce, "error", err)
			w.synced = false
			return w.sync(ctx)

		default:
			return err
		}
	}
}

func (w *Watcher) delivered(event bridgetypes.ChainEvent) error {
	nonce := event.GetEventNonce()
	if err := w.store.SaveLastSeen(Checkpoint{EventNonce: nonce, BlockHeight: event.GetBlockHeight()}); err != nil {
		return errorsmod.Wrap(err, "save checkpoint")
	}
	if err := w.store.ClearInFlight(nonce); err != nil {
		return errorsmod.Wrap(err, "clear in-flight claim")
	}
	w.prune(w.submitter.Expected())
	return nil
}

// prune drops buffered events the hub has already accepted
func (w *Watcher) prune(expected uint64) {
	for nonce := range w.buffer {
		if nonce < expected {
			delete(w.buffer, nonce)
			delete(w.hashes, nonce)
			delete(w.invalid, nonce)
			delete(w.reported, nonce)
			w.tracker.Forget(nonce)
		}
	}
}
