package orchestrator

import (
	"sync"
	"time"

	bridgetypes "github.com/functionx/fx-bridge/types"
)

const (
	// DefaultConfirmationDepth is the number of blocks an event must be buried under
	DefaultConfirmationDepth = uint64(1)
	// DefaultConfirmationTimeout forwards an event without full depth once it has been
	// observed for this long
	DefaultConfirmationTimeout = 150 * time.Second
)

// Verdict is the confirmation state of an observed event
type Verdict int

const (
	VerdictPending Verdict = iota
	VerdictConfirmed
	VerdictTimedOut
	VerdictUnknown
)

func (v Verdict) String() string {
	switch v {
	case VerdictPending:
		return "pending"
	case VerdictConfirmed:
		return "confirmed"
	case VerdictTimedOut:
		return "timed_out"
	case VerdictUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Ready reports whether the event may be forwarded
func (v Verdict) Ready() bool {
	return v == VerdictConfirmed || v == VerdictTimedOut
}

// Decide is the confirmation policy. An event at eventHeight is confirmed once the
// head is depth blocks past it, or forwarded anyway after it has been known for
// timeout. Without a known head nothing is decided.
func Decide(eventHeight, head uint64, headKnown bool, age time.Duration, depth uint64, timeout time.Duration) Verdict {
	if !headKnown {
		return VerdictUnknown
	}
	if head >= eventHeight && head-eventHeight >= depth {
		return VerdictConfirmed
	}
	if age >= timeout {
		return VerdictTimedOut
	}
	return VerdictPending
}

// Tracker applies Decide to events, remembering when each event nonce was first seen
type Tracker struct {
	depth   uint64
	timeout time.Duration
	now     func() time.Time

	mu        sync.Mutex
	firstSeen map[uint64]time.Time
}

// NewTracker creates a tracker with the given depth and timeout
func NewTracker(depth uint64, timeout time.Duration) *Tracker {
	return &Tracker{
		depth:     depth,
		timeout:   timeout,
		now:       time.Now,
		firstSeen: make(map[uint64]time.Time),
	}
}

// WithClock replaces the wall clock
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// Observe records the first sighting of an event nonce and returns it
func (t *Tracker) Observe(nonce uint64) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	seen, ok := t.firstSeen[nonce]
	if !ok {
		seen = t.now()
		t.firstSeen[nonce] = seen
	}
	return seen
}

// Check decides whether event can be forwarded given the chain head or the error
// returned while fetching it
func (t *Tracker) Check(event bridgetypes.ChainEvent, head uint64, headErr error) Verdict {
	seen := t.Observe(event.GetEventNonce())
	return Decide(event.GetBlockHeight(), head, headErr == nil, t.now().Sub(seen), t.depth, t.timeout)
}

// Forget drops an event nonce, after it was submitted or replaced by a reorg
func (t *Tracker) Forget(nonce uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.firstSeen, nonce)
}
